package entity

import "time"

// RangoFolios representa un CAF (Código de Autorización de Folios) emitido por
// el SII para un tipo de DTE y un ambiente. El emisor solo puede numerar
// documentos dentro de sus rangos autorizados.
// Hasta es cota superior EXCLUSIVA: los folios válidos son [Desde, Hasta).
type RangoFolios struct {
	ID              string
	TipoDTE         int    // 33 factura, 39 boleta, 61 nota de crédito, etc.
	Desde           int64  // Primer folio autorizado
	Hasta           int64  // Cota superior exclusiva del rango
	Ambiente        string // cert | prod | dev
	XMLAutorizacion string // Payload <AUTORIZACION> firmado por el SII, tal como se cargó
	CargadoEn       time.Time
	ActualizadoEn   time.Time
}

// Contiene indica si el folio cae dentro del rango.
func (r *RangoFolios) Contiene(folio int64) bool {
	return folio >= r.Desde && folio < r.Hasta
}

// SeSolapa indica si dos rangos del mismo tipo/ambiente comparten folios.
// Se usa para rechazar importaciones que crearían numeración ambigua.
// Con cotas superiores exclusivas la comparación es estricta: [1,11) y
// [11,21) son adyacentes, no solapados.
func (r *RangoFolios) SeSolapa(otro *RangoFolios) bool {
	if r.TipoDTE != otro.TipoDTE || r.Ambiente != otro.Ambiente {
		return false
	}
	lo := r.Desde
	if otro.Desde > lo {
		lo = otro.Desde
	}
	hi := r.Hasta
	if otro.Hasta < hi {
		hi = otro.Hasta
	}
	return lo < hi
}

// InfoCaf metadatos de la autorización, extraídos del XML del CAF
// (o derivados de las cotas numéricas cuando el XML no se puede parsear).
type InfoCaf struct {
	TipoDTE         int
	Desde           int64
	Hasta           int64 // inclusivo, como figura en <RNG><H> del CAF
	FechaResolucion time.Time
	RutEmisor       string
	RazonSocial     string
	IDK             int // identificador de la clave pública del CAF
}
