package dto

import "time"

// ImportarCafRequest carga el XML de un CAF descargado del SII.
type ImportarCafRequest struct {
	XML      string `json:"xml"`
	Ambiente string `json:"ambiente"` // cert | prod | dev
}

// ActualizarRangoRequest corrige las cotas de un rango (uso administrativo).
type ActualizarRangoRequest struct {
	Desde int64 `json:"desde"`
	Hasta int64 `json:"hasta"` // cota superior exclusiva
}

// RangoResponse vista de un rango CAF.
type RangoResponse struct {
	ID            string    `json:"id"`
	TipoDTE       int       `json:"tipo_dte"`
	Desde         int64     `json:"desde"`
	Hasta         int64     `json:"hasta"` // cota superior exclusiva
	Ambiente      string    `json:"ambiente"`
	CargadoEn     time.Time `json:"cargado_en"`
	ActualizadoEn time.Time `json:"actualizado_en"`
}

// InfoCafResponse metadatos de autorización de un rango.
type InfoCafResponse struct {
	TipoDTE         int    `json:"tipo_dte"`
	Desde           int64  `json:"desde"`
	Hasta           int64  `json:"hasta"` // inclusivo, como figura en el CAF
	FechaResolucion string `json:"fecha_resolucion,omitempty"`
	RutEmisor       string `json:"rut_emisor,omitempty"`
	RazonSocial     string `json:"razon_social,omitempty"`
	IDK             int    `json:"idk,omitempty"`
}

// MarcarUsadoRequest avanza el contador hasta un folio emitido fuera del sistema.
type MarcarUsadoRequest struct {
	TipoDTE int   `json:"tipo_dte"`
	Folio   int64 `json:"folio"`
}
