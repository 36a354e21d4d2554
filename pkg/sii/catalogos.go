// Package sii contiene catálogos y validaciones alineados al formato de
// Documentos Tributarios Electrónicos del SII (Chile), Resolución Ex. 45/2003.
package sii

// =============================================================================
// Tipos de DTE (códigos del documento según el formato DTE del SII).
// Solo se listan los tipos que el emisor puede timbrar con folios CAF.
// =============================================================================

const (
	TipoFactura           = 33  // Factura electrónica
	TipoFacturaExenta     = 34  // Factura no afecta o exenta electrónica
	TipoBoleta            = 39  // Boleta electrónica
	TipoBoletaExenta      = 41  // Boleta no afecta o exenta electrónica
	TipoGuiaDespacho      = 52  // Guía de despacho electrónica
	TipoNotaDebito        = 56  // Nota de débito electrónica
	TipoNotaCredito       = 61  // Nota de crédito electrónica
	TipoFacturaExport     = 110 // Factura de exportación electrónica
	TipoNotaDebitoExport  = 111 // Nota de débito de exportación
	TipoNotaCreditoExport = 112 // Nota de crédito de exportación
)

// NombresTipoDTE nombres legibles por código, para logs y reportes.
var NombresTipoDTE = map[int]string{
	TipoFactura:           "Factura electrónica",
	TipoFacturaExenta:     "Factura exenta electrónica",
	TipoBoleta:            "Boleta electrónica",
	TipoBoletaExenta:      "Boleta exenta electrónica",
	TipoGuiaDespacho:      "Guía de despacho electrónica",
	TipoNotaDebito:        "Nota de débito electrónica",
	TipoNotaCredito:       "Nota de crédito electrónica",
	TipoFacturaExport:     "Factura de exportación electrónica",
	TipoNotaDebitoExport:  "Nota de débito de exportación",
	TipoNotaCreditoExport: "Nota de crédito de exportación",
}

// EsTipoValido indica si el código corresponde a un tipo de DTE timbrable.
func EsTipoValido(tipo int) bool {
	_, ok := NombresTipoDTE[tipo]
	return ok
}

// =============================================================================
// Ambientes SII. Cada ambiente tiene contadores y rangos de folios propios.
// =============================================================================

const (
	AmbienteCert = "cert" // Certificación (maullin.sii.cl)
	AmbienteProd = "prod" // Producción (palena.sii.cl)
	AmbienteDev  = "dev"  // Local: no se envía nada al SII
)

// EsAmbienteValido indica si el string es un ambiente conocido.
func EsAmbienteValido(ambiente string) bool {
	switch ambiente {
	case AmbienteCert, AmbienteProd, AmbienteDev:
		return true
	}
	return false
}

// TasaIVA tasa vigente del Impuesto al Valor Agregado (%).
const TasaIVA = 19
