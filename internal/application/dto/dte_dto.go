package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceptorDTO destinatario del documento.
type ReceptorDTO struct {
	RUT         string `json:"rut,omitempty"`
	RazonSocial string `json:"razon_social"`
	Giro        string `json:"giro,omitempty"`
	Direccion   string `json:"direccion,omitempty"`
	Comuna      string `json:"comuna,omitempty"`
}

// LineaDTO línea de detalle de la solicitud de emisión.
type LineaDTO struct {
	Nombre         string          `json:"nombre"`
	Cantidad       decimal.Decimal `json:"cantidad,omitempty"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario,omitempty"`
	Monto          decimal.Decimal `json:"monto,omitempty"`
	Exenta         bool            `json:"exenta,omitempty"`
	PrecioBruto    bool            `json:"precio_bruto,omitempty"`
	DescuentoPct   decimal.Decimal `json:"descuento_pct,omitempty"`
	DescuentoMonto decimal.Decimal `json:"descuento_monto,omitempty"`
	RecargoPct     decimal.Decimal `json:"recargo_pct,omitempty"`
	RecargoMonto   decimal.Decimal `json:"recargo_monto,omitempty"`
}

// AjusteDTO descuento o recargo global.
type AjusteDTO struct {
	Movimiento  string          `json:"movimiento"` // descuento | recargo
	TipoValor   string          `json:"tipo_valor"` // porcentaje | monto
	Valor       decimal.Decimal `json:"valor"`
	SobreExento bool            `json:"sobre_exento,omitempty"`
}

// EmitirDTERequest solicitud de emisión completa.
type EmitirDTERequest struct {
	TipoDTE  int               `json:"tipo_dte"`
	Receptor ReceptorDTO       `json:"receptor"`
	Lineas   []LineaDTO        `json:"lineas"`
	Ajustes  []AjusteDTO       `json:"ajustes,omitempty"`
	TasaIVA  *decimal.Decimal  `json:"tasa_iva,omitempty"` // nil usa la tasa vigente
	Meta     map[string]string `json:"meta,omitempty"`
}

// TotalesDTO montos legales calculados.
type TotalesDTO struct {
	Neto   int64 `json:"neto"`
	Exento int64 `json:"exento"`
	IVA    int64 `json:"iva"`
	Total  int64 `json:"total"`
}

// EmitirDTEResponse resultado síncrono de la emisión: el documento quedó
// numerado y en cola; el resultado del envío se consulta en el registro.
type EmitirDTEResponse struct {
	TipoDTE      int        `json:"tipo_dte"`
	Folio        int64      `json:"folio"`
	FechaEmision time.Time  `json:"fecha_emision"`
	Totales      TotalesDTO `json:"totales"`
	TrabajoID    int64      `json:"trabajo_id"`
	RangoID      string     `json:"rango_id"`
}

// CalcularTotalesRequest solicitud de cálculo sin emisión.
type CalcularTotalesRequest struct {
	Lineas  []LineaDTO       `json:"lineas"`
	Ajustes []AjusteDTO      `json:"ajustes,omitempty"`
	TasaIVA *decimal.Decimal `json:"tasa_iva,omitempty"`
}
