package entity

import "time"

// Tipos de trabajo de la cola de envío.
const (
	TrabajoDTE     = "dte"     // envío de un DTE individual (archivo firmado)
	TrabajoInforme = "informe" // envío de un informe/resumen (ej: RCOF de boletas)
)

// Estados registrados en el log de envíos.
const (
	EstadoEncolado = "encolado"
	EstadoEnviado  = "enviado"
	EstadoError    = "error"   // fallo recuperable, se reintentará
	EstadoFallido  = "fallido" // terminal: tope de reintentos o archivo perdido
)

// PayloadTrabajo es la carga de un trabajo de la cola.
// Para TrabajoDTE el documento viaja como referencia a un archivo en el
// almacén protegido (ArchivoRef), nunca como ruta cruda; para TrabajoInforme
// el XML va inline.
type PayloadTrabajo struct {
	ArchivoRef string            `json:"archivo_ref,omitempty"` // token dentro del almacén protegido
	XML        string            `json:"xml,omitempty"`         // solo informes
	Ambiente   string            `json:"ambiente"`
	Token      string            `json:"token,omitempty"` // token de sesión SII del encolador
	Meta       map[string]string `json:"meta,omitempty"`  // tipo DTE, folio, pedido, etc.
}

// TrabajoCola es una fila de la cola durable de envío al SII.
// Intentos se incrementa en cada fallo recuperable; al alcanzar el tope el
// trabajo se elimina y se registra como fallido terminal.
type TrabajoCola struct {
	ID             int64
	Tipo           string // dte | informe
	Payload        PayloadTrabajo
	Intentos       int
	CreadoEn       time.Time
	ProximoIntento time.Time
}

// RegistroEnvio es una entrada del log de auditoría de la cola, visible para
// el operador. Es la única salida de los fallos asíncronos: el procesador
// nunca propaga errores al flujo original.
type RegistroEnvio struct {
	ID       int64
	TrackID  string
	Estado   string // encolado | enviado | error | fallido
	Detalle  string
	Ambiente string
	Metadata map[string]string
	CreadoEn time.Time
}
