package dto

import "time"

// EstadisticasColaResponse resumen de la cola para el panel del operador.
type EstadisticasColaResponse struct {
	Pendientes int64 `json:"pendientes"`
	EnEspera   int64 `json:"en_espera"`
	Fallidos   int64 `json:"fallidos"`
}

// RegistroEnvioResponse entrada del log de auditoría de envíos.
type RegistroEnvioResponse struct {
	ID       int64             `json:"id"`
	TrackID  string            `json:"track_id,omitempty"`
	Estado   string            `json:"estado"`
	Detalle  string            `json:"detalle,omitempty"`
	Ambiente string            `json:"ambiente"`
	Metadata map[string]string `json:"metadata,omitempty"`
	CreadoEn time.Time         `json:"creado_en"`
}

// EncolarInformeRequest encola un informe XML ya armado por el caller.
type EncolarInformeRequest struct {
	XML      string            `json:"xml"`
	Ambiente string            `json:"ambiente"`
	Token    string            `json:"token,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// EncolarInformeResponse identifica el trabajo creado.
type EncolarInformeResponse struct {
	TrabajoID int64 `json:"trabajo_id"`
}

// ReintentarFallidosResponse cuántos trabajos volvieron a la cola.
type ReintentarFallidosResponse struct {
	Reencolados int64 `json:"reencolados"`
}
