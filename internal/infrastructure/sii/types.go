package sii

import (
	"fmt"
)

// ErrorEnvio distingue fallos de transporte (red, timeout — reintentables)
// de rechazos del SII (el servicio procesó y rechazó). La política de
// reintentos de la cola trata ambos igual hasta el tope; el registro de
// auditoría sí deja constancia de cuál fue.
type ErrorEnvio struct {
	Transporte bool
	Codigo     string // código de estado/rechazo del SII, si lo hubo
	Detalle    string
}

func (e *ErrorEnvio) Error() string {
	if e.Transporte {
		return fmt.Sprintf("sii: error de transporte: %s", e.Detalle)
	}
	if e.Codigo != "" {
		return fmt.Sprintf("sii: rechazo del SII (estado %s): %s", e.Codigo, e.Detalle)
	}
	return fmt.Sprintf("sii: rechazo del SII: %s", e.Detalle)
}

// EsTransporte indica si el error es un fallo de transporte. La cola lo usa
// vía interfaz para etiquetar la clase del fallo en el registro de auditoría.
func (e *ErrorEnvio) EsTransporte() bool {
	return e.Transporte
}
