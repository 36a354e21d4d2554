package entity

import "time"

// ContadorFolio guarda el último folio consumido por (tipo, ambiente).
// Es monótono no decreciente salvo liberación explícita de una reserva
// (ver ReservaFolio) o corrección administrativa directa en la DB.
// Toda escritura pasa por compare-and-swap en el repositorio: dos
// asignaciones concurrentes jamás deben entregar el mismo folio.
type ContadorFolio struct {
	TipoDTE       int
	Ambiente      string
	Ultimo        int64 // 0 = nunca se ha consumido un folio
	ActualizadoEn time.Time
}

// ReservaFolio registra una toma temporal de folio para flujos optimistas
// (ej: previsualización de boleta antes de confirmar el pedido).
// La liberación es best-effort: si otro proceso avanzó el contador más allá
// de Reservado, la reserva se descarta en silencio sin tocar el contador.
type ReservaFolio struct {
	TipoDTE   int
	Ambiente  string
	Reservado int64 // Folio tomado (valor actual del contador al reservar)
	Anterior  int64 // Valor previo del contador, al que se intenta volver
	Expira    time.Time
}

// Vigente indica si la reserva sigue dentro de su ventana de validez.
func (r *ReservaFolio) Vigente(ahora time.Time) bool {
	return ahora.Before(r.Expira)
}
