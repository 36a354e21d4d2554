package repository

import (
	"context"
	"time"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// EstadisticasCola resumen del estado de la cola para el panel del operador.
type EstadisticasCola struct {
	Pendientes int64 // trabajos con intentos bajo el tope
	EnEspera   int64 // trabajos con ProximoIntento en el futuro
	Fallidos   int64 // trabajos cuyos intentos alcanzaron el tope
}

// ColaRepository define el puerto de la cola durable de envío.
type ColaRepository interface {
	Insertar(ctx context.Context, t *entity.TrabajoCola) error
	GetByID(ctx context.Context, id int64) (*entity.TrabajoCola, error)

	// Pendientes devuelve los trabajos cuyo ProximoIntento ya venció,
	// en orden de creación.
	Pendientes(ctx context.Context, ahora time.Time) ([]*entity.TrabajoCola, error)

	// ActualizarIntento fija el contador de intentos y el próximo momento
	// de ejecución (reintento con espera fija).
	ActualizarIntento(ctx context.Context, id int64, intentos int, proximo time.Time) error

	// ResetIntentos vuelve los intentos a cero (override manual del operador).
	ResetIntentos(ctx context.Context, id int64) error

	// ResetIntentosEnTope resetea en bloque los trabajos cuyos intentos
	// alcanzaron el tope. Devuelve cuántos se resetearon.
	ResetIntentosEnTope(ctx context.Context, tope int) (int64, error)

	Eliminar(ctx context.Context, id int64) error

	Estadisticas(ctx context.Context, tope int, ahora time.Time) (*EstadisticasCola, error)

	// AdquirirBarrido toma el lock de barrido único (single-flight). Devuelve
	// false si otro proceso tiene un barrido en curso. Debe liberarse siempre
	// con LiberarBarrido.
	AdquirirBarrido(ctx context.Context) (bool, error)
	LiberarBarrido(ctx context.Context) error
}
