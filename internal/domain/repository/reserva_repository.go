package repository

import (
	"context"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// ReservaRepository define el puerto de las reservas temporales de folio.
// Hay a lo más una reserva por (tipo, ambiente); guardar sobreescribe.
type ReservaRepository interface {
	Guardar(ctx context.Context, r *entity.ReservaFolio) error

	// Get devuelve la reserva vigente o nil, nil si no hay.
	Get(ctx context.Context, tipoDTE int, ambiente string) (*entity.ReservaFolio, error)

	Eliminar(ctx context.Context, tipoDTE int, ambiente string) error
}
