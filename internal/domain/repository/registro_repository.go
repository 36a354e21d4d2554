package repository

import (
	"context"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// RegistroRepository define el puerto del log de auditoría de envíos.
type RegistroRepository interface {
	Insertar(ctx context.Context, r *entity.RegistroEnvio) error

	// Listar devuelve las últimas entradas, más recientes primero.
	Listar(ctx context.Context, limit int) ([]*entity.RegistroEnvio, error)
}
