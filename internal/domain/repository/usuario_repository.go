package repository

import (
	"context"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// UsuarioRepository define el puerto de persistencia de operadores.
type UsuarioRepository interface {
	Create(ctx context.Context, u *entity.Usuario) error

	// FindByEmail devuelve nil, nil si el email no existe.
	FindByEmail(ctx context.Context, email string) (*entity.Usuario, error)
}
