package repository

import (
	"context"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// CafRepository define el puerto de persistencia para rangos CAF.
type CafRepository interface {
	Create(ctx context.Context, r *entity.RangoFolios) error
	GetByID(ctx context.Context, id string) (*entity.RangoFolios, error)

	// ListByTipo devuelve los rangos del tipo/ambiente ordenados por Desde
	// ascendente. Es la consulta crítica del asignador de folios.
	ListByTipo(ctx context.Context, tipoDTE int, ambiente string) ([]*entity.RangoFolios, error)

	// List lista todos los rangos de un ambiente (para la vista de administración).
	List(ctx context.Context, ambiente string) ([]*entity.RangoFolios, error)

	Update(ctx context.Context, r *entity.RangoFolios) error
	Delete(ctx context.Context, id string) error

	// RangoDeFolio devuelve el rango que contiene el folio dado, o nil, nil
	// si ningún rango lo cubre.
	RangoDeFolio(ctx context.Context, tipoDTE int, ambiente string, folio int64) (*entity.RangoFolios, error)
}
