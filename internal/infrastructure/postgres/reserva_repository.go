package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
)

var _ repository.ReservaRepository = (*ReservaRepo)(nil)

// ReservaRepo implementa ReservaRepository sobre PostgreSQL.
type ReservaRepo struct {
	q Querier
}

// NewReservaRepository construye el repositorio.
func NewReservaRepository(q Querier) *ReservaRepo {
	return &ReservaRepo{q: q}
}

// Guardar inserta o reemplaza la reserva del (tipo, ambiente).
func (r *ReservaRepo) Guardar(ctx context.Context, res *entity.ReservaFolio) error {
	const q = `
		INSERT INTO reservas_folio (tipo_dte, ambiente, reservado, anterior, expira)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tipo_dte, ambiente)
		DO UPDATE SET reservado = $3, anterior = $4, expira = $5`
	_, err := r.q.Exec(ctx, q, res.TipoDTE, res.Ambiente, res.Reservado, res.Anterior, res.Expira)
	if err != nil {
		return fmt.Errorf("guardar reserva_folio: %w", err)
	}
	return nil
}

func (r *ReservaRepo) Get(ctx context.Context, tipoDTE int, ambiente string) (*entity.ReservaFolio, error) {
	const q = `
		SELECT tipo_dte, ambiente, reservado, anterior, expira
		FROM reservas_folio WHERE tipo_dte = $1 AND ambiente = $2`
	var res entity.ReservaFolio
	err := r.q.QueryRow(ctx, q, tipoDTE, ambiente).Scan(
		&res.TipoDTE, &res.Ambiente, &res.Reservado, &res.Anterior, &res.Expira,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reserva_folio: %w", err)
	}
	return &res, nil
}

func (r *ReservaRepo) Eliminar(ctx context.Context, tipoDTE int, ambiente string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM reservas_folio WHERE tipo_dte = $1 AND ambiente = $2`, tipoDTE, ambiente)
	if err != nil {
		return fmt.Errorf("eliminar reserva_folio: %w", err)
	}
	return nil
}
