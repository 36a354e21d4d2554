package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
)

var _ repository.CafRepository = (*CafRepo)(nil)

// CafRepo implementa CafRepository sobre PostgreSQL.
type CafRepo struct {
	q Querier
}

// NewCafRepository construye el repositorio. Pasar pool o tx (Querier).
func NewCafRepository(q Querier) *CafRepo {
	return &CafRepo{q: q}
}

func (r *CafRepo) Create(ctx context.Context, rango *entity.RangoFolios) error {
	if rango.ID == "" {
		rango.ID = uuid.New().String()
	}
	solapado, err := r.existeSolape(ctx, rango)
	if err != nil {
		return err
	}
	if solapado {
		return domain.ErrRangoSolapado
	}
	const q = `
		INSERT INTO rangos_folios
			(id, tipo_dte, desde, hasta, ambiente, xml_autorizacion, cargado_en, actualizado_en)
		VALUES
			($1, $2, $3, $4, $5, $6, now(), now())`
	_, err = r.q.Exec(ctx, q,
		rango.ID, rango.TipoDTE, rango.Desde, rango.Hasta, rango.Ambiente, rango.XMLAutorizacion,
	)
	if err != nil {
		return fmt.Errorf("insert rango_folios: %w", err)
	}
	return nil
}

func (r *CafRepo) GetByID(ctx context.Context, id string) (*entity.RangoFolios, error) {
	const q = `
		SELECT id, tipo_dte, desde, hasta, ambiente, xml_autorizacion, cargado_en, actualizado_en
		FROM rangos_folios WHERE id = $1`
	rango, err := scanRango(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rango_folios por id: %w", err)
	}
	return rango, nil
}

// ListByTipo es la consulta crítica del asignador: los rangos del tipo/ambiente
// ordenados por desde ascendente, para recorrerlos buscando el primer folio libre.
func (r *CafRepo) ListByTipo(ctx context.Context, tipoDTE int, ambiente string) ([]*entity.RangoFolios, error) {
	const q = `
		SELECT id, tipo_dte, desde, hasta, ambiente, xml_autorizacion, cargado_en, actualizado_en
		FROM rangos_folios
		WHERE tipo_dte = $1 AND ambiente = $2
		ORDER BY desde ASC`
	return r.listar(ctx, q, tipoDTE, ambiente)
}

func (r *CafRepo) List(ctx context.Context, ambiente string) ([]*entity.RangoFolios, error) {
	const q = `
		SELECT id, tipo_dte, desde, hasta, ambiente, xml_autorizacion, cargado_en, actualizado_en
		FROM rangos_folios
		WHERE ambiente = $1
		ORDER BY tipo_dte, desde ASC`
	return r.listar(ctx, q, ambiente)
}

func (r *CafRepo) Update(ctx context.Context, rango *entity.RangoFolios) error {
	solapado, err := r.existeSolape(ctx, rango)
	if err != nil {
		return err
	}
	if solapado {
		return domain.ErrRangoSolapado
	}
	const q = `
		UPDATE rangos_folios
		SET tipo_dte = $2, desde = $3, hasta = $4, ambiente = $5,
		    xml_autorizacion = $6, actualizado_en = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q,
		rango.ID, rango.TipoDTE, rango.Desde, rango.Hasta, rango.Ambiente, rango.XMLAutorizacion,
	)
	if err != nil {
		return fmt.Errorf("update rango_folios: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CafRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM rangos_folios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rango_folios: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CafRepo) RangoDeFolio(ctx context.Context, tipoDTE int, ambiente string, folio int64) (*entity.RangoFolios, error) {
	const q = `
		SELECT id, tipo_dte, desde, hasta, ambiente, xml_autorizacion, cargado_en, actualizado_en
		FROM rangos_folios
		WHERE tipo_dte = $1 AND ambiente = $2 AND desde <= $3 AND hasta > $3
		LIMIT 1`
	rango, err := scanRango(r.q.QueryRow(ctx, q, tipoDTE, ambiente, folio))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rango de folio: %w", err)
	}
	return rango, nil
}

// existeSolape detecta solapes con la fórmula max(desde) < min(hasta),
// excluyendo el propio rango en ediciones. La comparación es estricta
// porque hasta es cota exclusiva: rangos adyacentes no solapan.
func (r *CafRepo) existeSolape(ctx context.Context, rango *entity.RangoFolios) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM rangos_folios
			WHERE tipo_dte = $1 AND ambiente = $2 AND id <> $3
			  AND GREATEST(desde, $4::bigint) < LEAST(hasta, $5::bigint)
		)`
	var existe bool
	err := r.q.QueryRow(ctx, q, rango.TipoDTE, rango.Ambiente, rango.ID, rango.Desde, rango.Hasta).Scan(&existe)
	if err != nil {
		return false, fmt.Errorf("verificar solape: %w", err)
	}
	return existe, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar scanRango.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanRango(row pgxScanner) (*entity.RangoFolios, error) {
	var r entity.RangoFolios
	err := row.Scan(
		&r.ID, &r.TipoDTE, &r.Desde, &r.Hasta, &r.Ambiente,
		&r.XMLAutorizacion, &r.CargadoEn, &r.ActualizadoEn,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *CafRepo) listar(ctx context.Context, q string, args ...any) ([]*entity.RangoFolios, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listar rangos_folios: %w", err)
	}
	defer rows.Close()
	var list []*entity.RangoFolios
	for rows.Next() {
		rango, err := scanRango(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rango_folios: %w", err)
		}
		list = append(list, rango)
	}
	return list, rows.Err()
}
