package postgres

import (
	"context"
	"fmt"

	"github.com/emisordte/emisor-dte/internal/domain/repository"
)

var _ repository.ContadorRepository = (*ContadorRepo)(nil)

// ContadorRepo implementa ContadorRepository sobre PostgreSQL.
// El CAS es un UPDATE condicionado al valor previamente leído: ninguna
// asignación sobreescribe un contador que otro proceso ya avanzó.
type ContadorRepo struct {
	q Querier
}

// NewContadorRepository construye el repositorio. Pasar pool o tx (Querier).
func NewContadorRepository(q Querier) *ContadorRepo {
	return &ContadorRepo{q: q}
}

// Get devuelve el último folio consumido, inicializando la fila en 0 si no existe.
func (r *ContadorRepo) Get(ctx context.Context, tipoDTE int, ambiente string) (int64, error) {
	const upsert = `
		INSERT INTO contadores_folio (tipo_dte, ambiente, ultimo, actualizado_en)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (tipo_dte, ambiente) DO NOTHING`
	if _, err := r.q.Exec(ctx, upsert, tipoDTE, ambiente); err != nil {
		return 0, fmt.Errorf("init contador_folio: %w", err)
	}
	const q = `SELECT ultimo FROM contadores_folio WHERE tipo_dte = $1 AND ambiente = $2`
	var ultimo int64
	if err := r.q.QueryRow(ctx, q, tipoDTE, ambiente).Scan(&ultimo); err != nil {
		return 0, fmt.Errorf("get contador_folio: %w", err)
	}
	return ultimo, nil
}

// CompareAndSwap escribe nuevo solo si el valor vigente sigue siendo esperado.
// RowsAffected == 0 significa que otro proceso ganó la carrera: se devuelve
// false sin error para que el caller relea y reintente.
func (r *ContadorRepo) CompareAndSwap(ctx context.Context, tipoDTE int, ambiente string, esperado, nuevo int64) (bool, error) {
	const q = `
		UPDATE contadores_folio
		SET ultimo = $4, actualizado_en = now()
		WHERE tipo_dte = $1 AND ambiente = $2 AND ultimo = $3`
	tag, err := r.q.Exec(ctx, q, tipoDTE, ambiente, esperado, nuevo)
	if err != nil {
		return false, fmt.Errorf("cas contador_folio: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
