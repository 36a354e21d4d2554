package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
)

var _ repository.ColaRepository = (*ColaRepo)(nil)

// claveBarrido identifica el advisory lock del barrido de la cola.
// Un solo barrido a la vez en todo el clúster de procesos.
const claveBarrido = 727231

// ColaRepo implementa ColaRepository sobre PostgreSQL.
// A diferencia del resto de repos recibe el pool completo: el advisory lock
// del barrido es de sesión y necesita una conexión dedicada mientras dure.
type ColaRepo struct {
	pool    *pgxpool.Pool
	barrido *pgxpool.Conn // conexión que sostiene el lock; nil si no hay barrido
}

// NewColaRepository construye el repositorio.
func NewColaRepository(pool *pgxpool.Pool) *ColaRepo {
	return &ColaRepo{pool: pool}
}

func (r *ColaRepo) Insertar(ctx context.Context, t *entity.TrabajoCola) error {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("serializar payload: %w", err)
	}
	const q = `
		INSERT INTO trabajos_cola (tipo, payload, intentos, creado_en, proximo_intento)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err = r.pool.QueryRow(ctx, q, t.Tipo, payload, t.Intentos, t.CreadoEn, t.ProximoIntento).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert trabajo_cola: %w", err)
	}
	return nil
}

func (r *ColaRepo) GetByID(ctx context.Context, id int64) (*entity.TrabajoCola, error) {
	const q = `
		SELECT id, tipo, payload, intentos, creado_en, proximo_intento
		FROM trabajos_cola WHERE id = $1`
	t, err := scanTrabajo(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trabajo_cola: %w", err)
	}
	return t, nil
}

// Pendientes devuelve los trabajos cuyo próximo intento ya venció, en orden
// de llegada. El barrido único (advisory lock) garantiza que nadie más los
// está procesando a la vez.
func (r *ColaRepo) Pendientes(ctx context.Context, ahora time.Time) ([]*entity.TrabajoCola, error) {
	const q = `
		SELECT id, tipo, payload, intentos, creado_en, proximo_intento
		FROM trabajos_cola
		WHERE proximo_intento <= $1
		ORDER BY creado_en ASC`
	rows, err := r.pool.Query(ctx, q, ahora)
	if err != nil {
		return nil, fmt.Errorf("listar trabajos pendientes: %w", err)
	}
	defer rows.Close()
	var list []*entity.TrabajoCola
	for rows.Next() {
		t, err := scanTrabajo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trabajo_cola: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *ColaRepo) ActualizarIntento(ctx context.Context, id int64, intentos int, proximo time.Time) error {
	const q = `UPDATE trabajos_cola SET intentos = $2, proximo_intento = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, intentos, proximo)
	if err != nil {
		return fmt.Errorf("actualizar intento: %w", err)
	}
	return nil
}

func (r *ColaRepo) ResetIntentos(ctx context.Context, id int64) error {
	const q = `UPDATE trabajos_cola SET intentos = 0, proximo_intento = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("reset intentos: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ColaRepo) ResetIntentosEnTope(ctx context.Context, tope int) (int64, error) {
	const q = `UPDATE trabajos_cola SET intentos = 0, proximo_intento = now() WHERE intentos >= $1`
	tag, err := r.pool.Exec(ctx, q, tope)
	if err != nil {
		return 0, fmt.Errorf("reset intentos en tope: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ColaRepo) Eliminar(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM trabajos_cola WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("eliminar trabajo_cola: %w", err)
	}
	return nil
}

func (r *ColaRepo) Estadisticas(ctx context.Context, tope int, ahora time.Time) (*repository.EstadisticasCola, error) {
	const q = `
		SELECT
			count(*) FILTER (WHERE intentos < $1),
			count(*) FILTER (WHERE intentos < $1 AND proximo_intento > $2),
			count(*) FILTER (WHERE intentos >= $1)
		FROM trabajos_cola`
	var e repository.EstadisticasCola
	if err := r.pool.QueryRow(ctx, q, tope, ahora).Scan(&e.Pendientes, &e.EnEspera, &e.Fallidos); err != nil {
		return nil, fmt.Errorf("estadísticas de cola: %w", err)
	}
	return &e, nil
}

// AdquirirBarrido toma el advisory lock en una conexión dedicada, que se
// retiene hasta LiberarBarrido. Devuelve false si otro proceso lo tiene.
func (r *ColaRepo) AdquirirBarrido(ctx context.Context) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("adquirir conexión de barrido: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, claveBarrido).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	r.barrido = conn
	return true, nil
}

func (r *ColaRepo) LiberarBarrido(ctx context.Context) error {
	if r.barrido == nil {
		return nil
	}
	_, err := r.barrido.Exec(ctx, `SELECT pg_advisory_unlock($1)`, claveBarrido)
	r.barrido.Release()
	r.barrido = nil
	if err != nil {
		return fmt.Errorf("pg_advisory_unlock: %w", err)
	}
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func scanTrabajo(row pgxScanner) (*entity.TrabajoCola, error) {
	var t entity.TrabajoCola
	var payload []byte
	err := row.Scan(&t.ID, &t.Tipo, &payload, &t.Intentos, &t.CreadoEn, &t.ProximoIntento)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &t.Payload); err != nil {
		return nil, fmt.Errorf("deserializar payload: %w", err)
	}
	return &t, nil
}
