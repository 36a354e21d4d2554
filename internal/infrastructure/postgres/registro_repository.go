package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
)

var _ repository.RegistroRepository = (*RegistroRepo)(nil)

// RegistroRepo implementa RegistroRepository sobre PostgreSQL.
type RegistroRepo struct {
	q Querier
}

// NewRegistroRepository construye el repositorio.
func NewRegistroRepository(q Querier) *RegistroRepo {
	return &RegistroRepo{q: q}
}

func (r *RegistroRepo) Insertar(ctx context.Context, reg *entity.RegistroEnvio) error {
	meta, err := json.Marshal(reg.Metadata)
	if err != nil {
		return fmt.Errorf("serializar metadata: %w", err)
	}
	const q = `
		INSERT INTO registro_envios (track_id, estado, detalle, ambiente, metadata, creado_en)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err = r.q.QueryRow(ctx, q, reg.TrackID, reg.Estado, reg.Detalle, reg.Ambiente, meta, reg.CreadoEn).Scan(&reg.ID)
	if err != nil {
		return fmt.Errorf("insert registro_envio: %w", err)
	}
	return nil
}

func (r *RegistroRepo) Listar(ctx context.Context, limit int) ([]*entity.RegistroEnvio, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, track_id, estado, detalle, ambiente, metadata, creado_en
		FROM registro_envios
		ORDER BY creado_en DESC
		LIMIT $1`
	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listar registro_envios: %w", err)
	}
	defer rows.Close()
	var list []*entity.RegistroEnvio
	for rows.Next() {
		var reg entity.RegistroEnvio
		var meta []byte
		if err := rows.Scan(&reg.ID, &reg.TrackID, &reg.Estado, &reg.Detalle, &reg.Ambiente, &meta, &reg.CreadoEn); err != nil {
			return nil, fmt.Errorf("scan registro_envio: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &reg.Metadata); err != nil {
				return nil, fmt.Errorf("deserializar metadata: %w", err)
			}
		}
		list = append(list, &reg)
	}
	return list, rows.Err()
}
