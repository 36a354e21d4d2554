package folios

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/pkg/logger"
)

// ParseCafFunc parsea el XML de un CAF y extrae sus metadatos. La
// implementación concreta vive en infraestructura; el caso de uso solo
// conoce la firma.
type ParseCafFunc func(data []byte) (*entity.InfoCaf, error)

// AdminCaf administra los rangos CAF cargados: importación desde el XML del
// SII, listados y mantención.
type AdminCaf struct {
	cafs     repository.CafRepository
	parseCaf ParseCafFunc
	log      *logger.Logger
}

// NewAdminCaf construye el caso de uso.
func NewAdminCaf(cafs repository.CafRepository, parseCaf ParseCafFunc, log *logger.Logger) *AdminCaf {
	return &AdminCaf{cafs: cafs, parseCaf: parseCaf, log: log}
}

// ImportarCaf registra el rango de folios de un CAF descargado del SII.
// El H del XML es inclusivo; el rango se guarda con cota superior exclusiva
// (Hasta = H + 1). Rechaza con ErrRangoSolapado si el rango comparte folios
// con uno ya cargado del mismo tipo y ambiente.
func (s *AdminCaf) ImportarCaf(ctx context.Context, xml []byte, ambiente string) (*entity.RangoFolios, error) {
	info, err := s.parseCaf(xml)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validarClave(info.TipoDTE, ambiente); err != nil {
		return nil, err
	}

	ahora := time.Now()
	rango := &entity.RangoFolios{
		ID:              uuid.NewString(),
		TipoDTE:         info.TipoDTE,
		Desde:           info.Desde,
		Hasta:           info.Hasta + 1,
		Ambiente:        ambiente,
		XMLAutorizacion: string(xml),
		CargadoEn:       ahora,
		ActualizadoEn:   ahora,
	}
	if err := s.cafs.Create(ctx, rango); err != nil {
		return nil, err
	}
	s.log.Info().Int("tipo_dte", rango.TipoDTE).Str("ambiente", ambiente).
		Int64("desde", rango.Desde).Int64("hasta", rango.Hasta).
		Str("rut_emisor", info.RutEmisor).
		Msg("CAF importado")
	return rango, nil
}

// Listar devuelve todos los rangos del ambiente.
func (s *AdminCaf) Listar(ctx context.Context, ambiente string) ([]*entity.RangoFolios, error) {
	return s.cafs.List(ctx, ambiente)
}

// Obtener devuelve un rango por ID o ErrNotFound.
func (s *AdminCaf) Obtener(ctx context.Context, id string) (*entity.RangoFolios, error) {
	rango, err := s.cafs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rango == nil {
		return nil, domain.ErrNotFound
	}
	return rango, nil
}

// Actualizar corrige las cotas de un rango ya cargado (uso administrativo,
// ej: acotar un CAF comprometido). Mantiene la validación de solape.
func (s *AdminCaf) Actualizar(ctx context.Context, id string, desde, hasta int64) (*entity.RangoFolios, error) {
	rango, err := s.Obtener(ctx, id)
	if err != nil {
		return nil, err
	}
	if desde <= 0 || hasta <= desde {
		return nil, fmt.Errorf("%w: cotas de rango inválidas [%d, %d)", domain.ErrInvalidInput, desde, hasta)
	}
	rango.Desde = desde
	rango.Hasta = hasta
	rango.ActualizadoEn = time.Now()
	if err := s.cafs.Update(ctx, rango); err != nil {
		return nil, err
	}
	return rango, nil
}

// Eliminar borra un rango. Los folios ya consumidos no se ven afectados.
func (s *AdminCaf) Eliminar(ctx context.Context, id string) error {
	if _, err := s.Obtener(ctx, id); err != nil {
		return err
	}
	return s.cafs.Delete(ctx, id)
}

// InfoCaf devuelve los metadatos de autorización de un rango. Si el XML
// guardado no parsea (CAF cargado a mano, sin XML), degrada a las cotas
// numéricas almacenadas.
func (s *AdminCaf) InfoCaf(ctx context.Context, id string) (*entity.InfoCaf, error) {
	rango, err := s.Obtener(ctx, id)
	if err != nil {
		return nil, err
	}
	if rango.XMLAutorizacion != "" {
		if info, err := s.parseCaf([]byte(rango.XMLAutorizacion)); err == nil {
			return info, nil
		}
		s.log.Warn().Str("rango_id", id).Msg("XML del CAF no parsea; usando cotas almacenadas")
	}
	return infoDeCotas(rango), nil
}

// InfoPorTipo devuelve los metadatos del CAF vigente para un tipo: el que
// autoriza los folios más altos cargados del tipo/ambiente. Misma degradación
// que InfoCaf cuando el XML no parsea.
func (s *AdminCaf) InfoPorTipo(ctx context.Context, tipoDTE int, ambiente string) (*entity.InfoCaf, error) {
	if err := validarClave(tipoDTE, ambiente); err != nil {
		return nil, err
	}
	rangos, err := s.cafs.ListByTipo(ctx, tipoDTE, ambiente)
	if err != nil {
		return nil, err
	}
	if len(rangos) == 0 {
		return nil, domain.ErrNotFound
	}
	rango := rangos[len(rangos)-1] // ordenados por Desde ascendente
	if rango.XMLAutorizacion != "" {
		if info, err := s.parseCaf([]byte(rango.XMLAutorizacion)); err == nil {
			return info, nil
		}
		s.log.Warn().Int("tipo_dte", tipoDTE).Msg("XML del CAF no parsea; usando cotas almacenadas")
	}
	return infoDeCotas(rango), nil
}

func infoDeCotas(rango *entity.RangoFolios) *entity.InfoCaf {
	return &entity.InfoCaf{
		TipoDTE: rango.TipoDTE,
		Desde:   rango.Desde,
		Hasta:   rango.Hasta - 1,
	}
}
