// Package folios implementa los casos de uso de numeración: asignación de
// folios desde rangos CAF, reservas temporales y administración de rangos.
package folios

import (
	"context"
	"fmt"
	"time"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/pkg/logger"
	"github.com/emisordte/emisor-dte/pkg/sii"
)

const (
	// Reintentos del lazo de CAS antes de rendirse con ErrConflict. Cada
	// fallo de CAS significa que otro proceso consumió un folio; releer y
	// volver a intentar resuelve la contención normal.
	maxIntentosCAS = 5

	// Ventana de validez de una reserva temporal.
	duracionReserva = 5 * time.Minute
)

// Asignador entrega folios correlativos garantizando que dos asignaciones
// concurrentes jamás devuelvan el mismo número. Toda la exclusión se apoya
// en el CAS del contador; no hay locks en memoria.
type Asignador struct {
	cafs       repository.CafRepository
	contadores repository.ContadorRepository
	reservas   repository.ReservaRepository
	log        *logger.Logger
	ahora      func() time.Time
}

// NewAsignador construye el caso de uso.
func NewAsignador(
	cafs repository.CafRepository,
	contadores repository.ContadorRepository,
	reservas repository.ReservaRepository,
	log *logger.Logger,
) *Asignador {
	return &Asignador{
		cafs:       cafs,
		contadores: contadores,
		reservas:   reservas,
		log:        log,
		ahora:      time.Now,
	}
}

// SiguienteFolio consume y devuelve el siguiente folio disponible para el
// tipo/ambiente, junto con el rango CAF que lo autoriza.
// Devuelve ErrSinFolios si los rangos cargados están agotados y ErrConflict
// si la contención impidió asignar tras varios reintentos.
func (a *Asignador) SiguienteFolio(ctx context.Context, tipoDTE int, ambiente string) (int64, *entity.RangoFolios, error) {
	folio, _, rango, err := a.asignar(ctx, tipoDTE, ambiente)
	return folio, rango, err
}

// VerSiguiente devuelve el folio que entregaría la próxima asignación, sin
// consumirlo. Es solo informativo: entre el peek y la asignación real otro
// proceso puede tomar ese folio.
func (a *Asignador) VerSiguiente(ctx context.Context, tipoDTE int, ambiente string) (int64, *entity.RangoFolios, error) {
	if err := validarClave(tipoDTE, ambiente); err != nil {
		return 0, nil, err
	}
	rangos, err := a.cafs.ListByTipo(ctx, tipoDTE, ambiente)
	if err != nil {
		return 0, nil, fmt.Errorf("listar rangos: %w", err)
	}
	if len(rangos) == 0 {
		return 0, nil, domain.ErrSinFolios
	}
	ultimo, err := a.contadores.Get(ctx, tipoDTE, ambiente)
	if err != nil {
		return 0, nil, fmt.Errorf("leer contador: %w", err)
	}
	candidato, rango := buscarCandidato(rangos, ultimo)
	if rango == nil {
		return 0, nil, domain.ErrSinFolios
	}
	return candidato, rango, nil
}

// ReservarTemporal toma el siguiente folio igual que SiguienteFolio pero deja
// una reserva con ventana de expiración, para flujos que previsualizan el
// documento antes de confirmarlo. La reserva recuerda el valor previo del
// contador para poder retrocederlo si nadie más avanzó.
func (a *Asignador) ReservarTemporal(ctx context.Context, tipoDTE int, ambiente string) (*entity.ReservaFolio, error) {
	folio, anterior, _, err := a.asignar(ctx, tipoDTE, ambiente)
	if err != nil {
		return nil, err
	}
	reserva := &entity.ReservaFolio{
		TipoDTE:   tipoDTE,
		Ambiente:  ambiente,
		Reservado: folio,
		Anterior:  anterior,
		Expira:    a.ahora().Add(duracionReserva),
	}
	if err := a.reservas.Guardar(ctx, reserva); err != nil {
		// El folio ya se consumió; sin reserva registrada simplemente no se
		// podrá liberar. Preferible a devolver un folio no consumido.
		a.log.Warn().Err(err).Int("tipo_dte", tipoDTE).Int64("folio", folio).
			Msg("folio asignado pero la reserva no se pudo guardar")
	}
	return reserva, nil
}

// Liberar intenta devolver el folio de la reserva vigente al pozo. Es
// best-effort: solo retrocede el contador si nadie lo movió desde la reserva;
// si otro proceso ya avanzó, la reserva se descarta y el folio queda quemado.
func (a *Asignador) Liberar(ctx context.Context, tipoDTE int, ambiente string) error {
	reserva, err := a.reservas.Get(ctx, tipoDTE, ambiente)
	if err != nil {
		return fmt.Errorf("leer reserva: %w", err)
	}
	if reserva == nil {
		return nil
	}
	if !reserva.Vigente(a.ahora()) {
		// La ventana venció: el folio queda quemado, solo se limpia la fila.
		a.log.Debug().Int("tipo_dte", tipoDTE).Str("ambiente", ambiente).
			Int64("folio", reserva.Reservado).Msg("reserva expirada, no se libera")
		return a.reservas.Eliminar(ctx, tipoDTE, ambiente)
	}
	ok, err := a.contadores.CompareAndSwap(ctx, tipoDTE, ambiente, reserva.Reservado, reserva.Anterior)
	if err != nil {
		return fmt.Errorf("retroceder contador: %w", err)
	}
	if !ok {
		a.log.Debug().Int("tipo_dte", tipoDTE).Str("ambiente", ambiente).
			Int64("folio", reserva.Reservado).
			Msg("reserva descartada: el contador ya avanzó")
	}
	if err := a.reservas.Eliminar(ctx, tipoDTE, ambiente); err != nil {
		return fmt.Errorf("eliminar reserva: %w", err)
	}
	return nil
}

// MarcarUsado avanza el contador hasta el folio indicado, para registrar
// documentos numerados fuera del asignador (ej: migración de un sistema
// previo). Es idempotente: marcar un folio ya consumido no hace nada.
func (a *Asignador) MarcarUsado(ctx context.Context, tipoDTE int, ambiente string, folio int64) error {
	if err := validarClave(tipoDTE, ambiente); err != nil {
		return err
	}
	rango, err := a.cafs.RangoDeFolio(ctx, tipoDTE, ambiente, folio)
	if err != nil {
		return fmt.Errorf("buscar rango del folio: %w", err)
	}
	if rango == nil {
		return fmt.Errorf("%w: el folio %d no pertenece a ningún rango autorizado", domain.ErrInvalidInput, folio)
	}

	for intento := 0; intento < maxIntentosCAS; intento++ {
		ultimo, err := a.contadores.Get(ctx, tipoDTE, ambiente)
		if err != nil {
			return fmt.Errorf("leer contador: %w", err)
		}
		if folio <= ultimo {
			return nil
		}
		ok, err := a.contadores.CompareAndSwap(ctx, tipoDTE, ambiente, ultimo, folio)
		if err != nil {
			return fmt.Errorf("avanzar contador: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("marcar folio %d usado: %w", folio, domain.ErrConflict)
}

// asignar es el lazo central: lee el contador, busca el candidato dentro de
// los rangos y lo consume con CAS. Devuelve el folio, el valor previo del
// contador y el rango que autoriza el folio.
func (a *Asignador) asignar(ctx context.Context, tipoDTE int, ambiente string) (int64, int64, *entity.RangoFolios, error) {
	if err := validarClave(tipoDTE, ambiente); err != nil {
		return 0, 0, nil, err
	}
	rangos, err := a.cafs.ListByTipo(ctx, tipoDTE, ambiente)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("listar rangos: %w", err)
	}
	if len(rangos) == 0 {
		return 0, 0, nil, domain.ErrSinFolios
	}

	for intento := 0; intento < maxIntentosCAS; intento++ {
		ultimo, err := a.contadores.Get(ctx, tipoDTE, ambiente)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("leer contador: %w", err)
		}
		candidato, rango := buscarCandidato(rangos, ultimo)
		if rango == nil {
			return 0, 0, nil, domain.ErrSinFolios
		}
		ok, err := a.contadores.CompareAndSwap(ctx, tipoDTE, ambiente, ultimo, candidato)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("consumir folio: %w", err)
		}
		if ok {
			return candidato, ultimo, rango, nil
		}
		a.log.Debug().Int("tipo_dte", tipoDTE).Str("ambiente", ambiente).
			Int("intento", intento+1).Msg("CAS de folio perdido, reintentando")
	}
	return 0, 0, nil, fmt.Errorf("asignar folio tipo %d: %w", tipoDTE, domain.ErrConflict)
}

// buscarCandidato recorre los rangos (ordenados por Desde ascendente) y
// devuelve el primer folio posterior a ultimo que algún rango autoriza.
// Devuelve rango nil cuando todos están agotados.
func buscarCandidato(rangos []*entity.RangoFolios, ultimo int64) (int64, *entity.RangoFolios) {
	for _, r := range rangos {
		candidato := ultimo + 1
		if candidato < r.Desde {
			candidato = r.Desde
		}
		if candidato < r.Hasta {
			return candidato, r
		}
	}
	return 0, nil
}

func validarClave(tipoDTE int, ambiente string) error {
	if !sii.EsTipoValido(tipoDTE) {
		return fmt.Errorf("%w: tipo de DTE %d desconocido", domain.ErrInvalidInput, tipoDTE)
	}
	if !sii.EsAmbienteValido(ambiente) {
		return fmt.Errorf("%w: ambiente %q desconocido", domain.ErrInvalidInput, ambiente)
	}
	return nil
}
