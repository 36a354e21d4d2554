// Package dte orquesta la emisión de documentos tributarios: cálculo de
// totales, numeración con folio CAF y encolado del envío al SII.
package dte

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emisordte/emisor-dte/internal/application/cola"
	"github.com/emisordte/emisor-dte/internal/application/folios"
	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
	"github.com/emisordte/emisor-dte/pkg/config"
	"github.com/emisordte/emisor-dte/pkg/logger"
	"github.com/emisordte/emisor-dte/pkg/sii"
)

// DatosEmisor identifica a la empresa emisora en el encabezado del DTE.
type DatosEmisor struct {
	RUT         string
	RazonSocial string
}

// Receptor identifica al destinatario del documento.
type Receptor struct {
	RUT         string
	RazonSocial string
	Giro        string
	Direccion   string
	Comuna      string
}

// SolicitudEmision es la entrada del pipeline de emisión.
type SolicitudEmision struct {
	TipoDTE  int
	Receptor Receptor
	Lineas   []totales.Linea
	Ajustes  []totales.Ajuste
	TasaIVA  *decimal.Decimal  // nil usa la tasa vigente (19%)
	Meta     map[string]string // referencia externa (pedido, caja, etc.)
}

// Documento es el DTE ya numerado y totalizado, listo para renderizar.
type Documento struct {
	TipoDTE      int
	Folio        int64
	FechaEmision time.Time
	Emisor       DatosEmisor
	Receptor     Receptor
	Lineas       []totales.Linea
	TasaIVA      decimal.Decimal
	Totales      totales.Totales
}

// tasaEfectiva resuelve la tasa de IVA de la solicitud: la explícita o la
// vigente por defecto.
func tasaEfectiva(sol SolicitudEmision) decimal.Decimal {
	if sol.TasaIVA != nil {
		return *sol.TasaIVA
	}
	return decimal.NewFromInt(sii.TasaIVA)
}

// ResultadoEmision es lo que ve el caller síncrono: el documento quedó
// numerado y en cola; el resultado del envío llega después por el log.
type ResultadoEmision struct {
	Documento *Documento
	TrabajoID int64
	RangoID   string // rango CAF que autorizó el folio
}

// GeneradorXML renderiza el Documento al XML del formato DTE.
type GeneradorXML interface {
	GenerarXML(doc *Documento) ([]byte, error)
}

// GeneradorPDF renderiza la representación impresa del Documento.
type GeneradorPDF interface {
	GenerarPDF(doc *Documento) ([]byte, error)
}

// Emision es el caso de uso de emisión completa.
type Emision struct {
	asignador *folios.Asignador
	encolador *cola.Encolador
	almacen   cola.AlmacenArchivos
	xml       GeneradorXML
	cfg       config.SIIConfig
	log       *logger.Logger
}

// NewEmision construye el caso de uso.
func NewEmision(
	asignador *folios.Asignador,
	encolador *cola.Encolador,
	almacen cola.AlmacenArchivos,
	xml GeneradorXML,
	cfg config.SIIConfig,
	log *logger.Logger,
) *Emision {
	return &Emision{
		asignador: asignador,
		encolador: encolador,
		almacen:   almacen,
		xml:       xml,
		cfg:       cfg,
		log:       log,
	}
}

// Emitir ejecuta el pipeline completo: totales, folio, XML y encolado.
// El folio se consume en forma definitiva aunque un paso posterior falle:
// un folio quemado es preferible a uno duplicado.
func (s *Emision) Emitir(ctx context.Context, sol SolicitudEmision) (*ResultadoEmision, error) {
	if err := s.validar(sol); err != nil {
		return nil, err
	}

	tasa := tasaEfectiva(sol)
	tot := totales.Calcular(sol.Lineas, &tasa, sol.Ajustes)

	folio, rango, err := s.asignador.SiguienteFolio(ctx, sol.TipoDTE, s.cfg.Ambiente)
	if err != nil {
		return nil, err
	}

	doc := &Documento{
		TipoDTE:      sol.TipoDTE,
		Folio:        folio,
		FechaEmision: time.Now(),
		Emisor:       DatosEmisor{RUT: s.cfg.RutEmisor, RazonSocial: s.cfg.RazonSocial},
		Receptor:     sol.Receptor,
		Lineas:       sol.Lineas,
		TasaIVA:      tasa,
		Totales:      tot,
	}

	xmlBytes, err := s.xml.GenerarXML(doc)
	if err != nil {
		s.log.Error().Err(err).Int("tipo_dte", doc.TipoDTE).Int64("folio", folio).
			Msg("folio consumido pero el XML no se pudo generar")
		return nil, fmt.Errorf("generar XML del DTE: %w", err)
	}

	nombre := fmt.Sprintf("dte_%d_%d.xml", doc.TipoDTE, folio)
	ref, err := s.almacen.Guardar(nombre, xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("guardar XML del DTE: %w", err)
	}

	meta := map[string]string{
		"tipo_dte": fmt.Sprint(doc.TipoDTE),
		"folio":    fmt.Sprint(folio),
	}
	for k, v := range sol.Meta {
		meta[k] = v
	}
	trabajo, err := s.encolador.EncolarDTE(ctx, cola.SolicitudDTE{
		ArchivoRef: ref,
		Ambiente:   s.cfg.Ambiente,
		Token:      s.cfg.Token,
		Meta:       meta,
	})
	if err != nil {
		return nil, fmt.Errorf("encolar DTE folio %d: %w", folio, err)
	}

	s.log.Info().Int("tipo_dte", doc.TipoDTE).Int64("folio", folio).
		Int64("trabajo_id", trabajo.ID).Msg("DTE emitido y en cola")
	return &ResultadoEmision{Documento: doc, TrabajoID: trabajo.ID, RangoID: rango.ID}, nil
}

// Previsualizar calcula totales y toma un folio en reserva temporal, sin
// generar XML ni encolar nada. El caller puede confirmar emitiendo o soltar
// la reserva con LiberarPrevisualizacion.
func (s *Emision) Previsualizar(ctx context.Context, sol SolicitudEmision) (*Documento, error) {
	if err := s.validar(sol); err != nil {
		return nil, err
	}
	tasa := tasaEfectiva(sol)
	tot := totales.Calcular(sol.Lineas, &tasa, sol.Ajustes)
	reserva, err := s.asignador.ReservarTemporal(ctx, sol.TipoDTE, s.cfg.Ambiente)
	if err != nil {
		return nil, err
	}
	return &Documento{
		TipoDTE:      sol.TipoDTE,
		Folio:        reserva.Reservado,
		FechaEmision: time.Now(),
		Emisor:       DatosEmisor{RUT: s.cfg.RutEmisor, RazonSocial: s.cfg.RazonSocial},
		Receptor:     sol.Receptor,
		Lineas:       sol.Lineas,
		TasaIVA:      tasa,
		Totales:      tot,
	}, nil
}

// LiberarPrevisualizacion suelta la reserva temporal del tipo dado.
func (s *Emision) LiberarPrevisualizacion(ctx context.Context, tipoDTE int) error {
	return s.asignador.Liberar(ctx, tipoDTE, s.cfg.Ambiente)
}

func (s *Emision) validar(sol SolicitudEmision) error {
	if !sii.EsTipoValido(sol.TipoDTE) {
		return fmt.Errorf("%w: tipo de DTE %d desconocido", domain.ErrInvalidInput, sol.TipoDTE)
	}
	if len(sol.Lineas) == 0 {
		return fmt.Errorf("%w: el documento no tiene líneas de detalle", domain.ErrInvalidInput)
	}
	if sol.Receptor.RUT != "" {
		if err := sii.ValidateRUT(sol.Receptor.RUT); err != nil {
			return fmt.Errorf("%w: RUT del receptor %q: %v", domain.ErrInvalidInput, sol.Receptor.RUT, err)
		}
	}
	return nil
}
