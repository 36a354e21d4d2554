package cola

import (
	"context"
	"fmt"
	"time"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/pkg/logger"
)

// Encolador registra trabajos en la cola durable. Encolar es lo único que ve
// el flujo de emisión: el envío real ocurre después, en el barrido.
type Encolador struct {
	cola      repository.ColaRepository
	registros repository.RegistroRepository
	almacen   AlmacenArchivos
	log       *logger.Logger
}

// NewEncolador construye el caso de uso.
func NewEncolador(
	cola repository.ColaRepository,
	registros repository.RegistroRepository,
	almacen AlmacenArchivos,
	log *logger.Logger,
) *Encolador {
	return &Encolador{cola: cola, registros: registros, almacen: almacen, log: log}
}

// SolicitudDTE describe un DTE a encolar. Exactamente uno de RutaArchivo o
// ArchivoRef debe venir: RutaArchivo se mueve al almacén protegido;
// ArchivoRef se usa tal cual (el archivo ya está protegido).
type SolicitudDTE struct {
	RutaArchivo string
	ArchivoRef  string
	Ambiente    string
	Token       string
	Meta        map[string]string // tipo DTE, folio, etc. para el log de auditoría
	SinRegistro bool              // el caller ya dejó su propia entrada de auditoría
}

// EncolarDTE agrega un trabajo de envío de DTE y deja constancia en el log.
// El trabajo queda elegible para el próximo barrido de inmediato.
func (e *Encolador) EncolarDTE(ctx context.Context, sol SolicitudDTE) (*entity.TrabajoCola, error) {
	ref := sol.ArchivoRef
	if ref == "" {
		var err error
		ref, err = e.almacen.Proteger(sol.RutaArchivo)
		if err != nil {
			return nil, fmt.Errorf("proteger archivo del DTE: %w", err)
		}
	}

	ahora := time.Now()
	trabajo := &entity.TrabajoCola{
		Tipo: entity.TrabajoDTE,
		Payload: entity.PayloadTrabajo{
			ArchivoRef: ref,
			Ambiente:   sol.Ambiente,
			Token:      sol.Token,
			Meta:       sol.Meta,
		},
		Intentos:       0,
		CreadoEn:       ahora,
		ProximoIntento: ahora,
	}
	if err := e.cola.Insertar(ctx, trabajo); err != nil {
		return nil, fmt.Errorf("insertar trabajo en la cola: %w", err)
	}

	if !sol.SinRegistro {
		e.registrar(ctx, trabajo, entity.EstadoEncolado, "DTE en cola de envío")
	}
	e.log.Info().Int64("trabajo_id", trabajo.ID).Str("ambiente", sol.Ambiente).
		Msg("DTE encolado")
	return trabajo, nil
}

// EncolarInforme agrega un informe XML (va inline en el payload, no hay
// archivo que proteger).
func (e *Encolador) EncolarInforme(ctx context.Context, xml []byte, ambiente, token string, meta map[string]string) (*entity.TrabajoCola, error) {
	ahora := time.Now()
	trabajo := &entity.TrabajoCola{
		Tipo: entity.TrabajoInforme,
		Payload: entity.PayloadTrabajo{
			XML:      string(xml),
			Ambiente: ambiente,
			Token:    token,
			Meta:     meta,
		},
		Intentos:       0,
		CreadoEn:       ahora,
		ProximoIntento: ahora,
	}
	if err := e.cola.Insertar(ctx, trabajo); err != nil {
		return nil, fmt.Errorf("insertar informe en la cola: %w", err)
	}
	e.registrar(ctx, trabajo, entity.EstadoEncolado, "informe en cola de envío")
	return trabajo, nil
}

// registrar deja una entrada de auditoría; un fallo del log no detiene el flujo.
func (e *Encolador) registrar(ctx context.Context, t *entity.TrabajoCola, estado, detalle string) {
	reg := &entity.RegistroEnvio{
		Estado:   estado,
		Detalle:  detalle,
		Ambiente: t.Payload.Ambiente,
		Metadata: metaConTrabajo(t),
		CreadoEn: time.Now(),
	}
	if err := e.registros.Insertar(ctx, reg); err != nil {
		e.log.Warn().Err(err).Int64("trabajo_id", t.ID).Msg("no se pudo registrar el encolado")
	}
}

// metaConTrabajo copia la metadata del payload agregando el ID del trabajo.
func metaConTrabajo(t *entity.TrabajoCola) map[string]string {
	meta := make(map[string]string, len(t.Payload.Meta)+2)
	for k, v := range t.Payload.Meta {
		meta[k] = v
	}
	meta["trabajo_id"] = fmt.Sprint(t.ID)
	meta["tipo_trabajo"] = t.Tipo
	return meta
}
