package cola

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/pkg/logger"
	"github.com/emisordte/emisor-dte/pkg/sii"
)

// Procesador ejecuta el barrido de la cola: toma los trabajos vencidos, los
// envía al SII y aplica la política de reintentos acotados. Un fallo en un
// trabajo jamás detiene el barrido ni se propaga al flujo que encoló; la
// única salida visible de los fallos es el log de auditoría.
type Procesador struct {
	cola      repository.ColaRepository
	registros repository.RegistroRepository
	almacen   AlmacenArchivos
	enviador  EnviadorSII
	tope      int           // intentos máximos antes del descarte terminal
	espera    time.Duration // espera fija entre reintentos
	log       *logger.Logger
	ahora     func() time.Time
}

// NewProcesador construye el procesador. tope y espera vienen de la
// configuración (por defecto 3 intentos con 120 s de espera).
func NewProcesador(
	cola repository.ColaRepository,
	registros repository.RegistroRepository,
	almacen AlmacenArchivos,
	enviador EnviadorSII,
	tope int,
	espera time.Duration,
	log *logger.Logger,
) *Procesador {
	return &Procesador{
		cola:      cola,
		registros: registros,
		almacen:   almacen,
		enviador:  enviador,
		tope:      tope,
		espera:    espera,
		log:       log,
		ahora:     time.Now,
	}
}

// Barrer procesa todos los trabajos vencidos bajo el lock de barrido único.
// Devuelve cuántos trabajos se intentaron. Si otro proceso tiene un barrido
// en curso no hace nada: el trabajo quedará para el próximo tick.
func (p *Procesador) Barrer(ctx context.Context) (int, error) {
	ok, err := p.cola.AdquirirBarrido(ctx)
	if err != nil {
		return 0, fmt.Errorf("adquirir lock de barrido: %w", err)
	}
	if !ok {
		p.log.Debug().Msg("barrido en curso en otro proceso; se omite")
		return 0, nil
	}
	defer func() {
		if err := p.cola.LiberarBarrido(ctx); err != nil {
			p.log.Error().Err(err).Msg("no se pudo liberar el lock de barrido")
		}
	}()

	trabajos, err := p.cola.Pendientes(ctx, p.ahora())
	if err != nil {
		return 0, fmt.Errorf("listar trabajos vencidos: %w", err)
	}
	for _, t := range trabajos {
		if err := p.procesarTrabajo(ctx, t); err != nil {
			p.log.Warn().Err(err).Int64("trabajo_id", t.ID).Int("intentos", t.Intentos+1).
				Msg("envío fallido")
		}
	}
	return len(trabajos), nil
}

// Procesar ejecuta un trabajo puntual de inmediato, ignorando su
// ProximoIntento (override manual del operador). Devuelve el error del envío
// para que el operador lo vea en línea.
func (p *Procesador) Procesar(ctx context.Context, id int64) error {
	trabajo, err := p.cola.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("buscar trabajo: %w", err)
	}
	if trabajo == nil {
		return domain.ErrNotFound
	}
	return p.procesarTrabajo(ctx, trabajo)
}

// Reintentar vuelve a cero los intentos de un trabajo y lo deja vencido, de
// modo que el próximo barrido lo tome de inmediato.
func (p *Procesador) Reintentar(ctx context.Context, id int64) error {
	return p.cola.ResetIntentos(ctx, id)
}

// ReintentarFallidos resetea en bloque los trabajos que alcanzaron el tope.
// Devuelve cuántos volvieron a la cola. Como el barrido elimina los trabajos
// al llegar al tope, filas con intentos en el tope solo existen por
// intervención manual sobre la tabla (restaurar un trabajo descartado); la
// operación es la red de seguridad del operador para ese caso.
func (p *Procesador) ReintentarFallidos(ctx context.Context) (int64, error) {
	return p.cola.ResetIntentosEnTope(ctx, p.tope)
}

// Cancelar descarta un trabajo sin enviarlo, limpiando su archivo y dejando
// constancia terminal en el log.
func (p *Procesador) Cancelar(ctx context.Context, id int64) error {
	trabajo, err := p.cola.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("buscar trabajo: %w", err)
	}
	if trabajo == nil {
		return domain.ErrNotFound
	}
	if err := p.cola.Eliminar(ctx, id); err != nil {
		return fmt.Errorf("eliminar trabajo: %w", err)
	}
	p.limpiarArchivo(trabajo)
	p.registrar(ctx, trabajo, "", entity.EstadoFallido, "cancelado por el operador")
	return nil
}

// Estadisticas devuelve el resumen de la cola para el panel del operador.
func (p *Procesador) Estadisticas(ctx context.Context) (*repository.EstadisticasCola, error) {
	return p.cola.Estadisticas(ctx, p.tope, p.ahora())
}

// Registro devuelve las últimas entradas del log de envíos.
func (p *Procesador) Registro(ctx context.Context, limit int) ([]*entity.RegistroEnvio, error) {
	return p.registros.Listar(ctx, limit)
}

// Estado consulta en el SII el estado de un envío previo por su trackID.
func (p *Procesador) Estado(ctx context.Context, trackID, ambiente, token string) (string, error) {
	if ambiente == sii.AmbienteDev {
		return "EPR", nil
	}
	return p.enviador.Estado(ctx, trackID, ambiente, token)
}

// ── núcleo ────────────────────────────────────────────────────────────────────

func (p *Procesador) procesarTrabajo(ctx context.Context, t *entity.TrabajoCola) error {
	resultado, err := p.enviar(ctx, t)
	if err != nil {
		if esPermanente(err) {
			p.descartar(ctx, t, err.Error())
			return err
		}
		return p.fallo(ctx, t, err)
	}

	// Éxito: el trabajo sale de la cola y el archivo ya no se necesita.
	if err := p.cola.Eliminar(ctx, t.ID); err != nil {
		// El envío ya ocurrió; si el delete falla el barrido siguiente
		// reintentará y el SII verá un duplicado (entrega at-least-once).
		return fmt.Errorf("eliminar trabajo enviado: %w", err)
	}
	p.limpiarArchivo(t)
	p.registrar(ctx, t, resultado.TrackID, entity.EstadoEnviado, resultado.Detalle)
	p.log.Info().Int64("trabajo_id", t.ID).Str("track_id", resultado.TrackID).
		Str("ambiente", t.Payload.Ambiente).Msg("trabajo enviado al SII")
	return nil
}

func (p *Procesador) enviar(ctx context.Context, t *entity.TrabajoCola) (*ResultadoEnvio, error) {
	// En el ambiente local no se habla con el SII: se simula la aceptación
	// para poder ejercitar el flujo completo sin certificados.
	if t.Payload.Ambiente == sii.AmbienteDev {
		return &ResultadoEnvio{
			TrackID: fmt.Sprintf("DEV-%d", t.ID),
			Detalle: "aceptado (simulado, ambiente dev)",
		}, nil
	}

	switch t.Tipo {
	case entity.TrabajoDTE:
		archivo, err := p.almacen.Leer(t.Payload.ArchivoRef)
		if err != nil {
			return nil, errArchivoPerdido{ref: t.Payload.ArchivoRef, causa: err}
		}
		return p.enviador.EnviarDTE(ctx, archivo, t.Payload.ArchivoRef, t.Payload.Ambiente, t.Payload.Token)
	case entity.TrabajoInforme:
		return p.enviador.EnviarInforme(ctx, []byte(t.Payload.XML), t.Payload.Ambiente, t.Payload.Token)
	}
	return nil, errTipoDesconocido{tipo: t.Tipo}
}

// fallo aplica la política de reintentos: incrementa el contador y, si aún no
// alcanza el tope, reprograma con espera fija; al tope el trabajo se descarta
// con una entrada terminal.
func (p *Procesador) fallo(ctx context.Context, t *entity.TrabajoCola, causa error) error {
	descripcion := descripcionCausa(causa)
	intentos := t.Intentos + 1
	if intentos >= p.tope {
		p.descartar(ctx, t, fmt.Sprintf("tope de %d intentos alcanzado: %s", p.tope, descripcion))
		return causa
	}
	proximo := p.ahora().Add(p.espera)
	if err := p.cola.ActualizarIntento(ctx, t.ID, intentos, proximo); err != nil {
		return fmt.Errorf("reprogramar trabajo: %w", err)
	}
	p.registrar(ctx, t, "", entity.EstadoError,
		fmt.Sprintf("intento %d de %d fallido: %s", intentos, p.tope, descripcion))
	return causa
}

// errorTransporte lo implementan los errores del enviador que distinguen
// fallos de red de rechazos del SII.
type errorTransporte interface {
	EsTransporte() bool
}

// descripcionCausa antepone la clase del fallo (transporte o rechazo) al
// detalle de auditoría cuando el error del enviador la distingue.
func descripcionCausa(causa error) string {
	var t errorTransporte
	if !errors.As(causa, &t) {
		return causa.Error()
	}
	if t.EsTransporte() {
		return "transporte: " + causa.Error()
	}
	return "rechazo: " + causa.Error()
}

// descartar saca un trabajo de la cola en forma terminal.
func (p *Procesador) descartar(ctx context.Context, t *entity.TrabajoCola, detalle string) {
	if err := p.cola.Eliminar(ctx, t.ID); err != nil {
		p.log.Error().Err(err).Int64("trabajo_id", t.ID).Msg("no se pudo eliminar el trabajo fallido")
		return
	}
	p.limpiarArchivo(t)
	p.registrar(ctx, t, "", entity.EstadoFallido, detalle)
	p.log.Error().Int64("trabajo_id", t.ID).Str("detalle", detalle).
		Msg("trabajo descartado en forma terminal")
}

func (p *Procesador) limpiarArchivo(t *entity.TrabajoCola) {
	if t.Tipo != entity.TrabajoDTE || t.Payload.ArchivoRef == "" {
		return
	}
	if err := p.almacen.Eliminar(t.Payload.ArchivoRef); err != nil {
		p.log.Warn().Err(err).Str("ref", t.Payload.ArchivoRef).Msg("no se pudo limpiar el archivo del trabajo")
	}
}

func (p *Procesador) registrar(ctx context.Context, t *entity.TrabajoCola, trackID, estado, detalle string) {
	reg := &entity.RegistroEnvio{
		TrackID:  trackID,
		Estado:   estado,
		Detalle:  detalle,
		Ambiente: t.Payload.Ambiente,
		Metadata: metaConTrabajo(t),
		CreadoEn: p.ahora(),
	}
	if err := p.registros.Insertar(ctx, reg); err != nil {
		p.log.Error().Err(err).Int64("trabajo_id", t.ID).Msg("no se pudo escribir el registro de envío")
	}
}

// ── errores internos del procesador ───────────────────────────────────────────

// errArchivoPerdido: el archivo referenciado ya no existe; reintentar no lo
// va a traer de vuelta, así que el fallo es permanente.
type errArchivoPerdido struct {
	ref   string
	causa error
}

func (e errArchivoPerdido) Error() string {
	return fmt.Sprintf("archivo %q no disponible: %v", e.ref, e.causa)
}

type errTipoDesconocido struct{ tipo string }

func (e errTipoDesconocido) Error() string {
	return fmt.Sprintf("tipo de trabajo desconocido: %q", e.tipo)
}

// esPermanente indica fallos que ningún reintento puede arreglar.
func esPermanente(err error) bool {
	switch err.(type) {
	case errArchivoPerdido, errTipoDesconocido:
		return true
	}
	return false
}
