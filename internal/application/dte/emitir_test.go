package dte

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emisordte/emisor-dte/internal/application/cola"
	"github.com/emisordte/emisor-dte/internal/application/folios"
	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/internal/domain/repository"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
	"github.com/emisordte/emisor-dte/pkg/config"
	"github.com/emisordte/emisor-dte/pkg/logger"
	"github.com/emisordte/emisor-dte/pkg/sii"
)

// ── fakes mínimos ─────────────────────────────────────────────────────────────

type cafsFijos struct {
	rangos []*entity.RangoFolios
}

func (c *cafsFijos) Create(context.Context, *entity.RangoFolios) error { return nil }
func (c *cafsFijos) GetByID(context.Context, string) (*entity.RangoFolios, error) {
	return nil, nil
}
func (c *cafsFijos) ListByTipo(_ context.Context, tipoDTE int, ambiente string) ([]*entity.RangoFolios, error) {
	var out []*entity.RangoFolios
	for _, r := range c.rangos {
		if r.TipoDTE == tipoDTE && r.Ambiente == ambiente {
			out = append(out, r)
		}
	}
	return out, nil
}
func (c *cafsFijos) List(context.Context, string) ([]*entity.RangoFolios, error) { return c.rangos, nil }
func (c *cafsFijos) Update(context.Context, *entity.RangoFolios) error           { return nil }
func (c *cafsFijos) Delete(context.Context, string) error                        { return nil }
func (c *cafsFijos) RangoDeFolio(_ context.Context, tipoDTE int, ambiente string, folio int64) (*entity.RangoFolios, error) {
	for _, r := range c.rangos {
		if r.TipoDTE == tipoDTE && r.Ambiente == ambiente && r.Contiene(folio) {
			return r, nil
		}
	}
	return nil, nil
}

type contadorMem struct {
	mu      sync.Mutex
	valores map[string]int64
}

func (m *contadorMem) clave(tipoDTE int, ambiente string) string {
	return fmt.Sprintf("%d/%s", tipoDTE, ambiente)
}

func (m *contadorMem) Get(_ context.Context, tipoDTE int, ambiente string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valores[m.clave(tipoDTE, ambiente)], nil
}

func (m *contadorMem) CompareAndSwap(_ context.Context, tipoDTE int, ambiente string, esperado, nuevo int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.clave(tipoDTE, ambiente)
	if m.valores[k] != esperado {
		return false, nil
	}
	m.valores[k] = nuevo
	return true, nil
}

type reservaMem struct {
	mu       sync.Mutex
	reservas map[string]*entity.ReservaFolio
}

func (m *reservaMem) Guardar(_ context.Context, r *entity.ReservaFolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservas[fmt.Sprintf("%d/%s", r.TipoDTE, r.Ambiente)] = r
	return nil
}

func (m *reservaMem) Get(_ context.Context, tipoDTE int, ambiente string) (*entity.ReservaFolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservas[fmt.Sprintf("%d/%s", tipoDTE, ambiente)], nil
}

func (m *reservaMem) Eliminar(_ context.Context, tipoDTE int, ambiente string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservas, fmt.Sprintf("%d/%s", tipoDTE, ambiente))
	return nil
}

type colaMem struct {
	mu       sync.Mutex
	trabajos []*entity.TrabajoCola
}

func (m *colaMem) Insertar(_ context.Context, t *entity.TrabajoCola) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = int64(len(m.trabajos) + 1)
	m.trabajos = append(m.trabajos, t)
	return nil
}
func (m *colaMem) GetByID(context.Context, int64) (*entity.TrabajoCola, error) { return nil, nil }
func (m *colaMem) Pendientes(context.Context, time.Time) ([]*entity.TrabajoCola, error) {
	return nil, nil
}
func (m *colaMem) ActualizarIntento(context.Context, int64, int, time.Time) error { return nil }
func (m *colaMem) ResetIntentos(context.Context, int64) error                     { return nil }
func (m *colaMem) ResetIntentosEnTope(context.Context, int) (int64, error)        { return 0, nil }
func (m *colaMem) Eliminar(context.Context, int64) error                          { return nil }
func (m *colaMem) Estadisticas(context.Context, int, time.Time) (*repository.EstadisticasCola, error) {
	return &repository.EstadisticasCola{}, nil
}
func (m *colaMem) AdquirirBarrido(context.Context) (bool, error) { return true, nil }
func (m *colaMem) LiberarBarrido(context.Context) error          { return nil }

type registrosMem struct {
	mu       sync.Mutex
	entradas []*entity.RegistroEnvio
}

func (m *registrosMem) Insertar(_ context.Context, r *entity.RegistroEnvio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entradas = append(m.entradas, r)
	return nil
}
func (m *registrosMem) Listar(context.Context, int) ([]*entity.RegistroEnvio, error) {
	return m.entradas, nil
}

type almacenMem struct {
	mu       sync.Mutex
	archivos map[string][]byte
}

func (m *almacenMem) Proteger(ruta string) (string, error) { return "ref-" + ruta, nil }
func (m *almacenMem) Guardar(nombre string, datos []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "ref-" + nombre
	m.archivos[ref] = datos
	return ref, nil
}
func (m *almacenMem) Leer(ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	datos, ok := m.archivos[ref]
	if !ok {
		return nil, fmt.Errorf("no existe %q", ref)
	}
	return datos, nil
}
func (m *almacenMem) Eliminar(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.archivos, ref)
	return nil
}

type xmlFalso struct {
	fallar bool
}

func (g *xmlFalso) GenerarXML(doc *Documento) ([]byte, error) {
	if g.fallar {
		return nil, errors.New("render roto")
	}
	return []byte(fmt.Sprintf("<DTE tipo=%d folio=%d/>", doc.TipoDTE, doc.Folio)), nil
}

// ── armado ────────────────────────────────────────────────────────────────────

type bancoEmision struct {
	emision  *Emision
	contador *contadorMem
	cola     *colaMem
	almacen  *almacenMem
	xml      *xmlFalso
}

func nuevoBancoEmision(rangos ...*entity.RangoFolios) *bancoEmision {
	cafs := &cafsFijos{rangos: rangos}
	contador := &contadorMem{valores: make(map[string]int64)}
	reservas := &reservaMem{reservas: make(map[string]*entity.ReservaFolio)}
	asignador := folios.NewAsignador(cafs, contador, reservas, logger.Nop())

	colaRepo := &colaMem{}
	registros := &registrosMem{}
	almacen := &almacenMem{archivos: make(map[string][]byte)}
	encolador := cola.NewEncolador(colaRepo, registros, almacen, logger.Nop())

	xml := &xmlFalso{}
	cfg := config.SIIConfig{
		Ambiente:    sii.AmbienteCert,
		RutEmisor:   "76354771-K",
		RazonSocial: "EMPRESA DE PRUEBAS LTDA",
		Token:       "tok",
	}
	return &bancoEmision{
		emision:  NewEmision(asignador, encolador, almacen, xml, cfg, logger.Nop()),
		contador: contador,
		cola:     colaRepo,
		almacen:  almacen,
		xml:      xml,
	}
}

func rangoCert(tipoDTE int, desde, hastaExclusivo int64) *entity.RangoFolios {
	return &entity.RangoFolios{
		ID:       fmt.Sprintf("caf-%d", tipoDTE),
		TipoDTE:  tipoDTE,
		Desde:    desde,
		Hasta:    hastaExclusivo,
		Ambiente: sii.AmbienteCert,
	}
}

func solicitudSimple() SolicitudEmision {
	return SolicitudEmision{
		TipoDTE:  sii.TipoFactura,
		Receptor: Receptor{RUT: "12345678-5", RazonSocial: "CLIENTE SPA"},
		Lineas: []totales.Linea{
			{Numero: 1, Nombre: "Servicio mensual", Monto: decimal.NewFromInt(1000)},
		},
	}
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestEmitir_PipelineCompleto(t *testing.T) {
	b := nuevoBancoEmision(rangoCert(sii.TipoFactura, 101, 201))

	res, err := b.emision.Emitir(context.Background(), solicitudSimple())
	require.NoError(t, err)

	assert.Equal(t, int64(101), res.Documento.Folio)
	assert.Equal(t, "caf-33", res.RangoID)
	assert.Equal(t, int64(1000), res.Documento.Totales.Neto)
	assert.Equal(t, int64(190), res.Documento.Totales.IVA)
	assert.Equal(t, int64(1190), res.Documento.Totales.Total)
	assert.Equal(t, "76354771-K", res.Documento.Emisor.RUT)

	require.Len(t, b.cola.trabajos, 1)
	trabajo := b.cola.trabajos[0]
	assert.Equal(t, entity.TrabajoDTE, trabajo.Tipo)
	assert.Equal(t, "101", trabajo.Payload.Meta["folio"])
	assert.Equal(t, "33", trabajo.Payload.Meta["tipo_dte"])

	xml, err := b.almacen.Leer(trabajo.Payload.ArchivoRef)
	require.NoError(t, err)
	assert.Contains(t, string(xml), "folio=101")

	// La siguiente emisión toma el folio correlativo.
	res2, err := b.emision.Emitir(context.Background(), solicitudSimple())
	require.NoError(t, err)
	assert.Equal(t, int64(102), res2.Documento.Folio)
}

func TestEmitir_SinFolios(t *testing.T) {
	b := nuevoBancoEmision() // sin rangos cargados

	_, err := b.emision.Emitir(context.Background(), solicitudSimple())
	assert.ErrorIs(t, err, domain.ErrSinFolios)
	assert.Empty(t, b.cola.trabajos, "sin folio no se encola nada")
}

func TestEmitir_Validaciones(t *testing.T) {
	b := nuevoBancoEmision(rangoCert(sii.TipoFactura, 1, 100))
	ctx := context.Background()

	sol := solicitudSimple()
	sol.TipoDTE = 999
	_, err := b.emision.Emitir(ctx, sol)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	sol = solicitudSimple()
	sol.Lineas = nil
	_, err = b.emision.Emitir(ctx, sol)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	sol = solicitudSimple()
	sol.Receptor.RUT = "12345678-0" // dígito verificador incorrecto
	_, err = b.emision.Emitir(ctx, sol)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmitir_FolioSeQuemaSiElXMLFalla(t *testing.T) {
	b := nuevoBancoEmision(rangoCert(sii.TipoFactura, 101, 201))
	b.xml.fallar = true

	_, err := b.emision.Emitir(context.Background(), solicitudSimple())
	require.Error(t, err)
	assert.Empty(t, b.cola.trabajos)

	// El folio 101 quedó consumido; la siguiente emisión usa el 102.
	b.xml.fallar = false
	res, err := b.emision.Emitir(context.Background(), solicitudSimple())
	require.NoError(t, err)
	assert.Equal(t, int64(102), res.Documento.Folio)
}

func TestPrevisualizarYLiberar(t *testing.T) {
	b := nuevoBancoEmision(rangoCert(sii.TipoBoleta, 1, 100))
	ctx := context.Background()

	sol := solicitudSimple()
	sol.TipoDTE = sii.TipoBoleta

	doc, err := b.emision.Previsualizar(ctx, sol)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Folio)
	assert.Equal(t, int64(1190), doc.Totales.Total)
	assert.Empty(t, b.cola.trabajos, "previsualizar no encola")

	// Liberada la reserva, la emisión reutiliza el mismo folio.
	require.NoError(t, b.emision.LiberarPrevisualizacion(ctx, sii.TipoBoleta))
	res, err := b.emision.Emitir(ctx, sol)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Documento.Folio)
}
