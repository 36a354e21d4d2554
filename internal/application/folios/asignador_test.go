package folios

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
	"github.com/emisordte/emisor-dte/pkg/logger"
	"github.com/emisordte/emisor-dte/pkg/sii"
)

// ── fakes en memoria ──────────────────────────────────────────────────────────

type memCafs struct {
	mu     sync.Mutex
	rangos []*entity.RangoFolios
}

func (m *memCafs) Create(_ context.Context, r *entity.RangoFolios) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existente := range m.rangos {
		if existente.SeSolapa(r) {
			return domain.ErrRangoSolapado
		}
	}
	m.rangos = append(m.rangos, r)
	return nil
}

func (m *memCafs) GetByID(_ context.Context, id string) (*entity.RangoFolios, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rangos {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memCafs) ListByTipo(_ context.Context, tipoDTE int, ambiente string) ([]*entity.RangoFolios, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RangoFolios
	for _, r := range m.rangos {
		if r.TipoDTE == tipoDTE && r.Ambiente == ambiente {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Desde < out[j].Desde })
	return out, nil
}

func (m *memCafs) List(_ context.Context, ambiente string) ([]*entity.RangoFolios, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RangoFolios
	for _, r := range m.rangos {
		if r.Ambiente == ambiente {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memCafs) Update(_ context.Context, r *entity.RangoFolios) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existente := range m.rangos {
		if existente.ID == r.ID {
			m.rangos[i] = r
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memCafs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rangos {
		if r.ID == id {
			m.rangos = append(m.rangos[:i], m.rangos[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memCafs) RangoDeFolio(_ context.Context, tipoDTE int, ambiente string, folio int64) (*entity.RangoFolios, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rangos {
		if r.TipoDTE == tipoDTE && r.Ambiente == ambiente && r.Contiene(folio) {
			return r, nil
		}
	}
	return nil, nil
}

type memContadores struct {
	mu      sync.Mutex
	valores map[string]int64
}

func newMemContadores() *memContadores {
	return &memContadores{valores: make(map[string]int64)}
}

func claveContador(tipoDTE int, ambiente string) string {
	return fmt.Sprintf("%d/%s", tipoDTE, ambiente)
}

func (m *memContadores) Get(_ context.Context, tipoDTE int, ambiente string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valores[claveContador(tipoDTE, ambiente)], nil
}

func (m *memContadores) CompareAndSwap(_ context.Context, tipoDTE int, ambiente string, esperado, nuevo int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := claveContador(tipoDTE, ambiente)
	if m.valores[k] != esperado {
		return false, nil
	}
	m.valores[k] = nuevo
	return true, nil
}

type memReservas struct {
	mu       sync.Mutex
	reservas map[string]*entity.ReservaFolio
}

func newMemReservas() *memReservas {
	return &memReservas{reservas: make(map[string]*entity.ReservaFolio)}
}

func (m *memReservas) Guardar(_ context.Context, r *entity.ReservaFolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservas[claveContador(r.TipoDTE, r.Ambiente)] = r
	return nil
}

func (m *memReservas) Get(_ context.Context, tipoDTE int, ambiente string) (*entity.ReservaFolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservas[claveContador(tipoDTE, ambiente)], nil
}

func (m *memReservas) Eliminar(_ context.Context, tipoDTE int, ambiente string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservas, claveContador(tipoDTE, ambiente))
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func rangoDePrueba(id string, tipoDTE int, desde, hastaInclusive int64) *entity.RangoFolios {
	return &entity.RangoFolios{
		ID:       id,
		TipoDTE:  tipoDTE,
		Desde:    desde,
		Hasta:    hastaInclusive + 1,
		Ambiente: sii.AmbienteDev,
	}
}

func asignadorDePrueba(rangos ...*entity.RangoFolios) (*Asignador, *memContadores, *memReservas) {
	cafs := &memCafs{rangos: rangos}
	contadores := newMemContadores()
	reservas := newMemReservas()
	return NewAsignador(cafs, contadores, reservas, logger.Nop()), contadores, reservas
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestSiguienteFolio_Secuencial(t *testing.T) {
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoFactura, 101, 105))
	ctx := context.Background()

	for esperado := int64(101); esperado <= 105; esperado++ {
		folio, rango, err := a.SiguienteFolio(ctx, sii.TipoFactura, sii.AmbienteDev)
		require.NoError(t, err)
		assert.Equal(t, esperado, folio)
		assert.Equal(t, "r1", rango.ID)
	}

	_, _, err := a.SiguienteFolio(ctx, sii.TipoFactura, sii.AmbienteDev)
	assert.ErrorIs(t, err, domain.ErrSinFolios, "rango agotado")
}

func TestSiguienteFolio_SaltaAlSiguienteRango(t *testing.T) {
	a, _, _ := asignadorDePrueba(
		rangoDePrueba("r1", sii.TipoBoleta, 1, 3),
		rangoDePrueba("r2", sii.TipoBoleta, 50, 51),
	)
	ctx := context.Background()

	var folios []int64
	for {
		folio, _, err := a.SiguienteFolio(ctx, sii.TipoBoleta, sii.AmbienteDev)
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrSinFolios)
			break
		}
		folios = append(folios, folio)
	}
	assert.Equal(t, []int64{1, 2, 3, 50, 51}, folios, "salta el hueco entre rangos sin emitir folios no autorizados")
}

func TestSiguienteFolio_SinRangos(t *testing.T) {
	a, _, _ := asignadorDePrueba()
	_, _, err := a.SiguienteFolio(context.Background(), sii.TipoFactura, sii.AmbienteDev)
	assert.ErrorIs(t, err, domain.ErrSinFolios)
}

func TestSiguienteFolio_EntradaInvalida(t *testing.T) {
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoFactura, 1, 10))
	ctx := context.Background()

	_, _, err := a.SiguienteFolio(ctx, 999, sii.AmbienteDev)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "tipo de DTE desconocido")

	_, _, err = a.SiguienteFolio(ctx, sii.TipoFactura, "staging")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "ambiente desconocido")
}

func TestSiguienteFolio_ConcurrenciaSinDuplicados(t *testing.T) {
	const trabajadores = 40
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoBoleta, 1, 1000))
	ctx := context.Background()

	var (
		mu     sync.Mutex
		folios = make(map[int64]int)
		wg     sync.WaitGroup
	)
	for i := 0; i < trabajadores; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			folio, _, err := a.SiguienteFolio(ctx, sii.TipoBoleta, sii.AmbienteDev)
			if err != nil {
				// ErrConflict es aceptable bajo contención extrema; un folio
				// duplicado no lo es jamás.
				assert.ErrorIs(t, err, domain.ErrConflict)
				return
			}
			mu.Lock()
			folios[folio]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for folio, veces := range folios {
		assert.Equal(t, 1, veces, "folio %d asignado más de una vez", folio)
	}
}

func TestReservarYLiberar(t *testing.T) {
	a, contadores, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoBoleta, 10, 20))
	ctx := context.Background()

	reserva, err := a.ReservarTemporal(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(10), reserva.Reservado)
	assert.Equal(t, int64(0), reserva.Anterior)
	assert.True(t, reserva.Vigente(time.Now()))

	require.NoError(t, a.Liberar(ctx, sii.TipoBoleta, sii.AmbienteDev))

	// El folio liberado vuelve a estar disponible.
	folio, _, err := a.SiguienteFolio(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(10), folio)

	ultimo, err := contadores.Get(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(10), ultimo)
}

func TestLiberar_NoRetrocedeSiElContadorAvanzo(t *testing.T) {
	a, contadores, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoBoleta, 10, 20))
	ctx := context.Background()

	_, err := a.ReservarTemporal(ctx, sii.TipoBoleta, sii.AmbienteDev) // folio 10
	require.NoError(t, err)

	// Otro proceso consume el siguiente folio antes de la liberación.
	_, _, err = a.SiguienteFolio(ctx, sii.TipoBoleta, sii.AmbienteDev) // folio 11
	require.NoError(t, err)

	require.NoError(t, a.Liberar(ctx, sii.TipoBoleta, sii.AmbienteDev))

	// El contador no retrocede: los folios 10 y 11 quedan consumidos.
	ultimo, err := contadores.Get(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(11), ultimo)
}

func TestLiberar_SinReservaEsNoOp(t *testing.T) {
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoBoleta, 10, 20))
	assert.NoError(t, a.Liberar(context.Background(), sii.TipoBoleta, sii.AmbienteDev))
}

func TestLiberar_ReservaExpiradaNoRetrocede(t *testing.T) {
	a, contadores, reservas := asignadorDePrueba(rangoDePrueba("r1", sii.TipoBoleta, 10, 20))
	ctx := context.Background()

	reloj := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a.ahora = func() time.Time { return reloj }

	_, err := a.ReservarTemporal(ctx, sii.TipoBoleta, sii.AmbienteDev) // folio 10
	require.NoError(t, err)

	// La ventana de la reserva venció: liberar ya no puede devolver el folio.
	reloj = reloj.Add(duracionReserva + time.Minute)
	require.NoError(t, a.Liberar(ctx, sii.TipoBoleta, sii.AmbienteDev))

	ultimo, err := contadores.Get(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(10), ultimo, "el folio expirado queda quemado")

	// La fila de la reserva se limpió igual.
	r, err := reservas.Get(ctx, sii.TipoBoleta, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMarcarUsado(t *testing.T) {
	a, contadores, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoFactura, 1, 100))
	ctx := context.Background()

	require.NoError(t, a.MarcarUsado(ctx, sii.TipoFactura, sii.AmbienteDev, 42))
	ultimo, _ := contadores.Get(ctx, sii.TipoFactura, sii.AmbienteDev)
	assert.Equal(t, int64(42), ultimo)

	// Idempotente: marcar un folio ya consumido no retrocede el contador.
	require.NoError(t, a.MarcarUsado(ctx, sii.TipoFactura, sii.AmbienteDev, 10))
	ultimo, _ = contadores.Get(ctx, sii.TipoFactura, sii.AmbienteDev)
	assert.Equal(t, int64(42), ultimo)

	// Fuera de todo rango autorizado.
	err := a.MarcarUsado(ctx, sii.TipoFactura, sii.AmbienteDev, 5000)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// La siguiente asignación continúa tras el folio marcado.
	folio, _, err := a.SiguienteFolio(ctx, sii.TipoFactura, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(43), folio)
}

func TestVerSiguiente_NoConsume(t *testing.T) {
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoFactura, 101, 105))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		folio, rango, err := a.VerSiguiente(ctx, sii.TipoFactura, sii.AmbienteDev)
		require.NoError(t, err)
		assert.Equal(t, int64(101), folio, "el peek no mueve el contador")
		assert.Equal(t, "r1", rango.ID)
	}

	folio, _, err := a.SiguienteFolio(ctx, sii.TipoFactura, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(101), folio)

	folio, _, err = a.VerSiguiente(ctx, sii.TipoFactura, sii.AmbienteDev)
	require.NoError(t, err)
	assert.Equal(t, int64(102), folio)
}

func TestVerSiguiente_SinFolios(t *testing.T) {
	a, _, _ := asignadorDePrueba(rangoDePrueba("r1", sii.TipoFactura, 101, 102))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := a.SiguienteFolio(ctx, sii.TipoFactura, sii.AmbienteDev)
		require.NoError(t, err)
	}

	_, _, err := a.VerSiguiente(ctx, sii.TipoFactura, sii.AmbienteDev)
	assert.ErrorIs(t, err, domain.ErrSinFolios)
}
