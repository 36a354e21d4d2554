package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
)

func TestGenerarPDF(t *testing.T) {
	doc := &dte.Documento{
		TipoDTE:      39,
		Folio:        512,
		FechaEmision: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Emisor:       dte.DatosEmisor{RUT: "76354771-K", RazonSocial: "EMPRESA DE PRUEBAS LTDA"},
		Receptor:     dte.Receptor{RazonSocial: "CLIENTE SPA"},
		Lineas: []totales.Linea{
			{Numero: 1, Nombre: "Café", Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.NewFromInt(1500)},
			{Numero: 2, Nombre: "Revista", Monto: decimal.NewFromInt(500), Exenta: true},
		},
		TasaIVA: decimal.NewFromInt(19),
		Totales: totales.Totales{Neto: 3000, Exento: 500, IVA: 570, Total: 4070},
	}

	datos, err := NewRepresentacionMaroto().GenerarPDF(doc)
	require.NoError(t, err)
	require.NotEmpty(t, datos)
	assert.Equal(t, "%PDF", string(datos[:4]))
}

func TestSepararMiles(t *testing.T) {
	casos := map[string]string{
		"0":       "0",
		"999":     "999",
		"1000":    "1.000",
		"4070":    "4.070",
		"1000000": "1.000.000",
	}
	for entrada, esperado := range casos {
		assert.Equal(t, esperado, separarMiles(entrada), "entrada %s", entrada)
	}
}
