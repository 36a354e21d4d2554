package sii

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
)

func documentoDePrueba() *dte.Documento {
	return &dte.Documento{
		TipoDTE:      33,
		Folio:        101,
		FechaEmision: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
		Emisor:       dte.DatosEmisor{RUT: "76354771-K", RazonSocial: "EMPRESA DE PRUEBAS LTDA"},
		Receptor:     dte.Receptor{RUT: "12345678-5", RazonSocial: "CLIENTE SPA", Comuna: "Santiago"},
		Lineas: []totales.Linea{
			{Numero: 1, Nombre: "Servicio mensual", Monto: decimal.NewFromInt(1000)},
			{Numero: 2, Nombre: "Libro", Monto: decimal.NewFromInt(500), Exenta: true},
		},
		TasaIVA: decimal.NewFromInt(19),
		Totales: totales.Totales{Neto: 1000, Exento: 500, IVA: 190, Total: 1690},
	}
}

func TestGenerarXML(t *testing.T) {
	datos, err := NewGeneradorDTE().GenerarXML(documentoDePrueba())
	require.NoError(t, err)
	assert.Contains(t, string(datos), `encoding="ISO-8859-1"`)

	// El XML generado debe poder releerse con el mismo parser del cliente.
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(datos))

	texto := func(ruta string) string {
		el := doc.FindElement(ruta)
		require.NotNil(t, el, "falta el elemento %s", ruta)
		return el.Text()
	}

	assert.Equal(t, "F101T33", doc.FindElement("//Documento").SelectAttrValue("ID", ""))
	assert.Equal(t, "33", texto("//IdDoc/TipoDTE"))
	assert.Equal(t, "101", texto("//IdDoc/Folio"))
	assert.Equal(t, "2026-08-28", texto("//IdDoc/FchEmis"))
	assert.Equal(t, "76354771-K", texto("//Emisor/RUTEmisor"))
	assert.Equal(t, "12345678-5", texto("//Receptor/RUTRecep"))
	assert.Equal(t, "1000", texto("//Totales/MntNeto"))
	assert.Equal(t, "500", texto("//Totales/MntExe"))
	assert.Equal(t, "190", texto("//Totales/IVA"))
	assert.Equal(t, "1690", texto("//Totales/MntTotal"))

	detalles := doc.FindElements("//Detalle")
	require.Len(t, detalles, 2)
	assert.Nil(t, detalles[0].SelectElement("IndExe"), "línea afecta sin indicador de exención")
	require.NotNil(t, detalles[1].SelectElement("IndExe"), "línea exenta lleva IndExe")
	assert.Equal(t, "1", detalles[1].SelectElement("IndExe").Text())
}

func TestGenerarXML_SoloExento(t *testing.T) {
	doc := documentoDePrueba()
	doc.Totales = totales.Totales{Exento: 500, Total: 500}

	datos, err := NewGeneradorDTE().GenerarXML(doc)
	require.NoError(t, err)

	parseado := etree.NewDocument()
	require.NoError(t, parseado.ReadFromBytes(datos))
	assert.Nil(t, parseado.FindElement("//Totales/MntNeto"), "neto en cero se omite")
	assert.Nil(t, parseado.FindElement("//Totales/IVA"), "IVA en cero se omite")
	assert.NotNil(t, parseado.FindElement("//Totales/MntExe"))
}

func TestGenerarXML_Latin1(t *testing.T) {
	doc := documentoDePrueba()
	doc.Receptor.RazonSocial = "COMERCIAL PEÑALOLÉN SPA"

	datos, err := NewGeneradorDTE().GenerarXML(doc)
	require.NoError(t, err)

	// Ñ en ISO-8859-1 es el byte 0xD1, no la secuencia UTF-8 0xC3 0x91.
	assert.Contains(t, string(datos), "PE\xd1ALOL\xc9N")
	assert.NotContains(t, string(datos), "PE\xc3\x91ALOL")
}
