package totales_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emisordte/emisor-dte/internal/domain/totales"
)

func tasa19() *decimal.Decimal {
	t := decimal.NewFromInt(19)
	return &t
}

// TestCalcular_BrutoANeto valida la conversión bruto→neto de referencia:
// una línea de $1.190 con precio IVA incluido y tasa 19% debe producir
// neto 1.000, IVA 190 y total 1.190.
func TestCalcular_BrutoANeto(t *testing.T) {
	lineas := []totales.Linea{{
		Cantidad:       decimal.NewFromInt(1),
		PrecioUnitario: decimal.NewFromInt(1190),
		PrecioBruto:    true,
	}}

	tot := totales.Calcular(lineas, tasa19(), nil)

	assert.Equal(t, int64(1000), tot.Neto, "neto debe ser el bruto dividido por 1,19")
	assert.Equal(t, int64(190), tot.IVA)
	assert.Equal(t, int64(0), tot.Exento)
	assert.Equal(t, int64(1190), tot.Total)
}

// TestCalcular_SoloExento: un documento únicamente exento no lleva neto ni IVA,
// cualquiera sea la tasa configurada.
func TestCalcular_SoloExento(t *testing.T) {
	lineas := []totales.Linea{{
		Cantidad:       decimal.NewFromInt(1),
		PrecioUnitario: decimal.NewFromInt(500),
		Exenta:         true,
	}}

	tot := totales.Calcular(lineas, tasa19(), nil)

	assert.Equal(t, int64(0), tot.Neto, "sin base afecta no hay neto")
	assert.Equal(t, int64(0), tot.IVA)
	assert.Equal(t, int64(500), tot.Exento)
	assert.Equal(t, int64(500), tot.Total)
}

// TestCalcular_SinIVA: sin tasa el monto afecta se reporta como neto sin
// línea de impuesto y Total = afecta + exenta.
func TestCalcular_SinIVA(t *testing.T) {
	lineas := []totales.Linea{
		{Monto: decimal.NewFromInt(800)},
		{Monto: decimal.NewFromInt(200), Exenta: true},
	}

	tot := totales.Calcular(lineas, nil, nil)

	assert.Equal(t, int64(800), tot.Neto)
	assert.Equal(t, int64(0), tot.IVA)
	assert.Equal(t, int64(200), tot.Exento)
	assert.Equal(t, int64(1000), tot.Total)
}

// TestCalcular_DescuentoGlobalBruto: un descuento global de monto fijo sobre la
// base afecta se convierte bruto→neto igual que las líneas cuando estas vienen
// con IVA incluido. $476 brutos equivalen a $400 netos sobre una base de $2.800.
func TestCalcular_DescuentoGlobalBruto(t *testing.T) {
	lineas := []totales.Linea{{
		Monto:       decimal.NewFromInt(3332), // $2.800 netos + $532 de IVA
		PrecioBruto: true,
	}}
	ajustes := []totales.Ajuste{{
		Movimiento: totales.MovimientoDescuento,
		TipoValor:  totales.ValorMonto,
		Valor:      decimal.NewFromInt(476),
	}}

	tot := totales.Calcular(lineas, tasa19(), ajustes)

	require.Equal(t, int64(2400), tot.Neto, "la base afecta debe quedar en 2.800 - 400")
	assert.Equal(t, int64(456), tot.IVA, "el IVA se calcula sobre la base ya descontada")
	assert.Equal(t, tot.Neto+tot.IVA+tot.Exento, tot.Total,
		"neto + IVA + exento debe ser el total en todo caso no degenerado")
}

// TestCalcular_DescuentoGlobalPorcentaje: el porcentaje se aplica sobre el
// valor ACTUAL de la base al momento del ajuste.
func TestCalcular_DescuentoGlobalPorcentaje(t *testing.T) {
	lineas := []totales.Linea{{Monto: decimal.NewFromInt(2000)}}
	ajustes := []totales.Ajuste{
		{Movimiento: totales.MovimientoDescuento, TipoValor: totales.ValorMonto, Valor: decimal.NewFromInt(1000)},
		// 10% sobre la base ya descontada (1000), no sobre la original
		{Movimiento: totales.MovimientoDescuento, TipoValor: totales.ValorPorcentaje, Valor: decimal.NewFromInt(10)},
	}

	tot := totales.Calcular(lineas, tasa19(), ajustes)

	assert.Equal(t, int64(900), tot.Neto)
	assert.Equal(t, int64(171), tot.IVA)
	assert.Equal(t, int64(1071), tot.Total)
}

// TestCalcular_RecargoGlobalExento: un recargo sobre la base exenta no toca la afecta.
func TestCalcular_RecargoGlobalExento(t *testing.T) {
	lineas := []totales.Linea{
		{Monto: decimal.NewFromInt(1000)},
		{Monto: decimal.NewFromInt(500), Exenta: true},
	}
	ajustes := []totales.Ajuste{{
		Movimiento:  totales.MovimientoRecargo,
		TipoValor:   totales.ValorMonto,
		Valor:       decimal.NewFromInt(100),
		SobreExento: true,
	}}

	tot := totales.Calcular(lineas, tasa19(), ajustes)

	assert.Equal(t, int64(1000), tot.Neto)
	assert.Equal(t, int64(600), tot.Exento)
	assert.Equal(t, int64(190), tot.IVA)
	assert.Equal(t, int64(1790), tot.Total)
}

// TestCalcular_DescuentoLinea: el monto fijo tiene precedencia sobre el
// porcentaje y el recargo se aplica sobre el monto ya descontado.
func TestCalcular_DescuentoLinea(t *testing.T) {
	lineas := []totales.Linea{{
		Monto:          decimal.NewFromInt(1000),
		DescuentoMonto: decimal.NewFromInt(200),
		DescuentoPct:   decimal.NewFromInt(50), // ignorado: gana el monto fijo
		RecargoPct:     decimal.NewFromInt(10), // 10% de 800
	}}

	tot := totales.Calcular(lineas, nil, nil)

	assert.Equal(t, int64(880), tot.Neto)
	assert.Equal(t, int64(880), tot.Total)
}

// TestCalcular_DescuentoNoDejaNegativos: descuentos mayores que la base dejan 0.
func TestCalcular_DescuentoNoDejaNegativos(t *testing.T) {
	lineas := []totales.Linea{{
		Monto:          decimal.NewFromInt(100),
		DescuentoMonto: decimal.NewFromInt(500),
	}}
	ajustes := []totales.Ajuste{{
		Movimiento: totales.MovimientoDescuento,
		TipoValor:  totales.ValorMonto,
		Valor:      decimal.NewFromInt(999),
	}}

	tot := totales.Calcular(lineas, tasa19(), ajustes)

	assert.Equal(t, int64(0), tot.Neto)
	assert.Equal(t, int64(0), tot.Total)
}

// TestCalcular_EntradasMalformadas: montos y precios negativos valen 0.
func TestCalcular_EntradasMalformadas(t *testing.T) {
	lineas := []totales.Linea{
		{Monto: decimal.NewFromInt(-500)},
		{Cantidad: decimal.NewFromInt(2), PrecioUnitario: decimal.NewFromInt(-10)},
		{Monto: decimal.NewFromInt(300)},
	}

	tot := totales.Calcular(lineas, tasa19(), nil)

	assert.Equal(t, int64(300), tot.Neto)
	assert.Equal(t, int64(57), tot.IVA)
}

// TestCalcular_RedondeoMitadLejosDeCero valida el redondeo en los tres puntos:
// por línea, en las bases agregadas y en el IVA final.
func TestCalcular_RedondeoMitadLejosDeCero(t *testing.T) {
	// 1,5 × 333 = 499,5 → 500 por línea
	lineas := []totales.Linea{{
		Cantidad:       decimal.NewFromFloat(1.5),
		PrecioUnitario: decimal.NewFromInt(333),
	}}

	tot := totales.Calcular(lineas, tasa19(), nil)
	assert.Equal(t, int64(500), tot.Neto, "499,5 debe redondear a 500")
	assert.Equal(t, int64(95), tot.IVA) // 500 × 0,19 = 95

	// IVA con mitad exacta: 450 × 0,19 = 85,5 → 86
	tot = totales.Calcular([]totales.Linea{{Monto: decimal.NewFromInt(450)}}, tasa19(), nil)
	assert.Equal(t, int64(86), tot.IVA, "85,5 debe redondear lejos de cero")
	assert.Equal(t, int64(536), tot.Total)
}

// TestCalcular_Determinista: función pura, mismo input → mismo output.
func TestCalcular_Determinista(t *testing.T) {
	lineas := []totales.Linea{
		{Monto: decimal.NewFromInt(1234), PrecioBruto: true},
		{Monto: decimal.NewFromInt(567), Exenta: true},
	}
	ajustes := []totales.Ajuste{{
		Movimiento: totales.MovimientoDescuento,
		TipoValor:  totales.ValorPorcentaje,
		Valor:      decimal.NewFromInt(5),
	}}

	t1 := totales.Calcular(lineas, tasa19(), ajustes)
	t2 := totales.Calcular(lineas, tasa19(), ajustes)

	assert.Equal(t, t1, t2)
	assert.Equal(t, t1.Neto+t1.IVA+t1.Exento, t1.Total)
}
