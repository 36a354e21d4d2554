// Package totales calcula los montos legales de un DTE (neto, exento, IVA y
// total) a partir de sus líneas, la tasa de IVA y los descuentos/recargos
// globales. Es una función pura: sin I/O, sin estado compartido, mismo input
// produce siempre el mismo output.
//
// Política de redondeo: todo monto se redondea al peso entero más cercano
// (mitad lejos de cero) en exactamente tres puntos — el monto de cada línea,
// las bases afecta/exenta agregadas y el IVA final — nunca sumando
// subtotales ya redondeados de otra forma.
package totales

import "github.com/shopspring/decimal"

// Movimientos y tipos de valor de un ajuste global.
const (
	MovimientoDescuento = "descuento"
	MovimientoRecargo   = "recargo"

	ValorPorcentaje = "porcentaje"
	ValorMonto      = "monto"
)

// Linea es una línea del documento a totalizar. No se persiste: existe solo
// dentro de la solicitud de generación.
type Linea struct {
	Numero         int
	Nombre         string
	Cantidad       decimal.Decimal
	PrecioUnitario decimal.Decimal
	Monto          decimal.Decimal // monto de línea; si es 0 se deriva de Cantidad × PrecioUnitario
	Exenta         bool
	PrecioBruto    bool // el precio ya incluye IVA: se convierte bruto→neto antes de acumular

	// Descuento/recargo por línea. El monto fijo tiene precedencia sobre el porcentaje.
	DescuentoPct   decimal.Decimal
	DescuentoMonto decimal.Decimal
	RecargoPct     decimal.Decimal
	RecargoMonto   decimal.Decimal
}

// Ajuste es un descuento o recargo global, aplicado una sola vez contra la
// base agregada (afecta o exenta según SobreExento).
type Ajuste struct {
	Movimiento  string // descuento | recargo
	TipoValor   string // porcentaje | monto
	Valor       decimal.Decimal
	SobreExento bool
}

// Totales son los cuatro campos estándar de un documento tipo factura.
// Invariante: Total == Neto + IVA + Exento cuando aplica una tasa de IVA y
// Neto > 0; sin IVA degrada a Total == Neto + Exento (documentos exentos).
type Totales struct {
	Neto   int64
	Exento int64
	IVA    int64
	Total  int64
}

var cien = decimal.NewFromInt(100)

// Calcular deriva los totales del documento. tasaIVA en puntos porcentuales
// (ej: 19); nil o no positiva significa documento sin IVA.
func Calcular(lineas []Linea, tasaIVA *decimal.Decimal, ajustes []Ajuste) Totales {
	tasa := decimal.Zero
	if tasaIVA != nil && tasaIVA.IsPositive() {
		tasa = *tasaIVA
	}
	hayIVA := tasa.IsPositive()
	divisorBruto := decimal.NewFromInt(1).Add(tasa.Div(cien))

	var afecta, exenta decimal.Decimal
	hayBruto := false

	for _, l := range lineas {
		monto := montoLinea(l)

		// Descuento de línea: el monto fijo tiene precedencia sobre el porcentaje
		if l.DescuentoMonto.IsPositive() {
			monto = monto.Sub(l.DescuentoMonto)
		} else if l.DescuentoPct.IsPositive() {
			monto = monto.Sub(monto.Mul(l.DescuentoPct).Div(cien))
		}
		monto = noNegativo(monto)

		// Recargo de línea sobre el monto ya descontado
		if l.RecargoMonto.IsPositive() {
			monto = monto.Add(l.RecargoMonto)
		} else if l.RecargoPct.IsPositive() {
			monto = monto.Add(monto.Mul(l.RecargoPct).Div(cien))
		}
		monto = noNegativo(monto)

		// Conversión bruto→neto antes de acumular
		if l.PrecioBruto && hayIVA {
			monto = monto.Div(divisorBruto)
			hayBruto = true
		}

		monto = monto.Round(0) // redondeo por línea
		if l.Exenta {
			exenta = exenta.Add(monto)
		} else {
			afecta = afecta.Add(monto)
		}
	}

	// Ajustes globales: una sola vez, en orden, contra el valor ACTUAL de la
	// base al momento de aplicarse.
	for _, a := range ajustes {
		if !a.Valor.IsPositive() {
			continue
		}
		base := afecta
		if a.SobreExento {
			base = exenta
		}

		var monto decimal.Decimal
		if a.TipoValor == ValorPorcentaje {
			monto = base.Mul(a.Valor).Div(cien)
		} else {
			monto = a.Valor
			// Un monto fijo contra la base afecta viene expresado en bruto
			// cuando las líneas lo están: se convierte igual que las líneas.
			if !a.SobreExento && hayBruto && hayIVA {
				monto = monto.Div(divisorBruto)
			}
		}

		if a.Movimiento == MovimientoRecargo {
			base = base.Add(monto)
		} else {
			base = noNegativo(base.Sub(monto))
		}

		if a.SobreExento {
			exenta = base
		} else {
			afecta = base
		}
	}

	afectaR := afecta.Round(0)
	exentaR := exenta.Round(0)

	t := Totales{Exento: exentaR.IntPart()}
	if hayIVA && afectaR.IsPositive() {
		t.Neto = afectaR.IntPart()
		t.IVA = afectaR.Mul(tasa).Div(cien).Round(0).IntPart()
		t.Total = t.Neto + t.IVA + t.Exento
	} else {
		// Sin IVA el monto afecta se reporta como neto sin línea de impuesto,
		// preservando Total = afecta + exenta (ej: boletas solo exentas).
		t.Neto = afectaR.IntPart()
		t.Total = t.Neto + t.Exento
	}
	return t
}

// montoLinea devuelve el monto base de la línea: el monto explícito o, si no
// viene, Cantidad × PrecioUnitario. Entradas malformadas valen 0.
func montoLinea(l Linea) decimal.Decimal {
	monto := l.Monto
	if monto.IsZero() && l.Cantidad.IsPositive() {
		monto = l.Cantidad.Mul(noNegativo(l.PrecioUnitario))
	}
	return noNegativo(monto)
}

func noNegativo(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
