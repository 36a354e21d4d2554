// Package pdf genera la representación impresa de un DTE según el formato
// de muestra del SII: recuadro rojo con RUT, tipo de documento y folio,
// datos de emisor y receptor, detalle y totales.
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/emisordte/emisor-dte/internal/application/dte"
	pkgsii "github.com/emisordte/emisor-dte/pkg/sii"
)

var _ dte.GeneradorPDF = (*RepresentacionMaroto)(nil)

var (
	colorRojo = &props.Color{Red: 180, Green: 0, Blue: 0}
	colorGris = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// RepresentacionMaroto implementa dte.GeneradorPDF usando Maroto v2.
type RepresentacionMaroto struct{}

// NewRepresentacionMaroto construye el generador.
func NewRepresentacionMaroto() *RepresentacionMaroto { return &RepresentacionMaroto{} }

// GenerarPDF genera la representación impresa y devuelve sus bytes.
func (g *RepresentacionMaroto) GenerarPDF(doc *dte.Documento) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.Letter).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(nombreTipo(doc.TipoDTE), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(encabezadoRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorRojo, Thickness: 0.5}))
	m.AddRows(receptorRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGris, Thickness: 0.3}))

	m.AddRows(detalleCabeceraRow())
	for _, r := range detalleRows(doc) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorGris, Thickness: 0.3}))
	m.AddRows(totalesRow(doc))
	m.AddRows(pieRow())

	salida, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar representación: %w", err)
	}
	return salida.GetBytes(), nil
}

// encabezadoRow: razón social del emisor a la izquierda y el recuadro rojo
// reglamentario (RUT, tipo de documento, folio) a la derecha.
func encabezadoRow(doc *dte.Documento) core.Row {
	return row.New(22).Add(
		col.New(7).Add(
			text.New(doc.Emisor.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 12, Top: 2,
			}),
			text.New("Fecha emisión: "+doc.FechaEmision.Format("02-01-2006"), props.Text{
				Size: 8, Top: 10, Color: colorGris,
			}),
		),
		col.New(5).Add(
			text.New("R.U.T.: "+doc.Emisor.RUT, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Center,
				Color: colorRojo, Top: 2,
			}),
			text.New(nombreTipo(doc.TipoDTE), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center,
				Color: colorRojo, Top: 8,
			}),
			text.New(fmt.Sprintf("N° %d", doc.Folio), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Center,
				Color: colorRojo, Top: 14,
			}),
		),
	)
}

func receptorRow(doc *dte.Documento) core.Row {
	detalle := doc.Receptor.RazonSocial
	if doc.Receptor.RUT != "" {
		detalle += "   |   RUT: " + doc.Receptor.RUT
	}
	if doc.Receptor.Comuna != "" {
		detalle += "   |   " + doc.Receptor.Comuna
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("SEÑOR(ES)", props.Text{
				Style: fontstyle.Bold, Size: 8, Top: 1, Color: colorGris,
			}),
			text.New(detalle, props.Text{Size: 9, Top: 6}),
		),
	)
}

func detalleCabeceraRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 1,
		}))
	}
	return row.New(7).Add(
		h("Ítem", 1, align.Center),
		h("Descripción", 6, align.Left),
		h("Cantidad", 2, align.Right),
		h("Monto", 3, align.Right),
	)
}

func detalleRows(doc *dte.Documento) []core.Row {
	out := make([]core.Row, 0, len(doc.Lineas))
	for _, l := range doc.Lineas {
		monto := l.Monto
		if monto.IsZero() {
			monto = l.Cantidad.Mul(l.PrecioUnitario)
		}
		nombre := l.Nombre
		if l.Exenta {
			nombre += " (exento)"
		}
		cantidad := ""
		if l.Cantidad.IsPositive() {
			cantidad = l.Cantidad.StringFixed(0)
		}
		out = append(out, row.New(6).Add(
			col.New(1).Add(text.New(fmt.Sprint(l.Numero), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(nombre, props.Text{Size: 8, Top: 1})),
			col.New(2).Add(text.New(cantidad, props.Text{Size: 8, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New("$"+separarMiles(monto.StringFixed(0)), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return out
}

func totalesRow(doc *dte.Documento) core.Row {
	etiquetas := col.New(3)
	valores := col.New(3)
	fila := float64(0)
	agregar := func(nombre string, n int64) {
		etiquetas.Add(text.New(nombre, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: fila,
		}))
		valores.Add(text.New("$"+separarMiles(fmt.Sprint(n)), props.Text{
			Size: 9, Align: align.Right, Right: 1, Top: fila,
		}))
		fila += 5
	}

	if doc.Totales.Neto != 0 {
		agregar("NETO:", doc.Totales.Neto)
	}
	if doc.Totales.Exento != 0 {
		agregar("EXENTO:", doc.Totales.Exento)
	}
	if doc.Totales.IVA != 0 {
		agregar(fmt.Sprintf("I.V.A. %s%%:", doc.TasaIVA.StringFixed(0)), doc.Totales.IVA)
	}
	agregar("TOTAL:", doc.Totales.Total)

	return row.New(fila + 4).Add(col.New(6), etiquetas, valores)
}

func pieRow() core.Row {
	return row.New(10).Add(col.New(12).Add(
		text.New("Timbre Electrónico SII — Verifique este documento en www.sii.cl",
			props.Text{Size: 7, Align: align.Center, Color: colorGris, Top: 4}),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nombreTipo(tipoDTE int) string {
	if nombre, ok := pkgsii.NombresTipoDTE[tipoDTE]; ok {
		return nombre
	}
	return fmt.Sprintf("Documento tipo %d", tipoDTE)
}

// separarMiles inserta puntos de miles en un string numérico sin decimales.
func separarMiles(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
