package sii

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
)

var _ dte.GeneradorXML = (*GeneradorDTE)(nil)

// GeneradorDTE renderiza un Documento al XML del formato DTE del SII.
// La salida va en ISO-8859-1, que es lo que el esquema del SII declara.
// El timbre electrónico (TED) y la firma quedan fuera: los agrega el
// firmador antes del envío.
type GeneradorDTE struct{}

// NewGeneradorDTE construye el generador.
func NewGeneradorDTE() *GeneradorDTE { return &GeneradorDTE{} }

// GenerarXML arma el árbol <DTE><Documento>…</Documento></DTE>.
func (g *GeneradorDTE) GenerarXML(doc *dte.Documento) ([]byte, error) {
	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="ISO-8859-1"`)

	raiz := x.CreateElement("DTE")
	raiz.CreateAttr("version", "1.0")

	documento := raiz.CreateElement("Documento")
	documento.CreateAttr("ID", fmt.Sprintf("F%dT%d", doc.Folio, doc.TipoDTE))

	enc := documento.CreateElement("Encabezado")

	idDoc := enc.CreateElement("IdDoc")
	idDoc.CreateElement("TipoDTE").SetText(fmt.Sprint(doc.TipoDTE))
	idDoc.CreateElement("Folio").SetText(fmt.Sprint(doc.Folio))
	idDoc.CreateElement("FchEmis").SetText(doc.FechaEmision.Format("2006-01-02"))

	emisor := enc.CreateElement("Emisor")
	emisor.CreateElement("RUTEmisor").SetText(doc.Emisor.RUT)
	emisor.CreateElement("RznSoc").SetText(doc.Emisor.RazonSocial)

	receptor := enc.CreateElement("Receptor")
	receptor.CreateElement("RUTRecep").SetText(doc.Receptor.RUT)
	receptor.CreateElement("RznSocRecep").SetText(doc.Receptor.RazonSocial)
	if doc.Receptor.Giro != "" {
		receptor.CreateElement("GiroRecep").SetText(doc.Receptor.Giro)
	}
	if doc.Receptor.Direccion != "" {
		receptor.CreateElement("DirRecep").SetText(doc.Receptor.Direccion)
	}
	if doc.Receptor.Comuna != "" {
		receptor.CreateElement("CmnaRecep").SetText(doc.Receptor.Comuna)
	}

	tot := enc.CreateElement("Totales")
	// El formato DTE omite los montos en cero en vez de declararlos.
	if doc.Totales.Neto != 0 {
		tot.CreateElement("MntNeto").SetText(fmt.Sprint(doc.Totales.Neto))
	}
	if doc.Totales.Exento != 0 {
		tot.CreateElement("MntExe").SetText(fmt.Sprint(doc.Totales.Exento))
	}
	if doc.Totales.IVA != 0 {
		tot.CreateElement("TasaIVA").SetText(doc.TasaIVA.StringFixed(0))
		tot.CreateElement("IVA").SetText(fmt.Sprint(doc.Totales.IVA))
	}
	tot.CreateElement("MntTotal").SetText(fmt.Sprint(doc.Totales.Total))

	for _, linea := range doc.Lineas {
		det := documento.CreateElement("Detalle")
		det.CreateElement("NroLinDet").SetText(fmt.Sprint(linea.Numero))
		if linea.Exenta {
			det.CreateElement("IndExe").SetText("1")
		}
		det.CreateElement("NmbItem").SetText(linea.Nombre)
		if linea.Cantidad.IsPositive() {
			det.CreateElement("QtyItem").SetText(linea.Cantidad.String())
			det.CreateElement("PrcItem").SetText(linea.PrecioUnitario.String())
		}
		det.CreateElement("MontoItem").SetText(montoDetalle(linea).StringFixed(0))
	}

	x.Indent(2)
	utf8Bytes, err := x.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializar XML del DTE: %w", err)
	}
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes(utf8Bytes)
	if err != nil {
		return nil, fmt.Errorf("transcodificar DTE a ISO-8859-1: %w", err)
	}
	return latin1, nil
}

func montoDetalle(l totales.Linea) decimal.Decimal {
	if !l.Monto.IsZero() {
		return l.Monto
	}
	return l.Cantidad.Mul(l.PrecioUnitario)
}
