package sii

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// ParsearCaf extrae los metadatos de autorización del XML de un CAF tal como
// lo entrega el SII. Los CAF vienen declarados en ISO-8859-1; etree los
// transcodifica con el CharsetReader. La estructura esperada es:
//
//	<AUTORIZACION><CAF version="1.0"><DA>
//	    <RE>…</RE><RS>…</RS><TD>…</TD>
//	    <RNG><D>…</D><H>…</H></RNG>
//	    <FA>…</FA><IDK>…</IDK>
//	</DA>…</CAF></AUTORIZACION>
func ParsearCaf(data []byte) (*entity.InfoCaf, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1", "windows-1252":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		}
		return input, nil
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsear XML del CAF: %w", err)
	}

	da := doc.FindElement("//CAF/DA")
	if da == nil {
		return nil, fmt.Errorf("CAF sin elemento DA")
	}

	info := &entity.InfoCaf{
		RutEmisor:   textoHijo(da, "RE"),
		RazonSocial: textoHijo(da, "RS"),
	}

	td, err := strconv.Atoi(textoHijo(da, "TD"))
	if err != nil {
		return nil, fmt.Errorf("campo TD inválido: %w", err)
	}
	info.TipoDTE = td

	rng := da.SelectElement("RNG")
	if rng == nil {
		return nil, fmt.Errorf("CAF sin rango RNG")
	}
	desde, err := strconv.ParseInt(textoHijo(rng, "D"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("campo RNG/D inválido: %w", err)
	}
	hasta, err := strconv.ParseInt(textoHijo(rng, "H"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("campo RNG/H inválido: %w", err)
	}
	if desde <= 0 || hasta < desde {
		return nil, fmt.Errorf("rango de folios inválido: D=%d H=%d", desde, hasta)
	}
	info.Desde = desde
	info.Hasta = hasta

	if fa := textoHijo(da, "FA"); fa != "" {
		fecha, err := time.Parse("2006-01-02", fa)
		if err != nil {
			return nil, fmt.Errorf("campo FA inválido: %w", err)
		}
		info.FechaResolucion = fecha
	}
	if idk := textoHijo(da, "IDK"); idk != "" {
		n, err := strconv.Atoi(idk)
		if err != nil {
			return nil, fmt.Errorf("campo IDK inválido: %w", err)
		}
		info.IDK = n
	}
	return info, nil
}

func textoHijo(el *etree.Element, tag string) string {
	hijo := el.SelectElement(tag)
	if hijo == nil {
		return ""
	}
	return strings.TrimSpace(hijo.Text())
}
