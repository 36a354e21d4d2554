package sii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/emisordte/emisor-dte/internal/application/cola"
	pkgsii "github.com/emisordte/emisor-dte/pkg/sii"
)

var _ cola.EnviadorSII = (*ClienteSII)(nil)

// Hosts del web service SII por ambiente.
const (
	hostCert = "https://maullin.sii.cl"
	hostProd = "https://palena.sii.cl"

	rutaUpload = "/cgi_dte/UPL/DTEUpload"
	rutaEstado = "/cgi_dte/UPL/QEstadoEnvio"

	// El upload del SII exige este User-Agent; otros valores devuelven 404.
	userAgentSII = "Mozilla/4.0 (compatible; PROG 1.0)"
)

// ClienteSII implementa cola.EnviadorSII contra el web service del SII.
type ClienteSII struct {
	httpClient *http.Client
	rutEmisor  string // RUT de la empresa emisora, formato "cuerpo-DV"
}

// NewClienteSII construye el cliente con un timeout de red generoso (60 s)
// ya que el WS del SII puede tardar varios segundos en responder.
func NewClienteSII(rutEmisor string) *ClienteSII {
	return &ClienteSII{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		rutEmisor:  rutEmisor,
	}
}

// EnviarDTE sube el archivo del DTE por multipart al endpoint de upload.
func (c *ClienteSII) EnviarDTE(ctx context.Context, archivo []byte, nombre, ambiente, token string) (*cola.ResultadoEnvio, error) {
	return c.subir(ctx, archivo, nombre, ambiente, token)
}

// EnviarInforme sube un informe XML (mismo endpoint de upload que los DTE).
func (c *ClienteSII) EnviarInforme(ctx context.Context, xml []byte, ambiente, token string) (*cola.ResultadoEnvio, error) {
	return c.subir(ctx, xml, "informe.xml", ambiente, token)
}

func (c *ClienteSII) subir(ctx context.Context, archivo []byte, nombre, ambiente, token string) (*cola.ResultadoEnvio, error) {
	host, err := hostDeAmbiente(ambiente)
	if err != nil {
		return nil, err
	}

	cuerpo, dv, err := partesRUT(c.rutEmisor)
	if err != nil {
		return nil, &ErrorEnvio{Detalle: fmt.Sprintf("RUT emisor inválido: %v", err)}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("rutSender", cuerpo)
	_ = w.WriteField("dvSender", dv)
	_ = w.WriteField("rutCompany", cuerpo)
	_ = w.WriteField("dvCompany", dv)
	parte, err := w.CreateFormFile("archivo", nombre)
	if err != nil {
		return nil, fmt.Errorf("armar multipart: %w", err)
	}
	if _, err := parte.Write(archivo); err != nil {
		return nil, fmt.Errorf("escribir archivo en multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cerrar multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+rutaUpload, &buf)
	if err != nil {
		return nil, fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", userAgentSII)
	req.Header.Set("Cookie", "TOKEN="+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ErrorEnvio{Transporte: true, Detalle: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ErrorEnvio{Transporte: true, Detalle: "leer respuesta: " + err.Error()}
	}
	if resp.StatusCode >= 500 {
		return nil, &ErrorEnvio{Transporte: true, Detalle: fmt.Sprintf("HTTP %d del SII", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ErrorEnvio{Codigo: fmt.Sprint(resp.StatusCode), Detalle: resumen(body)}
	}

	// El SII responde 200 incluso cuando rechaza: el estado va en el cuerpo.
	if codigo, rechazo := estadoRechazo(body); rechazo {
		return nil, &ErrorEnvio{Codigo: codigo, Detalle: resumen(body)}
	}
	trackID, err := ExtraerTrackID(body)
	if err != nil {
		return nil, &ErrorEnvio{Detalle: "respuesta sin trackid: " + resumen(body)}
	}
	return &cola.ResultadoEnvio{TrackID: trackID, Detalle: resumen(body)}, nil
}

// Estado consulta el estado de un envío por trackID.
func (c *ClienteSII) Estado(ctx context.Context, trackID, ambiente, token string) (string, error) {
	host, err := hostDeAmbiente(ambiente)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s%s?trackid=%s", host, rutaEstado, trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentSII)
	req.Header.Set("Cookie", "TOKEN="+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ErrorEnvio{Transporte: true, Detalle: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ErrorEnvio{Transporte: true, Detalle: "leer respuesta: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ErrorEnvio{Codigo: fmt.Sprint(resp.StatusCode), Detalle: resumen(body)}
	}
	return extraerEstado(body), nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func hostDeAmbiente(ambiente string) (string, error) {
	switch ambiente {
	case pkgsii.AmbienteCert:
		return hostCert, nil
	case pkgsii.AmbienteProd:
		return hostProd, nil
	}
	return "", fmt.Errorf("sii: ambiente %q no tiene endpoint (usar cert|prod)", ambiente)
}

func partesRUT(rut string) (cuerpo, dv string, err error) {
	canonico, err := pkgsii.FormatRUT(rut)
	if err != nil {
		return "", "", err
	}
	i := strings.LastIndexByte(canonico, '-')
	return canonico[:i], canonico[i+1:], nil
}

// ExtraerTrackID saca el identificador de seguimiento de la respuesta del SII,
// sea JSON ({"trackid": N}) o XML (<TRACKID>N</TRACKID>).
func ExtraerTrackID(body []byte) (string, error) {
	recortado := bytes.TrimSpace(body)
	if len(recortado) == 0 {
		return "", fmt.Errorf("respuesta vacía")
	}
	if recortado[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(recortado, &m); err != nil {
			return "", fmt.Errorf("parsear JSON: %w", err)
		}
		for k, v := range m {
			if strings.EqualFold(k, "trackid") {
				switch n := v.(type) {
				case string:
					return n, nil
				case float64:
					return fmt.Sprintf("%.0f", n), nil
				}
			}
		}
		return "", fmt.Errorf("JSON sin campo trackid")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(recortado); err != nil {
		return "", fmt.Errorf("parsear XML: %w", err)
	}
	if el := buscarElemento(doc.Root(), "trackid"); el != nil {
		if texto := strings.TrimSpace(el.Text()); texto != "" {
			return texto, nil
		}
	}
	return "", fmt.Errorf("XML sin elemento TRACKID")
}

// estadoRechazo revisa el campo STATUS/estado de la respuesta: distinto de
// "0" significa que el SII rechazó la recepción.
func estadoRechazo(body []byte) (codigo string, rechazo bool) {
	estado := extraerEstado(body)
	if estado == "" || estado == "0" {
		return "", false
	}
	return estado, true
}

func extraerEstado(body []byte) string {
	recortado := bytes.TrimSpace(body)
	if len(recortado) == 0 {
		return ""
	}
	if recortado[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(recortado, &m); err != nil {
			return ""
		}
		for k, v := range m {
			if strings.EqualFold(k, "status") || strings.EqualFold(k, "estado") {
				switch n := v.(type) {
				case string:
					return n
				case float64:
					return fmt.Sprintf("%.0f", n)
				}
			}
		}
		return ""
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(recortado); err != nil {
		return ""
	}
	if el := buscarElemento(doc.Root(), "status"); el != nil {
		return strings.TrimSpace(el.Text())
	}
	if el := buscarElemento(doc.Root(), "estado"); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// buscarElemento recorre el árbol buscando la primera etiqueta que coincida
// sin distinguir mayúsculas (el SII mezcla TRACKID, trackId y trackid).
func buscarElemento(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if strings.EqualFold(el.Tag, tag) {
		return el
	}
	for _, hijo := range el.ChildElements() {
		if found := buscarElemento(hijo, tag); found != nil {
			return found
		}
	}
	return nil
}

func resumen(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
