package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	appdte "github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/application/dto"
	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/totales"
)

// DTEHandler maneja la emisión de documentos y el cálculo de totales.
type DTEHandler struct {
	emision *appdte.Emision
	pdf     appdte.GeneradorPDF
}

// NewDTEHandler construye el handler.
func NewDTEHandler(emision *appdte.Emision, pdf appdte.GeneradorPDF) *DTEHandler {
	return &DTEHandler{emision: emision, pdf: pdf}
}

// Emitir ejecuta el pipeline completo de emisión.
// POST /api/dte/emitir
func (h *DTEHandler) Emitir(c *fiber.Ctx) error {
	var in dto.EmitirDTERequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.emision.Emitir(c.Context(), solicitudDesdeDTO(in))
	if err != nil {
		return responderErrorEmision(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.EmitirDTEResponse{
		TipoDTE:      res.Documento.TipoDTE,
		Folio:        res.Documento.Folio,
		FechaEmision: res.Documento.FechaEmision,
		Totales:      totalesDTO(res.Documento.Totales),
		TrabajoID:    res.TrabajoID,
		RangoID:      res.RangoID,
	})
}

// Previsualizar calcula totales y reserva un folio sin emitir.
// POST /api/dte/previsualizar
func (h *DTEHandler) Previsualizar(c *fiber.Ctx) error {
	var in dto.EmitirDTERequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.emision.Previsualizar(c.Context(), solicitudDesdeDTO(in))
	if err != nil {
		return responderErrorEmision(c, err)
	}
	return c.JSON(dto.EmitirDTEResponse{
		TipoDTE:      doc.TipoDTE,
		Folio:        doc.Folio,
		FechaEmision: doc.FechaEmision,
		Totales:      totalesDTO(doc.Totales),
	})
}

// Representacion genera el PDF de una previsualización.
// POST /api/dte/representacion
func (h *DTEHandler) Representacion(c *fiber.Ctx) error {
	var in dto.EmitirDTERequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	doc, err := h.emision.Previsualizar(c.Context(), solicitudDesdeDTO(in))
	if err != nil {
		return responderErrorEmision(c, err)
	}
	datos, err := h.pdf.GenerarPDF(doc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(datos)
}

// CalcularTotales calcula los montos legales sin tocar folios ni cola.
// POST /api/dte/totales
func (h *DTEHandler) CalcularTotales(c *fiber.Ctx) error {
	var in dto.CalcularTotalesRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	tot := totales.Calcular(lineasDesdeDTO(in.Lineas), in.TasaIVA, ajustesDesdeDTO(in.Ajustes))
	return c.JSON(totalesDTO(tot))
}

// ── conversión DTO ↔ aplicación ───────────────────────────────────────────────

func solicitudDesdeDTO(in dto.EmitirDTERequest) appdte.SolicitudEmision {
	return appdte.SolicitudEmision{
		TipoDTE: in.TipoDTE,
		Receptor: appdte.Receptor{
			RUT:         in.Receptor.RUT,
			RazonSocial: in.Receptor.RazonSocial,
			Giro:        in.Receptor.Giro,
			Direccion:   in.Receptor.Direccion,
			Comuna:      in.Receptor.Comuna,
		},
		Lineas:  lineasDesdeDTO(in.Lineas),
		Ajustes: ajustesDesdeDTO(in.Ajustes),
		TasaIVA: in.TasaIVA,
		Meta:    in.Meta,
	}
}

func lineasDesdeDTO(in []dto.LineaDTO) []totales.Linea {
	out := make([]totales.Linea, 0, len(in))
	for i, l := range in {
		out = append(out, totales.Linea{
			Numero:         i + 1,
			Nombre:         l.Nombre,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
			Monto:          l.Monto,
			Exenta:         l.Exenta,
			PrecioBruto:    l.PrecioBruto,
			DescuentoPct:   l.DescuentoPct,
			DescuentoMonto: l.DescuentoMonto,
			RecargoPct:     l.RecargoPct,
			RecargoMonto:   l.RecargoMonto,
		})
	}
	return out
}

func ajustesDesdeDTO(in []dto.AjusteDTO) []totales.Ajuste {
	out := make([]totales.Ajuste, 0, len(in))
	for _, a := range in {
		out = append(out, totales.Ajuste{
			Movimiento:  a.Movimiento,
			TipoValor:   a.TipoValor,
			Valor:       a.Valor,
			SobreExento: a.SobreExento,
		})
	}
	return out
}

func totalesDTO(t totales.Totales) dto.TotalesDTO {
	return dto.TotalesDTO{Neto: t.Neto, Exento: t.Exento, IVA: t.IVA, Total: t.Total}
}

func responderErrorEmision(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	if errors.Is(err, domain.ErrSinFolios) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "SIN_FOLIOS", Message: "no hay folios disponibles: cargue un nuevo CAF"})
	}
	if errors.Is(err, domain.ErrConflict) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "contención al asignar folio, reintente"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
