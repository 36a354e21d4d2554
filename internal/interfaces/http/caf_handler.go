package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/emisordte/emisor-dte/internal/application/dto"
	"github.com/emisordte/emisor-dte/internal/application/folios"
	"github.com/emisordte/emisor-dte/internal/domain"
	"github.com/emisordte/emisor-dte/internal/domain/entity"
)

// CafHandler administra los rangos CAF (solo admin).
type CafHandler struct {
	admin *folios.AdminCaf
}

// NewCafHandler construye el handler.
func NewCafHandler(admin *folios.AdminCaf) *CafHandler {
	return &CafHandler{admin: admin}
}

// Importar carga el XML de un CAF.
// POST /api/caf
func (h *CafHandler) Importar(c *fiber.Ctx) error {
	var in dto.ImportarCafRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.XML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "xml requerido"})
	}
	rango, err := h.admin.ImportarCaf(c.Context(), []byte(in.XML), in.Ambiente)
	if err != nil {
		return responderErrorCaf(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rangoResponse(rango))
}

// Listar devuelve los rangos de un ambiente.
// GET /api/caf?ambiente=cert
func (h *CafHandler) Listar(c *fiber.Ctx) error {
	ambiente := c.Query("ambiente")
	rangos, err := h.admin.Listar(c.Context(), ambiente)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.RangoResponse, 0, len(rangos))
	for _, r := range rangos {
		out = append(out, rangoResponse(r))
	}
	return c.JSON(out)
}

// Info devuelve los metadatos de autorización de un rango.
// GET /api/caf/:id/info
func (h *CafHandler) Info(c *fiber.Ctx) error {
	info, err := h.admin.InfoCaf(c.Context(), c.Params("id"))
	if err != nil {
		return responderErrorCaf(c, err)
	}
	out := dto.InfoCafResponse{
		TipoDTE:     info.TipoDTE,
		Desde:       info.Desde,
		Hasta:       info.Hasta,
		RutEmisor:   info.RutEmisor,
		RazonSocial: info.RazonSocial,
		IDK:         info.IDK,
	}
	if !info.FechaResolucion.IsZero() {
		out.FechaResolucion = info.FechaResolucion.Format("2006-01-02")
	}
	return c.JSON(out)
}

// Actualizar corrige las cotas de un rango.
// PUT /api/caf/:id
func (h *CafHandler) Actualizar(c *fiber.Ctx) error {
	var in dto.ActualizarRangoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	rango, err := h.admin.Actualizar(c.Context(), c.Params("id"), in.Desde, in.Hasta)
	if err != nil {
		return responderErrorCaf(c, err)
	}
	return c.JSON(rangoResponse(rango))
}

// Eliminar borra un rango.
// DELETE /api/caf/:id
func (h *CafHandler) Eliminar(c *fiber.Ctx) error {
	if err := h.admin.Eliminar(c.Context(), c.Params("id")); err != nil {
		return responderErrorCaf(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func rangoResponse(r *entity.RangoFolios) dto.RangoResponse {
	return dto.RangoResponse{
		ID:            r.ID,
		TipoDTE:       r.TipoDTE,
		Desde:         r.Desde,
		Hasta:         r.Hasta,
		Ambiente:      r.Ambiente,
		CargadoEn:     r.CargadoEn,
		ActualizadoEn: r.ActualizadoEn,
	}
}

func responderErrorCaf(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	if errors.Is(err, domain.ErrRangoSolapado) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RANGO_SOLAPADO", Message: "el rango se solapa con uno existente"})
	}
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "rango no encontrado"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
