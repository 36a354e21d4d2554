package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/emisordte/emisor-dte/internal/application/dto"
	"github.com/emisordte/emisor-dte/internal/application/folios"
	"github.com/emisordte/emisor-dte/internal/domain"
)

// FolioHandler expone la numeración directa, para integraciones que generan
// el documento por su cuenta y solo necesitan el folio.
type FolioHandler struct {
	asignador *folios.Asignador
	admin     *folios.AdminCaf
	ambiente  string
}

// NewFolioHandler construye el handler. ambiente es el configurado para el
// proceso; los folios de cada ambiente son independientes.
func NewFolioHandler(asignador *folios.Asignador, admin *folios.AdminCaf, ambiente string) *FolioHandler {
	return &FolioHandler{asignador: asignador, admin: admin, ambiente: ambiente}
}

// VerSiguiente muestra el próximo folio sin consumirlo.
// GET /api/folios/:tipo/siguiente
func (h *FolioHandler) VerSiguiente(c *fiber.Ctx) error {
	tipo, err := tipoDTEParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de DTE inválido"})
	}
	folio, rango, err := h.asignador.VerSiguiente(c.Context(), tipo, h.ambiente)
	if err != nil {
		return responderErrorFolio(c, err)
	}
	return c.JSON(fiber.Map{"tipo_dte": tipo, "folio": folio, "rango_id": rango.ID})
}

// Info devuelve los metadatos del CAF vigente para el tipo.
// GET /api/folios/:tipo/info
func (h *FolioHandler) Info(c *fiber.Ctx) error {
	tipo, err := tipoDTEParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de DTE inválido"})
	}
	info, err := h.admin.InfoPorTipo(c.Context(), tipo, h.ambiente)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "no hay CAF cargado para el tipo"})
		}
		return responderErrorFolio(c, err)
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

// Siguiente consume y devuelve el siguiente folio del tipo.
// POST /api/folios/:tipo/siguiente
func (h *FolioHandler) Siguiente(c *fiber.Ctx) error {
	tipo, err := tipoDTEParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de DTE inválido"})
	}
	folio, rango, err := h.asignador.SiguienteFolio(c.Context(), tipo, h.ambiente)
	if err != nil {
		return responderErrorFolio(c, err)
	}
	return c.JSON(fiber.Map{"tipo_dte": tipo, "folio": folio, "rango_id": rango.ID})
}

// Reservar toma el siguiente folio con ventana de expiración.
// POST /api/folios/:tipo/reservar
func (h *FolioHandler) Reservar(c *fiber.Ctx) error {
	tipo, err := tipoDTEParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de DTE inválido"})
	}
	reserva, err := h.asignador.ReservarTemporal(c.Context(), tipo, h.ambiente)
	if err != nil {
		return responderErrorFolio(c, err)
	}
	return c.JSON(fiber.Map{
		"tipo_dte": tipo,
		"folio":    reserva.Reservado,
		"expira":   reserva.Expira,
	})
}

// Liberar suelta la reserva vigente del tipo (best-effort).
// POST /api/folios/:tipo/liberar
func (h *FolioHandler) Liberar(c *fiber.Ctx) error {
	tipo, err := tipoDTEParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tipo de DTE inválido"})
	}
	if err := h.asignador.Liberar(c.Context(), tipo, h.ambiente); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarcarUsado avanza el contador hasta un folio emitido fuera del sistema.
// POST /api/folios/marcar-usado
func (h *FolioHandler) MarcarUsado(c *fiber.Ctx) error {
	var in dto.MarcarUsadoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.asignador.MarcarUsado(c.Context(), in.TipoDTE, h.ambiente, in.Folio); err != nil {
		return responderErrorFolio(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func tipoDTEParam(c *fiber.Ctx) (int, error) {
	return strconv.Atoi(c.Params("tipo"))
}

func responderErrorFolio(c *fiber.Ctx, err error) error {
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
