package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/emisordte/emisor-dte/internal/application/cola"
	"github.com/emisordte/emisor-dte/internal/application/dto"
	"github.com/emisordte/emisor-dte/internal/domain"
)

// ColaHandler expone el panel del operador sobre la cola de envío.
type ColaHandler struct {
	proc     *cola.Procesador
	enc      *cola.Encolador
	ambiente string
}

// NewColaHandler construye el handler. ambiente es el default para los
// informes encolados sin ambiente explícito.
func NewColaHandler(proc *cola.Procesador, enc *cola.Encolador, ambiente string) *ColaHandler {
	return &ColaHandler{proc: proc, enc: enc, ambiente: ambiente}
}

// Informe encola un informe XML armado por el caller.
// POST /api/cola/informe
func (h *ColaHandler) Informe(c *fiber.Ctx) error {
	var in dto.EncolarInformeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.XML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "xml requerido"})
	}
	ambiente := in.Ambiente
	if ambiente == "" {
		ambiente = h.ambiente
	}
	trabajo, err := h.enc.EncolarInforme(c.Context(), []byte(in.XML), ambiente, in.Token, in.Meta)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.EncolarInformeResponse{TrabajoID: trabajo.ID})
}

// Estadisticas resumen de la cola.
// GET /api/cola/estadisticas
func (h *ColaHandler) Estadisticas(c *fiber.Ctx) error {
	e, err := h.proc.Estadisticas(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.EstadisticasColaResponse{
		Pendientes: e.Pendientes,
		EnEspera:   e.EnEspera,
		Fallidos:   e.Fallidos,
	})
}

// Registro últimas entradas del log de envíos.
// GET /api/cola/registro?limit=50
func (h *ColaHandler) Registro(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "query inválida"})
	}
	page.DefaultPage()
	entradas, err := h.proc.Registro(c.Context(), page.Limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.RegistroEnvioResponse, 0, len(entradas))
	for _, r := range entradas {
		out = append(out, dto.RegistroEnvioResponse{
			ID:       r.ID,
			TrackID:  r.TrackID,
			Estado:   r.Estado,
			Detalle:  r.Detalle,
			Ambiente: r.Ambiente,
			Metadata: r.Metadata,
			CreadoEn: r.CreadoEn,
		})
	}
	return c.JSON(out)
}

// Estado consulta en el SII el estado de un envío por su trackID.
// GET /api/cola/estado/:trackid
func (h *ColaHandler) Estado(c *fiber.Ctx) error {
	trackID := c.Params("trackid")
	if trackID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "trackid requerido"})
	}
	ambiente := c.Query("ambiente", h.ambiente)
	estado, err := h.proc.Estado(c.Context(), trackID, ambiente, c.Query("token"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "ENVIO_FALLIDO", Message: err.Error()})
	}
	return c.JSON(fiber.Map{"track_id": trackID, "estado": estado})
}

// Procesar fuerza el envío inmediato de un trabajo.
// POST /api/cola/:id/procesar
func (h *ColaHandler) Procesar(c *fiber.Ctx) error {
	id, err := idTrabajo(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id inválido"})
	}
	if err := h.proc.Procesar(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "trabajo no encontrado"})
		}
		// El envío falló: el trabajo sigue su política de reintentos.
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "ENVIO_FALLIDO", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reintentar vuelve a cero los intentos de un trabajo.
// POST /api/cola/:id/reintentar
func (h *ColaHandler) Reintentar(c *fiber.Ctx) error {
	id, err := idTrabajo(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id inválido"})
	}
	if err := h.proc.Reintentar(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "trabajo no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReintentarFallidos reencola todos los trabajos al tope de intentos.
// POST /api/cola/reintentar-fallidos
func (h *ColaHandler) ReintentarFallidos(c *fiber.Ctx) error {
	n, err := h.proc.ReintentarFallidos(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.ReintentarFallidosResponse{Reencolados: n})
}

// Cancelar descarta un trabajo sin enviarlo.
// DELETE /api/cola/:id
func (h *ColaHandler) Cancelar(c *fiber.Ctx) error {
	id, err := idTrabajo(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id inválido"})
	}
	if err := h.proc.Cancelar(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "trabajo no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func idTrabajo(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
