package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emisordte/emisor-dte/internal/application/auth"
	"github.com/emisordte/emisor-dte/internal/application/cola"
	appdte "github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/application/folios"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC     *auth.UseCase
	Emision    *appdte.Emision
	Encolador  *cola.Encolador
	PDF        appdte.GeneradorPDF
	AdminCaf   *folios.AdminCaf
	Asignador  *folios.Asignador
	Procesador *cola.Procesador
	JWTSecret  string
	Ambiente   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Emisión de DTE (protegido)
	dteGroup := protected.Group("/dte")
	dteHandler := NewDTEHandler(deps.Emision, deps.PDF)
	dteGroup.Post("/emitir", dteHandler.Emitir)
	dteGroup.Post("/previsualizar", dteHandler.Previsualizar)
	dteGroup.Post("/representacion", dteHandler.Representacion)
	dteGroup.Post("/totales", dteHandler.CalcularTotales)

	// Folios (protegido)
	foliosGroup := protected.Group("/folios")
	folioHandler := NewFolioHandler(deps.Asignador, deps.AdminCaf, deps.Ambiente)
	foliosGroup.Get("/:tipo/siguiente", folioHandler.VerSiguiente)
	foliosGroup.Get("/:tipo/info", folioHandler.Info)
	foliosGroup.Post("/:tipo/siguiente", folioHandler.Siguiente)
	foliosGroup.Post("/:tipo/reservar", folioHandler.Reservar)
	foliosGroup.Post("/:tipo/liberar", folioHandler.Liberar)
	foliosGroup.Post("/marcar-usado", folioHandler.MarcarUsado)

	// Cola de envío (protegido)
	colaGroup := protected.Group("/cola")
	colaHandler := NewColaHandler(deps.Procesador, deps.Encolador, deps.Ambiente)
	colaGroup.Get("/estadisticas", colaHandler.Estadisticas)
	colaGroup.Get("/registro", colaHandler.Registro)
	colaGroup.Get("/estado/:trackid", colaHandler.Estado)
	colaGroup.Post("/informe", colaHandler.Informe)
	colaGroup.Post("/reintentar-fallidos", colaHandler.ReintentarFallidos)
	colaGroup.Post("/:id/procesar", colaHandler.Procesar)
	colaGroup.Post("/:id/reintentar", colaHandler.Reintentar)
	colaGroup.Delete("/:id", colaHandler.Cancelar)

	// Administración de CAF (protegido, solo admin)
	cafGroup := protected.Group("/caf", RequireAdmin())
	cafHandler := NewCafHandler(deps.AdminCaf)
	cafGroup.Post("/", cafHandler.Importar)
	cafGroup.Get("/", cafHandler.Listar)
	cafGroup.Get("/:id/info", cafHandler.Info)
	cafGroup.Put("/:id", cafHandler.Actualizar)
	cafGroup.Delete("/:id", cafHandler.Eliminar)
}
