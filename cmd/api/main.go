package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/emisordte/emisor-dte/internal/application/auth"
	"github.com/emisordte/emisor-dte/internal/application/cola"
	appdte "github.com/emisordte/emisor-dte/internal/application/dte"
	"github.com/emisordte/emisor-dte/internal/application/folios"
	infrapdf "github.com/emisordte/emisor-dte/internal/infrastructure/pdf"
	"github.com/emisordte/emisor-dte/internal/infrastructure/postgres"
	infrasii "github.com/emisordte/emisor-dte/internal/infrastructure/sii"
	"github.com/emisordte/emisor-dte/internal/infrastructure/storage"
	httpRouter "github.com/emisordte/emisor-dte/internal/interfaces/http"
	"github.com/emisordte/emisor-dte/pkg/config"
	"github.com/emisordte/emisor-dte/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sii", cfg.SII.Ambiente).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	cafRepo := postgres.NewCafRepository(pool)
	contadorRepo := postgres.NewContadorRepository(pool)
	reservaRepo := postgres.NewReservaRepository(pool)
	colaRepo := postgres.NewColaRepository(pool)
	registroRepo := postgres.NewRegistroRepository(pool)
	usuarioRepo := postgres.NewUsuarioRepository(pool)

	almacen, err := storage.NewAlmacen(cfg.SII.DirArchivos)
	if err != nil {
		log.Fatal().Err(err).Msg("almacén de archivos")
	}

	clienteSII := infrasii.NewClienteSII(cfg.SII.RutEmisor)
	generadorXML := infrasii.NewGeneradorDTE()
	generadorPDF := infrapdf.NewRepresentacionMaroto()

	asignador := folios.NewAsignador(cafRepo, contadorRepo, reservaRepo, log)
	adminCaf := folios.NewAdminCaf(cafRepo, infrasii.ParsearCaf, log)
	encolador := cola.NewEncolador(colaRepo, registroRepo, almacen, log)
	procesador := cola.NewProcesador(
		colaRepo, registroRepo, almacen, clienteSII,
		cfg.SII.TopeReintentos, cfg.SII.EsperaReintento, log,
	)
	emision := appdte.NewEmision(asignador, encolador, almacen, generadorXML, cfg.SII, log)
	authUC := auth.NewUseCase(usuarioRepo, cfg.JWT, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		Emision:    emision,
		Encolador:  encolador,
		PDF:        generadorPDF,
		AdminCaf:   adminCaf,
		Asignador:  asignador,
		Procesador: procesador,
		JWTSecret:  cfg.JWT.Secret,
		Ambiente:   cfg.SII.Ambiente,
	})

	// Barrido periódico de la cola de envío. El lock de barrido garantiza que
	// con varias réplicas corre a lo más un barrido a la vez.
	barridoCtx, detenerBarrido := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.SII.IntervaloCola)
		defer ticker.Stop()
		for {
			select {
			case <-barridoCtx.Done():
				return
			case <-ticker.C:
				n, err := procesador.Barrer(barridoCtx)
				if err != nil {
					log.Error().Err(err).Msg("barrido de la cola")
				} else if n > 0 {
					log.Info().Int("trabajos", n).Msg("barrido de la cola completado")
				}
			}
		}
	}()

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	detenerBarrido()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
