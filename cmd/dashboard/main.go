package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/auth"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/products"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
	"github.com/rafiq-567/eagle3d-dashboard/internal/infrastructure/backend"
	httpRouter "github.com/rafiq-567/eagle3d-dashboard/internal/interfaces/http"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("dashboard", pflag.ExitOnError)
	flags.Int("http_port", 3000, "puerto de escucha del dashboard")
	flags.String("backend_base_url", "http://localhost:5000/api", "URL base del backend de productos")
	flags.String("log_level", "info", "nivel de log (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	level, _ := flags.GetString("log_level")
	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("backend", cfg.Backend.BaseURL).
		Msg("iniciando aplicación")

	store := state.NewStore()

	client, err := backend.NewClient(cfg.Backend, cfg.Session.CookieName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cliente del backend")
	}
	stream := backend.NewSSEStream(cfg.Backend, client.StreamHTTP(), log)

	productsUC := products.NewUseCase(client, stream, store, log)
	defer productsUC.Close()
	authUC := auth.NewUseCase(client, store, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Eagle3D Dashboard API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		ProductsUC: productsUC,
		Session:    cfg.Session,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
