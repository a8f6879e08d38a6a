package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/rafiq-567/eagle3d-dashboard/internal/domain/entity"
	"github.com/rafiq-567/eagle3d-dashboard/internal/simulator"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/config"
	"github.com/rafiq-567/eagle3d-dashboard/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("backend-sim", pflag.ExitOnError)
	flags.Int("sim_port", 5000, "puerto de escucha del simulador")
	flags.String("sim_jwt_secret", "", "secreto HMAC para la cookie de sesión")
	flags.Bool("seed", false, "sembrar productos de ejemplo al arrancar")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("addr", cfg.Sim.Addr()).
		Msg("iniciando simulador de backend")

	sim, app, err := simulator.New(cfg.Sim, log)
	if err != nil {
		log.Fatal().Err(err).Msg("construir simulador")
	}

	if seed, _ := flags.GetBool("seed"); seed {
		seedProducts(sim.Store())
		log.Info().Int("products", len(sim.Store().List())).Msg("catálogo de ejemplo sembrado")
	}

	go func() {
		if err := app.Listen(cfg.Sim.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando simulador...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("simulador detenido")
}

// seedProducts carga un catálogo pequeño para desarrollo local.
func seedProducts(store *simulator.Store) {
	seed := []entity.Product{
		{
			Name:     "Impresora Delta XL",
			Price:    decimal.NewFromFloat(1899.99),
			Stock:    4,
			Category: "Impresoras",
			Status:   entity.StatusAvailable,
		},
		{
			Name:     "Filamento PLA 1kg",
			Price:    decimal.NewFromFloat(24.50),
			Stock:    120,
			Category: "Consumibles",
			Status:   entity.StatusAvailable,
		},
		{
			Name:     "Hotend v5 (legacy)",
			Price:    decimal.NewFromFloat(59.00),
			Stock:    0,
			Category: "Repuestos",
			Status:   entity.StatusDiscontinued,
		},
	}
	for _, p := range seed {
		store.Create(p)
	}
}
