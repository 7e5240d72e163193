package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/lectorium/workshop/internal/application/config"
	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/application/metric"
	"github.com/lectorium/workshop/internal/infra/adapters/postgres"
	"github.com/lectorium/workshop/internal/infra/adapters/postgres/repository"
	"github.com/lectorium/workshop/internal/infra/ports/http/handlers"
	"github.com/lectorium/workshop/internal/infra/ports/http/server"
	"github.com/lectorium/workshop/internal/registry"
	"github.com/lectorium/workshop/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: slog.LevelInfo},
			),
		),
	)

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepo(dbConn)
	workshopRepo := repository.NewWorkshopRepo(dbConn)

	reg := registry.New()
	defer reg.Close()

	relay := registry.NewRelay(reg)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo)
	workshopUsecase := usecase.NewWorkshopUsecase(workshopRepo)
	signalingUsecase := usecase.NewSignalingUsecase(workshopRepo, reg, relay)

	authHandler := handlers.NewAuthHandler(userUsecase)
	workshopHandler := handlers.NewWorkshopHandler(workshopUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, signalingUsecase)

	echoSrv := server.New(cfg, authHandler, workshopHandler, iceHandler, wsHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricsPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down servers")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("shutdown metrics server", slog.Any(constant.Error, err))
	}
}
