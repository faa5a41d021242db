package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/yaziris/discured/hive"
	"github.com/yaziris/discured/internal/config"
	"github.com/yaziris/discured/internal/infra/chat"
	"github.com/yaziris/discured/internal/infra/database"
	"github.com/yaziris/discured/internal/infra/gateway"
	"github.com/yaziris/discured/internal/infra/store"
	"github.com/yaziris/discured/internal/present/rest"
	"github.com/yaziris/discured/internal/service"
	"github.com/yaziris/discured/internal/usecase"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracing(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown()
	}

	node := hive.NewClient(conf.Server.NodeURL)
	engine := hive.NewEngineClient(conf.Server.SidechainURL)
	signer, err := hive.NewSigner(conf.Curation.PostingWIF, hive.MainnetChainID)
	if err != nil {
		slog.Error("failed to parse posting key", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ledger := gateway.NewHiveGateway(node, engine, signer)

	links, err := store.Open(conf.Server.StorePath)
	if err != nil {
		slog.Error("failed to open link store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	platform := chat.NewDiscordPlatform(conf.Chat)

	var signalSvc *service.SignalService
	var events usecase.EventSink
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
		signalSvc = service.NewSignalService(rdb)
		events = signalSvc
	}

	link := usecase.NewLinkUsecase(links, ledger, platform, events, conf.Curation, conf.Tuning.LookbackWindow.Std())
	curate := usecase.NewCurateUsecase(links, ledger, platform, events, conf.Curation)
	reconcile := usecase.NewReconcileUsecase(links, ledger, platform, events, conf.Curation, conf.Tuning)
	sessions := service.NewSessionService(conf.Tuning.SessionTimeout.Std())

	go runReconcileLoop(ctx, reconcile, conf.Tuning.ReconcileInterval.Std())

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(otelecho.Middleware("discured"))

	handler := rest.NewHandler(conf, link, curate, reconcile, sessions, signalSvc, links)
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	slog.Info("discured started",
		slog.String("listen", conf.Server.ListenAddr),
		slog.String("token", conf.Curation.TokenSymbol),
		slog.String("curator", conf.Curation.Account),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

// runReconcileLoop fires a role sync at startup and then on the
// configured interval. Overlap is handled inside the usecase: a firing
// that lands mid-cycle is skipped, never queued.
func runReconcileLoop(ctx context.Context, reconcile *usecase.ReconcileUsecase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := reconcile.Reconcile(ctx)
		switch {
		case errors.Is(err, usecase.ErrCycleInProgress):
			slog.Info("reconciliation still running, skipping cycle",
				slog.String("module", "reconcile"),
			)
		case err != nil:
			slog.Error("reconciliation failed",
				slog.String("error", err.Error()),
				slog.String("module", "reconcile"),
			)
		default:
			slog.Info("reconciliation complete",
				slog.Int("population", report.Population),
				slog.Int("granted", report.Granted),
				slog.Int("revoked", report.Revoked),
				slog.Int("failed", report.Failed),
				slog.Duration("took", report.Duration),
				slog.String("module", "reconcile"),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	opts := []otlptracehttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "discured"),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("trace provider shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}
