package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	go_json "github.com/goccy/go-json"
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"github.com/kursadbilgin/toast-engine/internal/config"
	"github.com/kursadbilgin/toast-engine/internal/countdown"
	"github.com/kursadbilgin/toast-engine/internal/handler"
	"github.com/kursadbilgin/toast-engine/internal/observability"
	"github.com/kursadbilgin/toast-engine/internal/service"
	"github.com/kursadbilgin/toast-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	var source audio.Source
	if cfg.SoundBaseURL != "" {
		httpSource, err := audio.NewHTTPSource(cfg.SoundBaseURL, cfg.SoundCacheBytes)
		if err != nil {
			logger.Fatal("sound source initialization failed", zap.Error(err))
		}
		defer httpSource.Close()
		source = httpSource
	}

	clock := countdown.SystemClock{}
	audioLogger := logger.Named("audio")
	newSound := func(soundCfg audio.Config, emit func(audio.Cue)) *audio.Manager {
		device := audio.NewCueDevice(clock, cfg.SoundCueLength(), emit)
		manager := audio.NewManager(soundCfg, device, source, audioLogger)
		manager.PreloadAll(context.Background())
		return manager
	}

	svc, err := service.NewNotificationService(service.Options{
		MaxNotifications: cfg.MaxNotifications,
		PlaySoundDefault: cfg.PlaySoundDefault,
		DefaultDuration:  cfg.DefaultDuration(),
		Clock:            clock,
	}, newSound, logger.Named("service"))
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}
	svc.SetMetrics(metrics)

	if cfg.SoundEnabled {
		soundCfg := audio.DefaultConfig()
		soundCfg.Volume = cfg.SoundVolume
		soundCfg.AllowOverlap = cfg.SoundAllowOverlap
		svc.SetSoundConfig(&soundCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(svc, metrics, logger)

	if err := run(service.WithService(ctx, svc), app, cfg.APIPort, logger); err != nil {
		logger.Error("toast-engine stopped with error", zap.Error(err))
		return
	}
	logger.Info("toast-engine stopped")
}

func newApp(svc *service.NotificationService, metrics *observability.Metrics, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger.Named("http")),
		JSONEncoder:           go_json.Marshal,
		JSONDecoder:           go_json.Unmarshal,
		DisableStartupMessage: true,
	})

	app.Use(transport.CorrelationID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, svc)
	if err := handler.RegisterNotificationRoutes(app, svc, logger.Named("http")); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	return app
}

// run serves HTTP until ctx is cancelled. Closing the service first ends open
// notification streams so the server can drain.
func run(ctx context.Context, app *fiber.App, port int, logger *zap.Logger) error {
	svc := service.MustFromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("toast-engine api started", zap.Int("port", port))
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		svc.Close()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
