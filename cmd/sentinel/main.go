// Command sentinel runs the correlation and alerting server: it ingests
// events over HTTP and optionally MQTT, evaluates correlation rules, and
// delivers alerts to configured notification channels.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	api "github.com/tkarvo/sentinel-go/internal/api/v2"
	"github.com/tkarvo/sentinel-go/internal/conf"
	"github.com/tkarvo/sentinel-go/internal/correlation"
	"github.com/tkarvo/sentinel-go/internal/datastore"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/logger"
	"github.com/tkarvo/sentinel-go/internal/mqtt"
	"github.com/tkarvo/sentinel-go/internal/notification"
	"github.com/tkarvo/sentinel-go/internal/observability/metrics"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "sentinel",
		Short:   "Event correlation and alerting engine",
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return run(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewDefault(logger.ParseLevel(settings.Main.LogLevel))
	log.Info("starting",
		logger.String("name", settings.Main.Name),
		logger.String("version", version),
		logger.String("database", settings.Database.Type))

	if settings.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     settings.Sentry.DSN,
			Release: version,
		}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	manager, err := datastore.Open(settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()
	if err := manager.Initialize(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	corrMetrics := metrics.NewCorrelationMetrics(registry)

	engine := correlation.NewEngine(
		settings.Correlation.GroupAttribute,
		settings.Correlation.DefaultThrottle.Std(),
		log,
		correlation.WithMetrics(corrMetrics),
	)

	bus := correlation.NewAlertBus(256, log)
	defer bus.Stop()

	if svc := buildNotificationService(settings, log); svc.Enabled() {
		bus.Subscribe(svc.Handler())
	}

	tx := repository.NewTxRunner(manager.DB(), manager.IsMySQL())
	ingestor := correlation.NewIngestor(tx, engine, bus, log, corrMetrics)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.New(e, settings, manager, ingestor, registry, log, version, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", settings.Server.Addr()))
		if err := e.Start(settings.Server.Addr()); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if settings.MQTT.Enabled {
		client := mqtt.NewClient(settings.MQTT, ingestor, log)
		g.Go(func() error {
			if err := client.Connect(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			client.Disconnect()
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutting down after error", logger.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// buildNotificationService assembles the configured delivery channels.
func buildNotificationService(settings *conf.Settings, log logger.Logger) *notification.Service {
	var notifiers []notification.Notifier
	if settings.Notification.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(settings.Notification.WebhookURL, nil))
	}
	if len(settings.Notification.PushURLs) > 0 {
		push, err := notification.NewPushNotifier(settings.Notification.PushURLs)
		if err != nil {
			log.Error("ignoring invalid push configuration", logger.Error(err))
		} else {
			notifiers = append(notifiers, push)
		}
	}
	return notification.NewService(log, notifiers...)
}
