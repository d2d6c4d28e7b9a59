// Package app wires one pipeline stage: repositories, publisher, processor and
// the stream runner that feeds it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikolayk812/cartflow/internal/config"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/nikolayk812/cartflow/internal/relay"
	"github.com/nikolayk812/cartflow/internal/repository"
	"github.com/nikolayk812/cartflow/internal/rules"
	"github.com/nikolayk812/cartflow/internal/runner"
	"github.com/nikolayk812/cartflow/internal/stage"
	"github.com/nikolayk812/cartflow/internal/stream"
	"github.com/nikolayk812/cartflow/internal/tracing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type worker interface {
	Setup(ctx context.Context) error
	Run(ctx context.Context) error
}

// App is a ready to run stage.
type App struct {
	cfg    config.Config
	log    *slog.Logger
	worker worker
}

// New builds the stage selected by cfg.Stage on top of broker.
func New(cfg config.Config, log *slog.Logger, tel *tracing.Telemetry, broker port.StreamBroker, httpClient *http.Client) (*App, error) {
	catalog := repository.NewCatalog(httpClient, cfg.Admin.BaseURL, cfg.HTTPTimeout)
	carts := repository.NewCart(httpClient, cfg.Cart.BaseURL, cfg.HTTPTimeout)

	runnerCfg := runner.Config{
		Stream:           cfg.Stream.Name,
		Group:            cfg.Stream.Group,
		DeadLetterStream: cfg.Stream.DeadLetter,
		ReadCount:        int64(cfg.Stream.ReadCount),
		BlockTimeout:     cfg.Stream.BlockTimeout,
		ReclaimInterval:  cfg.Stream.ReclaimInterval,
		ReclaimMinIdle:   cfg.Stream.ReclaimMinIdle,
		MaxDeliveries:    int64(cfg.Stream.MaxDeliveries),
	}

	var next *relay.Publisher
	if cfg.Stream.Destination != "" {
		next = relay.NewPublisher(broker, cfg.Stream.Destination, cfg.ServiceName, tel.Tracer, tel.Propagator)
	}

	var w worker
	switch cfg.Stage {
	case config.StageConfig:
		handler := stage.NewConfig(catalog, rules.NewEngine(log), next, cfg.BatchSize, log)
		w = runner.New[domain.CartMessage](broker, handler, runnerCfg, log, tel)
	case config.StagePricing:
		handler := stage.NewPricing(catalog, carts, next, cfg.BatchSize, log)
		w = runner.New[domain.CartMessage](broker, handler, runnerCfg, log, tel)
	case config.StageCart:
		handler := stage.NewCart(carts, cfg.BatchSize, log)
		w = runner.New[domain.PricingResponse](broker, handler, runnerCfg, log, tel)
	default:
		return nil, fmt.Errorf("stage[%s] is unknown", cfg.Stage)
	}

	return &App{cfg: cfg, log: log, worker: w}, nil
}

// Run sets up the consumer group and consumes until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.worker.Setup(ctx); err != nil {
		return fmt.Errorf("worker.Setup: %w", err)
	}

	a.log.InfoContext(ctx, "stage_started",
		"stage", string(a.cfg.Stage),
		"stream", a.cfg.Stream.Name,
		"destination", a.cfg.Stream.Destination,
	)

	if err := a.worker.Run(ctx); err != nil {
		return fmt.Errorf("worker.Run: %w", err)
	}
	return nil
}

// NewHTTPClient returns a client whose requests carry client spans and the
// trace headers of the calling context.
func NewHTTPClient(tel *tracing.Telemetry) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tel.Provider),
			otelhttp.WithPropagators(tel.Propagator),
		),
	}
}

// NewRedis connects to the broker and checks it answers.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("client.Ping: %w", err)
	}

	return client, nil
}

// Main runs a stage process against Redis until ctx is cancelled.
func Main(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tel, err := tracing.New(ctx, tracing.Options{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.Otlp.Endpoint,
		Insecure:       cfg.Otlp.Insecure,
	})
	if err != nil {
		return fmt.Errorf("tracing.New: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			log.Error("tracing_shutdown_failed", "error", err)
		}
	}()

	client, err := NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("NewRedis: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("redis_close_failed", "error", err)
		}
	}()

	a, err := New(cfg, log, tel, stream.NewRedis(client), NewHTTPClient(tel))
	if err != nil {
		return fmt.Errorf("New: %w", err)
	}

	return a.Run(ctx)
}
