// Package runner owns the read, process, acknowledge, delete lifecycle of a
// stage's stream entries. One Runner is instantiated per stage, parameterised
// by the message type it decodes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/port"
	"github.com/nikolayk812/cartflow/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Handler is the stage processor invoked for every decoded message.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

type HandlerFunc[T any] func(ctx context.Context, msg T) error

func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error { return f(ctx, msg) }

type Config struct {
	Stream           string
	Group            string
	DeadLetterStream string

	ReadCount    int64
	BlockTimeout time.Duration

	ReclaimInterval time.Duration
	ReclaimMinIdle  time.Duration
	MaxDeliveries   int64

	// AckTimeout bounds ack and delete, which run even after shutdown starts.
	AckTimeout time.Duration
}

type carrier interface {
	Carrier() *domain.Metadata
}

type Runner[T any] struct {
	broker   port.StreamBroker
	handler  Handler[T]
	cfg      Config
	consumer string
	log      *slog.Logger
	tel      *tracing.Telemetry

	newBackOff func() backoff.BackOff
}

func New[T any](broker port.StreamBroker, handler Handler[T], cfg Config, log *slog.Logger, tel *tracing.Telemetry) *Runner[T] {
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 1
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if cfg.DeadLetterStream == "" {
		cfg.DeadLetterStream = cfg.Stream + "-dlq"
	}

	consumer := cfg.Group + "-" + uuid.NewString()

	return &Runner[T]{
		broker:   broker,
		handler:  handler,
		cfg:      cfg,
		consumer: consumer,
		log:      log.With("stream", cfg.Stream, "group", cfg.Group, "consumer", consumer),
		tel:      tel,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (r *Runner[T]) Consumer() string { return r.consumer }

// Setup makes sure the stream and the consumer group exist. Safe to call repeatedly.
func (r *Runner[T]) Setup(ctx context.Context) error {
	if err := r.broker.EnsureGroup(ctx, r.cfg.Stream, r.cfg.Group); err != nil {
		return fmt.Errorf("broker.EnsureGroup: %w", err)
	}
	r.log.InfoContext(ctx, "consumer_group_ready")
	return nil
}

// Run consumes entries until ctx is cancelled. Failed entries stay pending and
// are reclaimed later; entries delivered more than MaxDeliveries times, and
// entries that cannot be decoded, go to the dead-letter stream.
func (r *Runner[T]) Run(ctx context.Context) error {
	bo := r.newBackOff()
	var lastReclaim time.Time

	r.log.InfoContext(ctx, "runner_started")
	defer r.log.Info("runner_stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if r.cfg.ReclaimInterval > 0 && time.Since(lastReclaim) >= r.cfg.ReclaimInterval {
			lastReclaim = time.Now()
			r.reclaim(ctx)
		}

		entries, err := r.broker.ReadGroup(ctx, r.cfg.Stream, r.cfg.Group, r.consumer, r.cfg.ReadCount, r.cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.NextBackOff()
			r.log.ErrorContext(ctx, "stream_read_failed", "error", err, "retry_in", wait.String())
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		bo.Reset()

		r.process(ctx, entries)
	}
}

func (r *Runner[T]) reclaim(ctx context.Context) {
	entries, err := r.broker.ClaimStale(ctx, r.cfg.Stream, r.cfg.Group, r.consumer, r.cfg.ReclaimMinIdle, r.cfg.ReadCount)
	if err != nil {
		if ctx.Err() == nil {
			r.log.ErrorContext(ctx, "stream_reclaim_failed", "error", err)
		}
		return
	}
	if len(entries) > 0 {
		r.log.InfoContext(ctx, "entries_reclaimed", "count", len(entries))
	}
	r.process(ctx, entries)
}

// process handles the entries of one read concurrently.
func (r *Runner[T]) process(ctx context.Context, entries []port.Entry) {
	if len(entries) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(int(r.cfg.ReadCount))
	for _, entry := range entries {
		g.Go(func() error {
			r.handleEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner[T]) handleEntry(ctx context.Context, entry port.Entry) {
	log := r.log.With("entry_id", entry.ID, "deliveries", entry.Deliveries)

	if r.cfg.MaxDeliveries > 0 && entry.Deliveries > r.cfg.MaxDeliveries {
		r.deadLetter(ctx, log, entry, fmt.Errorf("delivered %d times, limit %d", entry.Deliveries, r.cfg.MaxDeliveries))
		return
	}

	msg, err := Decode[T](entry.Fields)
	if err != nil {
		r.deadLetter(ctx, log, entry, err)
		return
	}

	if c, ok := any(&msg).(carrier); ok {
		ctx = r.tel.Propagator.Extract(ctx, *c.Carrier())
	}

	ctx, span := r.tel.Tracer.Start(ctx, "process "+r.cfg.Stream,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "redis"),
			attribute.String("messaging.destination.name", r.cfg.Stream),
			attribute.String("messaging.consumer.group.name", r.cfg.Group),
			attribute.String("messaging.message.id", entry.ID),
		),
	)
	defer span.End()

	log.InfoContext(ctx, "entry_received")

	if err := r.handler.Handle(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "entry_processing_failed", "error", err)
		return
	}

	if err := r.ackAndDelete(ctx, entry.ID); err != nil {
		span.RecordError(err)
		log.ErrorContext(ctx, "entry_ack_failed", "error", err)
		return
	}

	log.InfoContext(ctx, "entry_processed")
}

// ackAndDelete acknowledges the entry and only then removes it from the log.
func (r *Runner[T]) ackAndDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.AckTimeout)
	defer cancel()

	if err := r.broker.Ack(ctx, r.cfg.Stream, r.cfg.Group, id); err != nil {
		return fmt.Errorf("broker.Ack: %w", err)
	}
	if err := r.broker.Delete(ctx, r.cfg.Stream, id); err != nil {
		return fmt.Errorf("broker.Delete: %w", err)
	}
	return nil
}

func (r *Runner[T]) deadLetter(ctx context.Context, log *slog.Logger, entry port.Entry, cause error) {
	fields := append([]port.Field(nil), entry.Fields...)
	fields = append(fields,
		port.Field{Name: "error", Value: cause.Error()},
		port.Field{Name: "source_stream", Value: r.cfg.Stream},
		port.Field{Name: "source_id", Value: entry.ID},
		port.Field{Name: "deliveries", Value: strconv.FormatInt(entry.Deliveries, 10)},
	)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.AckTimeout)
	defer cancel()

	if _, err := r.broker.Append(dctx, r.cfg.DeadLetterStream, fields); err != nil {
		log.ErrorContext(ctx, "dead_letter_failed", "error", errors.Join(cause, err))
		return
	}
	if err := r.ackAndDelete(ctx, entry.ID); err != nil {
		log.ErrorContext(ctx, "dead_letter_ack_failed", "error", err)
		return
	}

	log.WarnContext(ctx, "entry_dead_lettered", "dead_letter_stream", r.cfg.DeadLetterStream, "reason", cause.Error())
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
