// Package relay publishes a stage's output message to the next stage's stream.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// FieldName is the stream entry field that holds the JSON-encoded message.
const FieldName = "message"

// Message is any pipeline message that carries trace metadata.
type Message interface {
	Carrier() *domain.Metadata
}

type Publisher struct {
	broker     port.StreamBroker
	stream     string
	source     string
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewPublisher returns a publisher appending to stream on behalf of source.
func NewPublisher(broker port.StreamBroker, stream, source string, tracer trace.Tracer, propagator propagation.TextMapPropagator) *Publisher {
	return &Publisher{
		broker:     broker,
		stream:     stream,
		source:     source,
		tracer:     tracer,
		propagator: propagator,
	}
}

func (p *Publisher) Stream() string { return p.stream }

// Publish injects the current trace context into a copy of the message
// metadata and appends the message. The caller's metadata map is not mutated.
func (p *Publisher) Publish(ctx context.Context, msg Message) (string, error) {
	ctx, span := p.tracer.Start(ctx, "publish "+p.stream,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "redis"),
			attribute.String("messaging.destination.name", p.stream),
			attribute.String("messaging.source", p.source),
		),
	)
	defer span.End()

	md := msg.Carrier()
	*md = md.Clone()
	p.propagator.Inject(ctx, *md)

	payload, err := json.Marshal(msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	id, err := p.broker.Append(ctx, p.stream, []port.Field{{Name: FieldName, Value: string(payload)}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("broker.Append: %w", err)
	}

	span.SetAttributes(attribute.String("messaging.message.id", id))
	return id, nil
}
