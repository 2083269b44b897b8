package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Outcome labels for gateway round-trips.
const (
	OutcomeTunnel      = "tunnel"
	OutcomeSend        = "send"
	OutcomeAccountInfo = "account_info"
	OutcomeWebhook     = "webhook"
	OutcomePassthrough = "passthrough"
)

// Set provides OpenTelemetry instruments for the sandbox, exported in
// Prometheus format. A nil *Set is valid and records nothing, so callers
// never branch on whether metrics are wired.
type Set struct {
	meterProvider *sdkmetric.MeterProvider

	roundTrips      metric.Int64Counter
	inboundMessages metric.Int64Counter
	verifications   metric.Int64Counter
}

// New creates a metrics set with a Prometheus exporter.
func New() (*Set, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"whatsapp-sandbox",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	s := &Set{meterProvider: meterProvider}

	s.roundTrips, err = meter.Int64Counter(
		"gateway.roundtrips",
		metric.WithDescription("Outbound HTTP calls classified by the gateway"),
		metric.WithUnit("{calls}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating roundtrips counter: %w", err)
	}

	s.inboundMessages, err = meter.Int64Counter(
		"webhook.messages.received",
		metric.WithDescription("Inbound messages accepted by the webhook receiver"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating inbound messages counter: %w", err)
	}

	s.verifications, err = meter.Int64Counter(
		"webhook.verifications",
		metric.WithDescription("Webhook verification handshake attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating verifications counter: %w", err)
	}

	return s, nil
}

// RoundTrip records one classified outbound call.
func (s *Set) RoundTrip(ctx context.Context, outcome string) {
	if s == nil {
		return
	}
	s.roundTrips.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway.outcome", outcome),
	))
}

// InboundMessages records accepted webhook messages.
func (s *Set) InboundMessages(ctx context.Context, count int) {
	if s == nil {
		return
	}
	s.inboundMessages.Add(ctx, int64(count))
}

// Verification records one handshake attempt.
func (s *Set) Verification(ctx context.Context, verified bool) {
	if s == nil {
		return
	}
	s.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("webhook.verified", verified),
	))
}

// Handler serves Prometheus-formatted metrics.
func (s *Set) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider.
func (s *Set) Shutdown(ctx context.Context) error {
	if s == nil || s.meterProvider == nil {
		return nil
	}
	return s.meterProvider.Shutdown(ctx)
}
