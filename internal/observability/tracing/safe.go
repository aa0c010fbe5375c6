package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"http.url":        {},
	"http.target":     {},
	"http.user_agent": {},
	"http.client_ip":  {},
	"room_number":     {},
	"actor_id":        {},
}

// SafeAttributes drops attributes that may carry resident identifiers.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its domain code so free-form messages never
// reach the exporter.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if code := domain.Code(err); code != "" {
		return errors.New(code)
	}
	return errors.New("internal_error")
}

// ExtractContext restores the remote span context from carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
