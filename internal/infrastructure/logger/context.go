package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// EventIDKey is the context key for the provider event ID being processed
	EventIDKey contextKey = "event_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enrichedLogger := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// WithEventID adds the webhook event ID to context and returns enriched
// logger, so every log line written while reconciling a delivery carries the
// provider's event ID.
func WithEventID(ctx context.Context, logger *zap.Logger, eventID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, EventIDKey, eventID)
	enrichedLogger := logger.With(zap.String("event_id", eventID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetEventID retrieves the webhook event ID from context
func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}
