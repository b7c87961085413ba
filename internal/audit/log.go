package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"photoshare.app/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit events. A nil *Logger discards them.
type Logger struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.With(zap.String("type", "audit"))}
}

// Event writes one audit entry enriched with the request id and the acting
// principal found in ctx.
func (l *Logger) Event(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if l == nil {
		return nil
	}
	all := make([]zap.Field, 0, len(fields)+3)
	all = append(all, zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		all = append(all, zap.String("request_id", rid))
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		all = append(all, zap.Int64("actor_id", p.ID))
	}
	all = append(all, fields...)
	l.log.Info("audit", all...)
	return nil
}
