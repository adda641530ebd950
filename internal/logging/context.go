// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/contextkeys"
)

// GetLoggingFieldsFromContext extrae los campos de logging (trace_id, lote_id,
// registry) del contexto y los devuelve como un slice de zap.Field.
func GetLoggingFieldsFromContext(ctx context.Context) []zap.Field {
	fields := []zap.Field{}
	if tid, ok := ctx.Value(contextkeys.TraceIDKey).(string); ok && tid != "" {
		fields = append(fields, zap.String("trace_id", tid))
	}
	if bid, ok := ctx.Value(contextkeys.BatchIDKey).(int64); ok && bid != 0 {
		fields = append(fields, zap.Int64("lote_id", bid))
	}
	if reg, ok := ctx.Value(contextkeys.RegistryKey).(string); ok && reg != "" {
		fields = append(fields, zap.String("registry", reg))
	}
	return fields
}

// WithTraceID añade el trace id al contexto si está presente.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, contextkeys.TraceIDKey, traceID)
	}
	return ctx
}

// TraceID devuelve el trace id guardado en el contexto.
func TraceID(ctx context.Context) string {
	tid, _ := ctx.Value(contextkeys.TraceIDKey).(string)
	return tid
}

// WithBatchID añade el id de lote al contexto.
func WithBatchID(ctx context.Context, batchID int64) context.Context {
	if batchID != 0 {
		ctx = context.WithValue(ctx, contextkeys.BatchIDKey, batchID)
	}
	return ctx
}

// WithRegistry marca el contexto con el registro que origina la llamada.
func WithRegistry(ctx context.Context, registry string) context.Context {
	if registry != "" {
		ctx = context.WithValue(ctx, contextkeys.RegistryKey, registry)
	}
	return ctx
}

// FromContext devuelve el logger global enriquecido con los campos del contexto.
func FromContext(ctx context.Context) *zap.Logger {
	return zap.L().With(GetLoggingFieldsFromContext(ctx)...)
}
