package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/manufacturing_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyOperator      = appctx.ContextKeyOperator
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// CorrelationIdOrNew returns the request's correlation id, or a fresh uuid for calls made outside a request.
func CorrelationIdOrNew(ctx context.Context) string {
	if id, ok := GetCorrelationIdFromContext(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func GetOperatorFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperator)
}

func SetOperatorInContext(ctx context.Context, operator string) context.Context {
	return appctx.Set(ctx, ContextKeyOperator, operator)
}
