package traceid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the wire name of the trace id on HTTP requests and broker messages.
const Header = "X-Trace-Id"

type contextKey struct{}

func ContextWith(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, contextKey{}, traceId)
}

// FromContext returns the trace id carried by ctx, or "" if none is set.
func FromContext(ctx context.Context) string {
	traceId, _ := ctx.Value(contextKey{}).(string)
	return traceId
}

// FromContextOrNew returns the trace id carried by ctx, minting a fresh one
// when the context carries none.
func FromContextOrNew(ctx context.Context) string {
	traceId := FromContext(ctx)
	if traceId == "" {
		traceId = uuid.NewString()
	}
	return traceId
}
