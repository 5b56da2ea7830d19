package eyes

import (
	"context"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// Protect wraps h so every call runs under b. Only handler errors count as
// breaker failures; a response with ok=false is a normal outcome. Rate-limit
// and circuit-open errors from further down are passed through without being
// counted, since they describe a throttled or already tripped backend rather
// than this eye.
func Protect(h Handler, b *breaker.Breaker) Handler {
	if b == nil {
		return h
	}
	return func(ctx context.Context, req Request) (Response, error) {
		return breaker.Execute(ctx, b, func(ctx context.Context) (Response, error) {
			resp, err := h(ctx, req)
			if recovery.IsCode(err, recovery.CodeRateLimit) || recovery.IsCode(err, recovery.CodeCircuitOpen) {
				return resp, breaker.Ignore(err)
			}
			return resp, err
		})
	}
}
