package reasoning

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Router tries its backends in order and returns the first success. The last
// backend's error is returned when every backend fails.
type Router struct {
	backends []Backend
	logger   *zap.Logger
}

// NewRouter builds a router over backends, primary first.
func NewRouter(logger *zap.Logger, backends ...Backend) (*Router, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{backends: backends, logger: logger}, nil
}

// Name lists the routed backends.
func (r *Router) Name() string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ",")
}

// Complete implements Backend.
func (r *Router) Complete(ctx context.Context, messages []Message) (string, error) {
	var lastErr error
	for i, b := range r.backends {
		out, err := b.Complete(ctx, messages)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if i < len(r.backends)-1 {
			r.logger.Info("falling back to next reasoning backend",
				zap.String("failed", b.Name()),
				zap.String("next", r.backends[i+1].Name()),
				zap.Error(err),
			)
		}
	}
	return "", lastErr
}
