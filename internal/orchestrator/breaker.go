package orchestrator

import (
	"context"

	"github.com/verity-ml/predict-cli/internal/resilience"
	"github.com/verity-ml/predict-cli/pkg/mlserve"
)

// BreakerPredictor wraps a Predictor with a circuit breaker. Once the
// backend accumulates enough consecutive failures the circuit opens and
// calls fail immediately, so a dead deployment fails pages without
// burning the full retry budget on every chunk.
type BreakerPredictor struct {
	inner mlserve.Predictor
	cb    *resilience.CircuitBreaker
}

// NewBreakerPredictor wraps inner with a circuit breaker.
func NewBreakerPredictor(inner mlserve.Predictor, cfg resilience.CircuitBreakerConfig) *BreakerPredictor {
	return &BreakerPredictor{
		inner: inner,
		cb:    resilience.NewCircuitBreaker(cfg),
	}
}

// Predict runs the inner predictor through the circuit breaker. Rejected
// calls return resilience.ErrCircuitOpen, which classifies as permanent.
func (b *BreakerPredictor) Predict(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (*mlserve.Response, error) {
		return b.inner.Predict(ctx, req)
	})
}

// State reports the current circuit state.
func (b *BreakerPredictor) State() resilience.CircuitState {
	return b.cb.State()
}
