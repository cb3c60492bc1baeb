package orchestrator

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-ml/predict-cli/internal/resilience"
	"github.com/verity-ml/predict-cli/pkg/mlserve"
)

func TestBreakerPredictor_OpensAfterConsecutiveFailures(t *testing.T) {
	failing := &mlserve.MockPredictor{
		PredictFn: func(ctx context.Context, req mlserve.Request) (*mlserve.Response, error) {
			return nil, resilience.NewTransientError(eris.New("deployment unreachable"), 503)
		},
	}

	bp := NewBreakerPredictor(failing, resilience.CircuitBreakerConfig{FailureThreshold: 2})

	req := mlserve.Request{DeploymentID: "dep-1", Values: [][]string{{"a"}}}

	for range 2 {
		_, err := bp.Predict(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, bp.State())

	// Open circuit rejects without calling the backend.
	before := len(failing.Calls())
	_, err := bp.Predict(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, failing.Calls(), before)
}

func TestBreakerPredictor_PassesThroughSuccess(t *testing.T) {
	ok := &mlserve.MockPredictor{FixedValue: "Tech", FixedConfidence: 0.9}

	bp := NewBreakerPredictor(ok, resilience.DefaultCircuitBreakerConfig())

	resp, err := bp.Predict(context.Background(), mlserve.Request{
		DeploymentID: "dep-1",
		Values:       [][]string{{"a"}, {"b"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "Tech", resp.Predictions[0].Value)
	assert.Equal(t, resilience.CircuitClosed, bp.State())
}
