package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/freight-doc-engine/internal/adapters/llm"
	"github.com/mikey/freight-doc-engine/internal/core"
)

// flakyClassifier fails a fixed number of times before succeeding.
type flakyClassifier struct {
	failures int
	calls    int
}

func (f *flakyClassifier) ClassifyDocument(_ context.Context, _ *core.Message) (*core.FallbackResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("throttled by provider")
	}
	return &core.FallbackResult{DocType: "arrival_notice", Confidence: 88}, nil
}

func TestThrottledClassifierPassesThrough(t *testing.T) {
	inner := &flakyClassifier{}
	c := llm.NewThrottledClassifier(inner, 100, 10, 2, time.Millisecond, zap.NewNop())

	result, err := c.ClassifyDocument(context.Background(), &core.Message{ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "arrival_notice", result.DocType)
	assert.Equal(t, 1, inner.calls)
}

func TestThrottledClassifierRetriesUntilSuccess(t *testing.T) {
	inner := &flakyClassifier{failures: 2}
	c := llm.NewThrottledClassifier(inner, 100, 10, 2, time.Millisecond, zap.NewNop())

	result, err := c.ClassifyDocument(context.Background(), &core.Message{ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, 88, result.Confidence)
	assert.Equal(t, 3, inner.calls)
}

func TestThrottledClassifierExhaustsRetries(t *testing.T) {
	inner := &flakyClassifier{failures: 10}
	c := llm.NewThrottledClassifier(inner, 100, 10, 2, time.Millisecond, zap.NewNop())

	_, err := c.ClassifyDocument(context.Background(), &core.Message{ID: "m1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, inner.calls)
}

func TestThrottledClassifierHonoursContextCancellation(t *testing.T) {
	inner := &flakyClassifier{failures: 10}
	c := llm.NewThrottledClassifier(inner, 100, 10, 5, time.Minute, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ClassifyDocument(ctx, &core.Message{ID: "m1"})
	require.Error(t, err)
	// Cancelled during backoff, before retries could run.
	assert.Equal(t, 1, inner.calls)
}
