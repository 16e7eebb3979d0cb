package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ThrottledClassifier wraps a FallbackClassifier with a request rate limit
// and bounded retries. External model APIs throttle aggressively; the
// pattern cascade upstream means every call here is already a last resort,
// so waiting for a token is preferable to dropping the message.
type ThrottledClassifier struct {
	inner      core.FallbackClassifier
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewThrottledClassifier wraps inner with requestsPerSecond / burst rate
// limiting and maxRetries retry attempts.
func NewThrottledClassifier(
	inner core.FallbackClassifier,
	requestsPerSecond float64,
	burst int,
	maxRetries int,
	backoff time.Duration,
	logger *zap.Logger,
) *ThrottledClassifier {
	return &ThrottledClassifier{
		inner:      inner,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// ClassifyDocument waits for a rate token, then delegates. Failed calls
// are retried with a doubling backoff until maxRetries is exhausted.
func (t *ThrottledClassifier) ClassifyDocument(ctx context.Context, msg *core.Message) (*core.FallbackResult, error) {
	var lastErr error
	wait := t.backoff

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		result, err := t.inner.ClassifyDocument(ctx, msg)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < t.maxRetries {
			t.logger.Warn("Fallback classification failed, retrying",
				zap.String("message_id", msg.ID),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			wait *= 2
		}
	}

	return nil, fmt.Errorf("fallback classification failed after %d attempts: %w", t.maxRetries+1, lastErr)
}
