package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds upstream calls
type RetryPolicy struct {
	// Timeout bounds each attempt
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after the first one
	MaxRetries uint64
	// Backoff is the constant wait between attempts
	Backoff time.Duration
}

type retryingProvider struct {
	Provider
	policy RetryPolicy
}

// WithRetry wraps p so that each attempt is bounded by the policy timeout and
// transport failures are retried. Status errors and malformed answers are
// returned at once.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	if policy.Backoff <= 0 {
		policy.Backoff = 250 * time.Millisecond
	}
	return &retryingProvider{Provider: p, policy: policy}
}

func (p *retryingProvider) Complete(ctx context.Context, req Request, model string) (*Response, error) {
	backoff := retry.WithMaxRetries(p.policy.MaxRetries, retry.NewConstant(p.policy.Backoff))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*Response, error) {
		attempt++

		attemptCtx := ctx
		if p.policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.policy.Timeout)
			defer cancel()
		}

		resp, err := p.Provider.Complete(attemptCtx, req, model)
		if err == nil {
			return resp, nil
		}
		if !Retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		log.Warn().
			Err(err).
			Str("provider", p.Name()).
			Int("attempt", attempt).
			Msg("upstream request failed, retrying")
		return nil, retry.RetryableError(err)
	})
}

// Retryable reports whether err is a transport failure worth another attempt
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	return !errors.Is(err, ErrInvalidResponse) && !errors.Is(err, context.Canceled)
}
