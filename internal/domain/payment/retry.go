package payment

import (
	"context"
	"errors"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryInitial = 200 * time.Millisecond
	defaultRetryMax     = 2 * time.Second
)

// RetryPolicy bounds the attempts made against the gateway for a single operation.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Initial <= 0 {
		p.Initial = defaultRetryInitial
	}
	if p.Max < p.Initial {
		p.Max = defaultRetryMax
		if p.Max < p.Initial {
			p.Max = p.Initial
		}
	}
	return p
}

// do runs fn until it succeeds, returns a rejected error, the context ends, or the
// attempts are used up. The last error is returned.
func (p RetryPolicy) do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	bo := gax.Backoff{
		Initial:    p.Initial,
		Max:        p.Max,
		Multiplier: 2,
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrGatewayRejected) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		logger.Warn("gateway call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if sleepErr := gax.Sleep(ctx, bo.Pause()); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}
	}
	return err
}
