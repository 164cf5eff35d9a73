package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"flyer-agent/internal/domain"
)

// RetryingBackend reintenta llamadas fallidas hasta maxRetries veces con backoff lineal.
type RetryingBackend struct {
	next       Backend
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRetryingBackend(next Backend, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingBackend {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingBackend{
		next:       next,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func (r *RetryingBackend) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, time.Duration(attempt)*r.backoff); err != nil {
				return domain.Message{}, backendErr("retry wait", err)
			}
		}

		msg, err := r.next.Generate(ctx, messages)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			break
		}
		r.logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
			zap.Error(err),
		)
	}
	if !errors.Is(lastErr, domain.ErrBackend) {
		lastErr = backendErr("generate", lastErr)
	}
	return domain.Message{}, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
