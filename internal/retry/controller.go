// Package retry bounds the number of validation attempts per identity and
// cleans up abandoned, never-indexed documents once the limit is hit.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"verifid/internal/documents"
	"verifid/internal/platform/config"
	"verifid/internal/platform/metrics"
	"verifid/internal/results"
	"verifid/internal/storage"
	"verifid/pkg/domain"
	"verifid/pkg/platform/sentinel"
)

// Controller decides whether another attempt is allowed for an identity and
// performs exhaustion cleanup.
type Controller struct {
	counter   Counter
	results   results.Store
	documents documents.Store
	objects   storage.ObjectStore

	documentsBucket string
	maxAttempts     int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func NewController(
	counter Counter,
	resultStore results.Store,
	documentStore documents.Store,
	objects storage.ObjectStore,
	documentsBucket string,
	cfg config.RetryConfig,
	opts ...Option,
) *Controller {
	c := &Controller{
		counter:         counter,
		results:         resultStore,
		documents:       documentStore,
		objects:         objects,
		documentsBucket: documentsBucket,
		maxAttempts:     cfg.MaxAttempts,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RecordAttempt resolves the attempt number for a subject. The attempt
// encoded in the subject key is authoritative when present; otherwise the
// counter advances, falling back to counting persisted results when the
// counter is unreachable.
func (c *Controller) RecordAttempt(ctx context.Context, subject domain.SubjectRef) (int, error) {
	if subject.Attempt > 0 {
		return subject.Attempt, nil
	}

	n, err := c.counter.Incr(ctx, subject.AttemptKey())
	if err == nil {
		return n, nil
	}
	c.logger.Warn("attempt counter unavailable, falling back to result count",
		"attempt_key", subject.AttemptKey(), "error", err)

	prior, countErr := c.results.CountAttempts(ctx, subject.DocumentType, subject.DocumentNumber)
	if countErr != nil {
		return 0, fmt.Errorf("count prior attempts: %w", countErr)
	}
	return prior + 1, nil
}

// ShouldAllowRetry applies the retry policy: unrecoverable error classes are
// never retried, everything else is retried until the attempt limit.
func (c *Controller) ShouldAllowRetry(attemptNumber int, errType results.ErrorType) bool {
	if errType != "" && !errType.Retryable() {
		return false
	}
	return attemptNumber < c.maxAttempts
}

// Exhausted reports whether the attempt limit has been reached.
func (c *Controller) Exhausted(attemptNumber int) bool {
	return attemptNumber >= c.maxAttempts
}

// OnExhausted removes the subject's document image from storage when the
// document was never indexed, so abandoned verifications do not leak objects.
// Indexed identities are never destroyed here.
func (c *Controller) OnExhausted(ctx context.Context, subject domain.SubjectRef) error {
	if c.metrics != nil {
		c.metrics.AttemptsExhausted.Inc()
	}

	_, err := c.documents.GetByStorageKey(ctx, subject.DocumentKey())
	if err == nil {
		c.logger.Info("attempts exhausted for indexed document, keeping it",
			"document_key", subject.DocumentKey())
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("check document record: %w", err)
	}

	if err := c.objects.Delete(ctx, c.documentsBucket, subject.DocumentKey()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete unindexed document: %w", err)
	}
	c.logger.Info("deleted unindexed document after exhausting attempts",
		"document_key", subject.DocumentKey(), "max_attempts", c.maxAttempts)
	return nil
}

// OnVerified clears the attempt counter once the identity is confirmed.
func (c *Controller) OnVerified(ctx context.Context, subject domain.SubjectRef) {
	if err := c.counter.Reset(ctx, subject.AttemptKey()); err != nil {
		c.logger.Warn("failed to reset attempt counter",
			"attempt_key", subject.AttemptKey(), "error", err)
	}
}
