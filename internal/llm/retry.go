// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// RetryDelay is the pause between attempts. Tests override this to avoid
// real sleeps.
var RetryDelay = 500 * time.Millisecond

// RetryingCompleter retries retryable upstream failures Retries times.
// Configuration errors and invalid input are returned immediately.
type RetryingCompleter struct {
	Next    Completer
	Retries int
	Logger  *zap.Logger
}

// Complete calls Next, retrying on upstream failures.
func (r *RetryingCompleter) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	var out string
	err := retry(ctx, r.Retries, r.Logger, "completion", func() error {
		var err error
		out, err = r.Next.Complete(ctx, system, user, temperature)
		return err
	})
	return out, err
}

// RetryingEmbedder retries retryable upstream failures Retries times.
type RetryingEmbedder struct {
	Next    Embedder
	Retries int
	Logger  *zap.Logger
}

// Embed calls Next, retrying on upstream failures.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := retry(ctx, r.Retries, r.Logger, "embedding", func() error {
		var err error
		out, err = r.Next.Embed(ctx, text)
		return err
	})
	return out, err
}

func retry(ctx context.Context, retries int, logger *zap.Logger, service string, fn func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !types.Retryable(err) || attempt >= retries {
			return err
		}
		logger.Warn("retrying upstream call",
			zap.String("service", service),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return types.Upstream(service, ctx.Err())
		case <-time.After(RetryDelay):
		}
	}
}
