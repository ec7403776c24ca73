// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds shared by every stage. Callers test for them with errors.Is;
// producers wrap them with fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidInput marks an empty query or question. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream marks a failure of the completion, embedding, or search
	// service. Retried once, then handed to the fallback path.
	ErrUpstream = errors.New("upstream service error")

	// ErrTimeout marks an upstream call that exceeded its deadline. Errors
	// carrying ErrTimeout also carry ErrUpstream.
	ErrTimeout = errors.New("upstream timeout")

	// ErrNotReady marks a retrieval query issued before any ingestion.
	ErrNotReady = errors.New("index not ready")

	// ErrPersistence marks a session or index read/write failure.
	ErrPersistence = errors.New("persistence error")

	// ErrConfig marks missing credentials or an unusable configuration.
	ErrConfig = errors.New("configuration error")

	// ErrCorruptDocument marks a document the extractor could not read.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrNoEvidence marks a research pass in which no source produced evidence.
	ErrNoEvidence = errors.New("no evidence gathered")
)

// Upstream wraps err as an upstream failure of the named service. Deadline
// and network timeouts additionally carry ErrTimeout so the caller can tell
// transient slowness apart from a hard failure.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	if isTimeout(err) {
		return fmt.Errorf("%s: %w: %w: %w", service, ErrTimeout, ErrUpstream, err)
	}
	return fmt.Errorf("%s: %w: %w", service, ErrUpstream, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Retryable reports whether err is worth one more attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstream) && !errors.Is(err, ErrConfig)
}

// Kind returns a short label classifying err for user-facing output:
// "configuration", "timeout", "upstream", "invalid-input", "not-ready",
// "data", "persistence", "no-evidence" or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "configuration"
	case errors.Is(err, ErrInvalidInput):
		return "invalid-input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrNotReady):
		return "not-ready"
	case errors.Is(err, ErrCorruptDocument):
		return "data"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrNoEvidence):
		return "no-evidence"
	default:
		return "internal"
	}
}
