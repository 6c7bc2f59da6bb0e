// Package retry implements the Adapter's declarative retry wrapper:
// transient failure patterns trigger exponential backoff with
// jitter up to MaxRetries; permanent failure patterns short-circuit
// immediately. Classification rules are expressed in the same rule-list,
// first-match-wins Starlark shape the command-approval policy
// (internal/execpolicy) already uses, repurposed here for error-pattern
// classification instead of command-prefix classification.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Classification is the outcome of matching a failure against the policy's
// rules.
type Classification int

const (
	// ClassificationUnknown means no rule matched; callers typically treat
	// this as permanent (fail fast) unless a default is configured.
	ClassificationUnknown Classification = iota
	ClassificationTransient
	ClassificationPermanent
)

func (c Classification) String() string {
	switch c {
	case ClassificationTransient:
		return "transient"
	case ClassificationPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// DefaultTransientPatterns covers the failure substrings named in spec
// §4.4: timeout, connection-reset, broken-pipe, resource-temporarily-unavailable.
var DefaultTransientPatterns = []string{
	"timeout", "timed out", "connection reset", "broken pipe",
	"resource temporarily unavailable",
}

// DefaultPermanentPatterns covers: permission-denied, not-found, syntax-error.
var DefaultPermanentPatterns = []string{
	"permission denied", "not found", "no such file or directory", "syntax error",
}

// Policy is a retry wrapper: on a Classify result of Transient, the caller
// should retry with exponential backoff (optionally jittered) up to
// MaxRetries; on Permanent, it should stop immediately.
type Policy struct {
	Classifier *Classifier
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// NewDefaultPolicy builds a Policy from DefaultTransientPatterns /
// DefaultPermanentPatterns. Retry is not enabled by default for any given
// tool — callers opt a ToolConfig in explicitly.
func NewDefaultPolicy() *Policy {
	return &Policy{
		Classifier: NewClassifierFromPatterns(DefaultTransientPatterns, DefaultPermanentPatterns),
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Jitter:     true,
	}
}

// Do runs fn, retrying according to the policy when fn's error classifies
// as Transient, until MaxRetries is exhausted, ctx is cancelled, or fn
// succeeds (returns nil error). Returns the last error on exhaustion.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		class := p.Classifier.Classify(lastErr.Error())
		if class != ClassificationTransient {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}
		delay := p.backoff(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (p *Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(1<<uint(attempt))
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(rand.Int63n(int64(d)/2+1)) + d/2
	}
	return d
}
