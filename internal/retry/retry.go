// Package retry provides a classification-driven retry policy usable with
// any fallible operation. Delays grow exponentially with a cap and jitter;
// quota failures wait a separate long cooldown because quota resets on a
// slower cycle than rate limits.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// Policy decides whether and when a failed operation runs again.
type Policy struct {
	// MaxAttempts is the total number of calls, first one included.
	MaxAttempts int
	// BaseDelay seeds the exponential schedule: base << (attempt-1).
	BaseDelay time.Duration
	// MaxDelay caps the exponential schedule.
	MaxDelay time.Duration
	// QuotaDelay is the flat cooldown applied to quota failures.
	QuotaDelay time.Duration
	// Jitter adds up to this fraction of the computed delay.
	Jitter float64

	// Classify maps an error to its kind. models.KindOf when nil.
	Classify func(error) models.ErrorKind
	// OnAttempt observes every call for log output. Optional.
	OnAttempt func(models.AttemptRecord)

	sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op until it succeeds, fails fatally, or exhausts MaxAttempts.
// Fatal classifications propagate immediately without a delay. Exhaustion
// returns a models.KindExhausted fault wrapping the last error, so a file
// that burned its attempts is distinguishable from one rejected outright.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = models.KindOf
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err := op(ctx)
		var kind models.ErrorKind
		if err != nil {
			kind = classify(err)
		}
		p.observe(models.AttemptRecord{
			Attempt: attempt,
			Kind:    kind,
			Err:     err,
			Latency: time.Since(start),
		})
		if err == nil {
			return nil
		}
		if !kind.Retryable() {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.delay(attempt, kind)); err != nil {
			return err
		}
	}

	return models.WrapFault(models.KindExhausted, lastErr,
		"gave up after %d attempts", attempts)
}

// delay computes the wait before the attempt following attempt.
func (p Policy) delay(attempt int, kind models.ErrorKind) time.Duration {
	if kind.Quota() && p.QuotaDelay > 0 {
		return p.QuotaDelay
	}

	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

func (p Policy) observe(rec models.AttemptRecord) {
	if p.OnAttempt != nil {
		p.OnAttempt(rec)
	}
}

// sleepWithCtx waits d or until ctx is done, whichever comes first.
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
