package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/models"
)

// script returns an op that fails with each error in turn, then succeeds.
func script(calls *int, errs ...error) func(context.Context) error {
	return func(context.Context) error {
		i := *calls
		*calls++
		if i < len(errs) {
			return errs[i]
		}
		return nil
	}
}

func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 4}
	if err := p.Do(context.Background(), script(&calls)); err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
}

func TestDoFatalPropagatesImmediately(t *testing.T) {
	fatal := models.NewFault(models.KindAuth, "bad key")
	calls := 0
	var slept []time.Duration
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, sleep: noSleep(&slept)}

	err := p.Do(context.Background(), script(&calls, fatal, fatal, fatal, fatal))
	if !errors.Is(err, fatal) {
		t.Fatalf("Do() = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
	if len(slept) != 0 {
		t.Fatalf("slept %v, want no sleeps before a fatal return", slept)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	var slept []time.Duration
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, sleep: noSleep(&slept)}

	err := p.Do(context.Background(), script(&calls,
		models.NewFault(models.KindServer, "boom"),
		models.NewFault(models.KindNetwork, "reset"),
	))
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("op called %d times, want 3", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
}

func TestDoExhausted(t *testing.T) {
	last := models.NewFault(models.KindRateLimited, "still throttled")
	calls := 0
	var slept []time.Duration
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, sleep: noSleep(&slept)}

	err := p.Do(context.Background(), script(&calls, last, last, last, last, last))
	if calls != 4 {
		t.Fatalf("op called %d times, want exactly MaxAttempts=4", calls)
	}
	if got := models.KindOf(err); got != models.KindExhausted {
		t.Fatalf("KindOf(err) = %v, want %v", got, models.KindExhausted)
	}
	if !errors.Is(err, last) {
		t.Fatalf("exhausted error should wrap the last failure, got %v", err)
	}
	if len(slept) != 3 {
		t.Fatalf("slept %d times, want 3 (no sleep after the final attempt)", len(slept))
	}
}

func TestDelaySchedule(t *testing.T) {
	p := Policy{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		QuotaDelay:  20 * time.Second,
	}

	tests := []struct {
		name    string
		attempt int
		kind    models.ErrorKind
		want    time.Duration
	}{
		{"first backoff", 1, models.KindServer, time.Second},
		{"doubles", 2, models.KindServer, 2 * time.Second},
		{"doubles again", 3, models.KindNetwork, 4 * time.Second},
		{"caps at max", 10, models.KindServer, 30 * time.Second},
		{"quota is flat", 1, models.KindQuotaExceeded, 20 * time.Second},
		{"quota ignores attempt", 3, models.KindQuotaExceeded, 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.delay(tt.attempt, tt.kind); got != tt.want {
				t.Fatalf("delay(%d, %s) = %v, want %v", tt.attempt, tt.kind, got, tt.want)
			}
		})
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := p.delay(1, models.KindServer)
		if d < 10*time.Second || d > 12*time.Second {
			t.Fatalf("jittered delay %v outside [10s, 12s]", d)
		}
	}
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	err := p.Do(ctx, script(&calls,
		models.NewFault(models.KindServer, "boom"),
		models.NewFault(models.KindServer, "boom"),
	))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("op called %d times after cancel, want 1", calls)
	}
}

func TestDoObserver(t *testing.T) {
	var recs []models.AttemptRecord
	var slept []time.Duration
	calls := 0
	p := Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		OnAttempt:   func(r models.AttemptRecord) { recs = append(recs, r) },
		sleep:       noSleep(&slept),
	}

	err := p.Do(context.Background(), script(&calls,
		models.NewFault(models.KindRateLimited, "throttled"),
	))
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if len(recs) != 2 {
		t.Fatalf("observed %d attempts, want 2", len(recs))
	}
	if recs[0].Attempt != 1 || recs[0].Kind != models.KindRateLimited {
		t.Fatalf("first record = %+v, want attempt 1 kind %s", recs[0], models.KindRateLimited)
	}
	if recs[1].Attempt != 2 || recs[1].Err != nil {
		t.Fatalf("second record = %+v, want attempt 2 with nil error", recs[1])
	}
}

func TestSleepWithCtx(t *testing.T) {
	if err := sleepWithCtx(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithCtx(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleep on canceled ctx = %v, want context.Canceled", err)
	}
}
