package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRefused = errors.New("connection refused")

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errRefused
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}, func() (int, error) {
		calls++
		return 0, errRefused
	})
	if !errors.Is(err, errRefused) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_RetryIfStops(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"open circuit", ErrCircuitOpen},
		{"deadline", context.DeadlineExceeded},
		{"custom", errors.New("bad request")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}
			if tt.name == "custom" {
				cfg.RetryIf = func(err error) bool { return errors.Is(err, errRefused) }
			}
			_, _ = Retry(context.Background(), cfg, func() (int, error) {
				calls++
				return 0, tt.err
			})
			if calls != 1 {
				t.Fatalf("expected 1 call, got %d", calls)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, DefaultRetryConfig(), func() (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryConfig_BackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffFactor: 2}
	cfg.applyDefaults()
	if got := cfg.backoff(1); got != 100*time.Millisecond {
		t.Errorf("attempt 1: got %s", got)
	}
	if got := cfg.backoff(2); got != 200*time.Millisecond {
		t.Errorf("attempt 2: got %s", got)
	}
	if got := cfg.backoff(5); got != 300*time.Millisecond {
		t.Errorf("attempt 5: got %s", got)
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker(BreakerConfig{
		Name:        "ocr",
		MaxFailures: 2,
		Cooldown:    time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errRefused })
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if b.State() != StateClosed || b.Failures() != 0 {
		t.Fatalf("expected closed with no failures, got %s/%d", b.State(), b.Failures())
	}

	want := []string{"closed->open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions: got %v, want %v", transitions, want)
		}
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errRefused })
	now = now.Add(time.Second)
	_ = b.Execute(func() error { return errRefused })

	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %s", b.State())
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "tools", MaxConcurrent: 2})

	r1, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	r2, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if _, err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("expected ErrBulkheadFull, got %v", err)
	}
	if b.InUse() != 2 {
		t.Fatalf("expected 2 in use, got %d", b.InUse())
	}

	r1()
	r1() // second release is a no-op
	if b.InUse() != 1 {
		t.Fatalf("double release freed extra slots: %d in use", b.InUse())
	}
	r2()
	if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("execute after release: %v", err)
	}
	if b.InUse() != 0 {
		t.Fatalf("execute must release its slot, %d in use", b.InUse())
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	tests := []struct {
		name    string
		maxWait time.Duration
		freeAt  time.Duration
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{"slot frees in time", time.Second, 10 * time.Millisecond, background, nil},
		{"wait expires", 10 * time.Millisecond, time.Second, background, ErrBulkheadTimeout},
		{"context ends first", time.Second, time.Second, func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 10*time.Millisecond)
		}, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: tt.maxWait})
			hold, err := b.Acquire(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			timer := time.AfterFunc(tt.freeAt, hold)
			defer timer.Stop()

			ctx, cancel := tt.ctx()
			defer cancel()
			release, err := b.Acquire(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil {
				release()
			}
		})
	}
}

func background() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
