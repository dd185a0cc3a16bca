package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff(DefaultConfig())

		expected := []time.Duration{
			50 * time.Millisecond,
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			1600 * time.Millisecond,
			2 * time.Second,
			2 * time.Second,
		}

		for i, exp := range expected {
			if got := b.Base(i + 1); got != exp {
				t.Errorf("Base(%d) = %v, want %v", i+1, got, exp)
			}
		}
		if got := b.Base(0); got != 0 {
			t.Errorf("Base(0) = %v, want 0", got)
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff(DefaultConfig())

		for n := 1; n <= 4; n++ {
			base := b.Base(n)
			max := base + time.Duration(float64(base)*JitterFactor)
			for i := 0; i < 10; i++ {
				if d := b.Delay(n); d < base || d > max {
					t.Errorf("Delay(%d) = %v out of range [%v, %v]", n, d, base, max)
				}
			}
		}
	})

	t.Run("IndependentOfCallOrder", func(t *testing.T) {
		b := NewBackoff(Config{Initial: 10 * time.Millisecond, Jitter: -1})
		if b.Delay(3) != 40*time.Millisecond || b.Delay(1) != 10*time.Millisecond {
			t.Errorf("Delay(3), Delay(1) = %v, %v", b.Delay(3), b.Delay(1))
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoff(Config{
			Initial:    10 * time.Millisecond,
			Max:        30 * time.Millisecond,
			Multiplier: 3,
		})
		want := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 30 * time.Millisecond}
		for i, w := range want {
			if got := b.Delay(i + 1); got != w {
				t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
			}
		}
	})

	t.Run("InvalidConfigUsesDefaults", func(t *testing.T) {
		b := NewBackoff(Config{Multiplier: 0.5, Jitter: -1})
		cfg := b.Config()
		if cfg.Initial != InitialBackoff || cfg.Max != MaxBackoff || cfg.Multiplier != BackoffMultiplier {
			t.Errorf("Config() = %+v", cfg)
		}
		if got := b.Delay(1); got != InitialBackoff {
			t.Errorf("Delay(1) = %v, want no jitter", got)
		}
	})

	t.Run("Budget", func(t *testing.T) {
		b := NewBackoff(Config{Initial: 10 * time.Millisecond, Max: time.Second, Jitter: 0.5})
		// Three attempts wait twice: 10ms and 20ms, each up to 1.5x.
		if got := b.Budget(3); got != 45*time.Millisecond {
			t.Errorf("Budget(3) = %v, want 45ms", got)
		}
		if got := b.Budget(1); got != 0 {
			t.Errorf("Budget(1) = %v, want 0", got)
		}
	})
}

func fastBackoff() *Backoff {
	return NewBackoff(Config{Initial: time.Millisecond, Max: time.Millisecond})
}

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("SucceedsFirstTry", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: 3}, func(context.Context, int) error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("SucceedsAfterFailures", func(t *testing.T) {
		var seen []int
		err := Do(context.Background(), Policy{Attempts: 5, Backoff: fastBackoff()}, func(_ context.Context, attempt int) error {
			seen = append(seen, attempt)
			if attempt < 3 {
				return errBoom
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(seen) != 3 || seen[2] != 3 {
			t.Errorf("attempts = %v", seen)
		}
	})

	t.Run("ExhaustsExactly", func(t *testing.T) {
		calls := 0
		retries := 0
		err := Do(context.Background(), Policy{
			Attempts: 4,
			Backoff:  fastBackoff(),
			OnRetry: func(attempt int, _ time.Duration, _ error) {
				retries++
				if attempt != retries {
					t.Errorf("OnRetry attempt = %d, want %d", attempt, retries)
				}
			},
		}, func(context.Context, int) error {
			calls++
			return errBoom
		})
		if !errors.Is(err, ErrExhausted) || !errors.Is(err, errBoom) {
			t.Errorf("err = %v", err)
		}
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
		if retries != 3 {
			t.Errorf("retries = %d, want 3", retries)
		}
	})

	t.Run("ZeroAttemptsRunsOnce", func(t *testing.T) {
		calls := 0
		_ = Do(context.Background(), Policy{}, func(context.Context, int) error {
			calls++
			return errBoom
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("PermanentStops", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: 5}, func(context.Context, int) error {
			calls++
			return Stop(errBoom)
		})
		if err != errBoom || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		b := NewBackoff(Config{Initial: time.Hour, Max: time.Hour})
		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- Do(ctx, Policy{Attempts: 3, Backoff: b}, func(context.Context, int) error {
				calls++
				return errBoom
			})
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Do did not return after cancel")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestStopNil(t *testing.T) {
	if Stop(nil) != nil {
		t.Error("Stop(nil) should be nil")
	}
}
