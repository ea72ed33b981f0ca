package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miniagent-dev/core/internal/backoff"
)

var errBoom = errors.New("boom")

func TestPermanent_WrapsAndUnwraps(t *testing.T) {
	wrapped := Permanent(errBoom)
	if !IsPermanent(wrapped) {
		t.Fatal("IsPermanent(wrapped) = false, want true")
	}
	if !errors.Is(wrapped, errBoom) {
		t.Fatal("errors.Is(wrapped, errBoom) = false, want true")
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) != nil")
	}
}

func TestIsPermanent_FalseForOrdinaryError(t *testing.T) {
	if IsPermanent(errBoom) {
		t.Fatal("IsPermanent(errBoom) = true, want false")
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	val, attempts, err := Do(context.Background(), Options{}, func(attempt int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" || attempts != 1 || calls != 1 {
		t.Fatalf("val=%q attempts=%d calls=%d", val, attempts, calls)
	}
}

func TestDo_RetriesOnOrdinaryError(t *testing.T) {
	calls := 0
	opts := Options{
		Policy: backoff.Policy{MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 2, Jitter: 0},
	}
	val, attempts, err := Do(context.Background(), opts, func(attempt int) (int, error) {
		calls++
		if calls < 3 {
			return 0, errBoom
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 || attempts != 3 {
		t.Fatalf("val=%d attempts=%d", val, attempts)
	}
}

func TestDo_StopsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	opts := Options{
		Attempts: 5,
		Policy:   backoff.Policy{MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 2, Jitter: 0},
	}
	_, attempts, err := Do(context.Background(), opts, func(attempt int) (int, error) {
		calls++
		return 0, Permanent(errBoom)
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 || attempts != 1 {
		t.Fatalf("calls=%d attempts=%d, want 1 and 1", calls, attempts)
	}
	if !IsPermanent(err) {
		t.Fatal("returned error lost its Permanent marking")
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	opts := Options{
		Attempts: 2,
		Policy:   backoff.Policy{MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 2, Jitter: 0},
	}
	_, attempts, err := Do(context.Background(), opts, func(attempt int) (int, error) {
		calls++
		return 0, errBoom
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 2 || attempts != 2 {
		t.Fatalf("calls=%d attempts=%d, want 2 and 2", calls, attempts)
	}
}

func TestDo_OnAttemptCallback(t *testing.T) {
	var seen []int
	opts := Options{
		Attempts: 3,
		Policy:   backoff.Policy{MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 2, Jitter: 0},
		OnAttempt: func(attempt int, delayMs int64, err error) {
			seen = append(seen, attempt)
		},
	}
	_, _, _ = Do(context.Background(), opts, func(attempt int) (int, error) {
		return 0, errBoom
	})
	if len(seen) != 2 {
		t.Fatalf("OnAttempt called %d times, want 2 (between each retry, not after the last)", len(seen))
	}
}

func TestDo_DefaultPolicyWhenZero(t *testing.T) {
	val, _, err := Do(context.Background(), Options{}, func(attempt int) (bool, error) {
		return true, nil
	})
	if err != nil || !val {
		t.Fatalf("val=%v err=%v", val, err)
	}
}
