package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusyRetryRetriesOnlyLockErrors(t *testing.T) {
	retry := busyRetry{tries: 3, first: time.Millisecond, max: 2 * time.Millisecond}
	locked := errors.New("database is locked (5) (SQLITE_BUSY)")

	calls := 0
	err := retry.do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return locked
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third try, calls=%d err=%v", calls, err)
	}

	calls = 0
	err = retry.do(context.Background(), func() error {
		calls++
		return locked
	})
	if !errors.Is(err, locked) || calls != 3 {
		t.Fatalf("expected lock error after 3 tries, calls=%d err=%v", calls, err)
	}

	calls = 0
	boom := errors.New("constraint failed")
	if err := retry.do(context.Background(), func() error { calls++; return boom }); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("non-lock errors must not retry, calls=%d err=%v", calls, err)
	}
}

func TestBusyRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	retry := busyRetry{tries: 5, first: time.Hour, max: time.Hour}
	err := retry.do(ctx, func() error { return errors.New("database is locked") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
