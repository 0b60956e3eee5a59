package poll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/kmoncr/horibactl/poll"
)

func TestAlreadyReadyReturnsWithoutSleeping(t *testing.T) {
	calls := 0
	isBusy := func() (bool, error) {
		calls++
		return false, nil
	}
	start := time.Now()
	// an hour-long interval would hang the test if the poller slept first
	err := poll.WaitUntilReady(isBusy, time.Hour, 2*time.Hour)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one busy query, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ready device took %v to return", elapsed)
	}
}

func TestNeverReadyTimesOut(t *testing.T) {
	isBusy := func() (bool, error) { return true, nil }
	var (
		interval = time.Millisecond
		timeout  = 10 * time.Millisecond
	)
	start := time.Now()
	err := poll.WaitUntilReady(isBusy, interval, timeout)
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	var bt poll.ErrBusyTimeout
	if !errors.As(err, &bt) {
		t.Fatalf("expected ErrBusyTimeout, got %T: %v", err, err)
	}
	// contract: no later than timeout + one interval, with scheduler slack
	if elapsed > timeout+interval+100*time.Millisecond {
		t.Errorf("poller overstayed the deadline: waited %v for timeout %v", elapsed, timeout)
	}
}

func TestBecomesReadyAfterPolls(t *testing.T) {
	calls := 0
	isBusy := func() (bool, error) {
		calls++
		return calls < 3, nil
	}
	err := poll.WaitUntilReady(isBusy, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 busy queries, got %d", calls)
	}
}

func TestPredicateErrorAbortsImmediately(t *testing.T) {
	ioErr := errors.New("link dropped")
	calls := 0
	isBusy := func() (bool, error) {
		calls++
		return true, ioErr
	}
	err := poll.WaitUntilReady(isBusy, time.Millisecond, time.Second)
	if !errors.Is(err, ioErr) {
		t.Fatalf("expected predicate error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retry after an I/O error, got %d calls", calls)
	}
}
