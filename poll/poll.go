/*Package poll provides a bounded busy-wait loop for lab hardware.

Motion controllers and detectors in this repository expose a busy flag that
must be polled; there is no interrupt or event channel on the wire.  The
contract is simple: query the flag at a fixed interval until it clears or a
deadline passes.  Interval and timeout are explicit parameters so tests can
run the callers with near-zero intervals.
*/
package poll

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// errStillBusy is the internal retry trigger; it never escapes WaitUntilReady
var errStillBusy = errors.New("device is busy")

// ErrBusyTimeout is generated when a device remains busy past the deadline
type ErrBusyTimeout struct {
	// Waited is how long the poller waited before giving up
	Waited time.Duration
}

// Error satisfies the error interface
func (e ErrBusyTimeout) Error() string {
	return fmt.Sprintf("device still busy after %v", e.Waited)
}

// IsBusyFunc queries a device and reports whether it is still busy.
// A non-nil error means the query itself failed (a hardware I/O problem,
// not a timeout) and aborts the wait immediately.
type IsBusyFunc func() (bool, error)

// WaitUntilReady polls isBusy every interval until it returns false, the
// query errors, or timeout elapses.  The predicate is evaluated once before
// any sleep, so an already-ready device returns without blocking.  The
// deadline uses the monotonic clock carried by time.Time, never wall time.
func WaitUntilReady(isBusy IsBusyFunc, interval, timeout time.Duration) error {
	start := time.Now()
	op := func() error {
		busy, err := isBusy()
		if err != nil {
			return backoff.Permanent(err)
		}
		if busy {
			return errStillBusy
		}
		return nil
	}
	// a constant-interval poll is an exponential backoff with multiplier 1;
	// MaxElapsedTime gives the bounded deadline
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     interval,
		RandomizationFactor: 0.,
		Multiplier:          1.,
		MaxInterval:         interval,
		MaxElapsedTime:      timeout,
		Clock:               backoff.SystemClock})
	if err == nil {
		return nil
	}
	if errors.Is(err, errStillBusy) {
		return ErrBusyTimeout{Waited: time.Since(start)}
	}
	return err
}
