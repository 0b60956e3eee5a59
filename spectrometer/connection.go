package spectrometer

import (
	"fmt"
	"log"
	"time"

	"github.com/kmoncr/horibactl/poll"
	"github.com/kmoncr/horibactl/stage"
)

// ConnState is the health of the instrument session
type ConnState int

const (
	// Disconnected means no session is open
	Disconnected ConnState = iota

	// Connecting means a connect is in progress
	Connecting

	// Connected means all discovered devices are open and initialized
	Connected

	// Degraded means a device command failed mid-use; a full reconnect
	// is required before the next acquisition
	Degraded
)

// String satisfies fmt.Stringer
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Degraded:
		return "Degraded"
	}
	return "Unknown"
}

// PollSettings bound the busy polling loops per device
type PollSettings struct {
	MonoInterval time.Duration
	MonoTimeout  time.Duration
	CCDInterval  time.Duration
	CCDTimeout   time.Duration
}

// DefaultPollSettings are suitable for a bench instrument; mono moves
// take seconds, CCD setup commands are fast
func DefaultPollSettings() PollSettings {
	return PollSettings{
		MonoInterval: 250 * time.Millisecond,
		MonoTimeout:  90 * time.Second,
		CCDInterval:  100 * time.Millisecond,
		CCDTimeout:   30 * time.Second,
	}
}

// ConnectionManager owns the instrument session lifecycle.  It discovers
// exactly one monochromator and one CCD, opens and initializes them, and
// tears everything down in the reverse order.
type ConnectionManager struct {
	// Poll bounds the busy loops run during connect
	Poll PollSettings

	dm    DeviceManager
	st    *stage.Stage
	mono  Monochromator
	ccd   CCD
	state ConnState
}

// NewConnectionManager returns a manager over the given device manager
// and optional stage (nil when the bench has none)
func NewConnectionManager(dm DeviceManager, st *stage.Stage) *ConnectionManager {
	return &ConnectionManager{
		Poll: DefaultPollSettings(),
		dm:   dm,
		st:   st,
	}
}

// State returns the current session health
func (c *ConnectionManager) State() ConnState {
	return c.state
}

// Degrade marks the session degraded.  The next Connect runs from scratch.
func (c *ConnectionManager) Degrade() {
	if c.state == Connected {
		log.Print("spectrometer: session degraded, reconnect required")
	}
	c.state = Degraded
}

// Mono returns the discovered monochromator, nil before a connect
func (c *ConnectionManager) Mono() Monochromator {
	return c.mono
}

// CCD returns the discovered detector, nil before a connect
func (c *ConnectionManager) CCD() CCD {
	return c.ccd
}

// Stage returns the rotation stage, nil when the bench has none
func (c *ConnectionManager) Stage() *stage.Stage {
	return c.st
}

// Connect brings the session up.  It is idempotent while healthy; from a
// degraded session it tears down first and reconnects from scratch.
func (c *ConnectionManager) Connect() error {
	if c.state == Connected {
		return nil
	}
	if c.state == Degraded {
		if err := c.Disconnect(); err != nil {
			log.Printf("spectrometer: teardown before reconnect: %v", err)
		}
	}
	c.state = Connecting
	err := c.connect()
	if err != nil {
		c.state = Disconnected
		return err
	}
	c.state = Connected
	return nil
}

func (c *ConnectionManager) connect() error {
	if !c.dm.Started() {
		if err := c.dm.Start(); err != nil {
			return InitializationError{Step: "session start", Err: err}
		}
	}
	monos, err := c.dm.Monochromators()
	if err != nil {
		return InitializationError{Step: "mono discovery", Err: err}
	}
	ccds, err := c.dm.CCDs()
	if err != nil {
		return InitializationError{Step: "ccd discovery", Err: err}
	}
	if len(monos) == 0 || len(ccds) == 0 {
		return ErrNoDeviceFound
	}
	if len(monos) > 1 || len(ccds) > 1 {
		log.Printf("spectrometer: %d monos and %d ccds discovered, using the first of each", len(monos), len(ccds))
	}
	c.mono = monos[0]
	c.ccd = ccds[0]

	if err := c.mono.Open(); err != nil {
		return InitializationError{Step: "mono open", Err: err}
	}
	if err := c.ccd.Open(); err != nil {
		return InitializationError{Step: "ccd open", Err: err}
	}
	err = poll.WaitUntilReady(c.mono.IsBusy, c.Poll.MonoInterval, c.Poll.MonoTimeout)
	if err != nil {
		return InitializationError{Step: "mono open wait", Err: err}
	}
	init, err := c.mono.IsInitialized()
	if err != nil {
		return InitializationError{Step: "mono init query", Err: err}
	}
	if !init {
		log.Print("spectrometer: monochromator not initialized, homing (this takes a while)")
		if err := c.mono.Initialize(); err != nil {
			return InitializationError{Step: "mono init", Err: err}
		}
		err = poll.WaitUntilReady(c.mono.IsBusy, c.Poll.MonoInterval, c.Poll.MonoTimeout)
		if err != nil {
			return InitializationError{Step: "mono init wait", Err: err}
		}
	}
	return nil
}

// Disconnect tears the session down, CCD first, then mono, stage, and the
// session itself.  Per-device close failures are logged and do not stop
// the teardown; a session stop failure is returned.
func (c *ConnectionManager) Disconnect() error {
	if c.ccd != nil {
		if err := c.ccd.Close(); err != nil {
			log.Printf("spectrometer: ccd close: %v", err)
		}
		c.ccd = nil
	}
	if c.mono != nil {
		if err := c.mono.Close(); err != nil {
			log.Printf("spectrometer: mono close: %v", err)
		}
		c.mono = nil
	}
	if c.st != nil {
		c.st.Disconnect()
	}
	var err error
	if c.dm.Started() {
		if err = c.dm.Stop(); err != nil {
			err = fmt.Errorf("spectrometer: session stop: %w", err)
		}
	}
	c.state = Disconnected
	return err
}
