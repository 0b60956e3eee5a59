// Package stage unifies the two rotation stage drivers behind one
// capability interface.  The stage is an optional part of the bench; a
// missing or unreachable stage must never block an optical acquisition,
// so motion requests against a disconnected stage log and return nil.
package stage

import (
	"log"
	"time"

	"github.com/kmoncr/horibactl/poll"
	"github.com/kmoncr/horibactl/util"
)

// DriverKind tags which physical driver family a Stage wraps
type DriverKind int

const (
	// KindOptoSigma is a GSC-01 controller driving an OSMS-60YAW stage
	KindOptoSigma DriverKind = iota

	// KindThorlabsK10CR2 is a K10CR2 integrated cage rotator
	KindThorlabsK10CR2
)

// String satisfies fmt.Stringer
func (k DriverKind) String() string {
	switch k {
	case KindOptoSigma:
		return "OptoSigma"
	case KindThorlabsK10CR2:
		return "ThorlabsK10CR2"
	}
	return "Unknown"
}

// Rotator is the capability set the drivers expose.  Moves are started and
// polled; none of the methods block on motion.
type Rotator interface {
	// Connect opens the link to the controller
	Connect() error

	// Disconnect closes the link
	Disconnect() error

	// Connected reports whether the link is open
	Connected() bool

	// Position returns the current angle in degrees, [0, 360)
	Position() (float64, error)

	// MoveAbs starts an absolute move to an angle in degrees
	MoveAbs(float64) error

	// Home starts a return to the mechanical origin
	Home() error

	// Busy reports whether the axis is in motion
	Busy() (bool, error)
}

// Stage wraps a Rotator with last-known-angle bookkeeping and motion
// completion polling
type Stage struct {
	// Kind is the driver family, resolved once at construction
	Kind DriverKind

	// PollInterval is how often the busy flag is queried during a move
	PollInterval time.Duration

	// MoveTimeout bounds one move or home operation
	MoveTimeout time.Duration

	driver    Rotator
	lastAngle float64
	haveAngle bool
}

// New returns a Stage over the given driver
func New(kind DriverKind, driver Rotator) *Stage {
	return &Stage{
		Kind:         kind,
		PollInterval: 100 * time.Millisecond,
		MoveTimeout:  60 * time.Second,
		driver:       driver,
	}
}

// Connect opens the driver link and caches the current angle
func (s *Stage) Connect() error {
	err := s.driver.Connect()
	if err != nil {
		return err
	}
	if deg, err := s.driver.Position(); err == nil {
		s.lastAngle = deg
		s.haveAngle = true
	}
	log.Printf("stage: connected to %s rotation stage", s.Kind)
	return nil
}

// Disconnect closes the driver link; best-effort
func (s *Stage) Disconnect() {
	if !s.driver.Connected() {
		return
	}
	if err := s.driver.Disconnect(); err != nil {
		log.Printf("stage: disconnect error: %v", err)
	}
}

// IsConnected reports whether the driver link is open
func (s *Stage) IsConnected() bool {
	return s.driver.Connected()
}

// SetAngle moves to the given angle in degrees (normalized into [0, 360))
// and waits for the motion to complete.  On a disconnected stage this is a
// logged no-op; the optical acquisition proceeds without the sample mover.
func (s *Stage) SetAngle(deg float64) error {
	deg = util.ModDegrees(deg)
	if !s.driver.Connected() {
		log.Printf("stage: not connected, ignoring move to %.2f deg", deg)
		return nil
	}
	if err := s.driver.MoveAbs(deg); err != nil {
		return err
	}
	err := poll.WaitUntilReady(s.driver.Busy, s.PollInterval, s.MoveTimeout)
	if err != nil {
		return err
	}
	s.lastAngle = deg
	s.haveAngle = true
	return nil
}

// GetAngle returns the current angle.  A disconnected stage answers with
// the last angle it was observed at, or zero if it was never read.
func (s *Stage) GetAngle() (float64, error) {
	if !s.driver.Connected() {
		return s.lastAngle, nil
	}
	deg, err := s.driver.Position()
	if err != nil {
		if s.haveAngle {
			return s.lastAngle, err
		}
		return 0, err
	}
	s.lastAngle = deg
	s.haveAngle = true
	return deg, nil
}

// Home returns the stage to its mechanical origin and waits for completion.
// Logged no-op when disconnected.
func (s *Stage) Home() error {
	if !s.driver.Connected() {
		log.Print("stage: not connected, ignoring home request")
		return nil
	}
	if err := s.driver.Home(); err != nil {
		return err
	}
	err := poll.WaitUntilReady(s.driver.Busy, s.PollInterval, s.MoveTimeout)
	if err != nil {
		return err
	}
	s.lastAngle = 0
	s.haveAngle = true
	return nil
}
