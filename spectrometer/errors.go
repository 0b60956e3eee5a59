package spectrometer

import (
	"errors"
	"fmt"
)

// ErrNoDeviceFound is returned when discovery over the instrument control
// session finds no monochromator or no CCD
var ErrNoDeviceFound = errors.New("spectrometer: no monochromator or CCD found")

// ErrAcquisitionInFlight is returned when an acquisition is requested while
// another one is still running
var ErrAcquisitionInFlight = errors.New("spectrometer: acquisition already in flight")

// ErrDetectorNotReady is returned when the CCD reports it cannot accept a
// trigger; no trigger is attempted and the session stays healthy
var ErrDetectorNotReady = errors.New("spectrometer: detector not ready for acquisition")

// InitializationError indicates a failure while bringing the hardware up
type InitializationError struct {
	// Step names the connect stage that failed
	Step string

	// Err is the underlying error
	Err error
}

// Error satisfies the error interface
func (e InitializationError) Error() string {
	return fmt.Sprintf("spectrometer: initialization failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e InitializationError) Unwrap() error {
	return e.Err
}

// HardwareError indicates a device command failed mid-acquisition.  The
// session is marked degraded when one is raised.
type HardwareError struct {
	// Device is the device the command went to, e.g. "mono", "ccd"
	Device string

	// Op is the operation that failed
	Op string

	// Err is the underlying error
	Err error
}

// Error satisfies the error interface
func (e HardwareError) Error() string {
	return fmt.Sprintf("spectrometer: %s %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e HardwareError) Unwrap() error {
	return e.Err
}
