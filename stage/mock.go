package stage

// MockRotator is a rotator that moves instantly.  It is used by the sim
// mode of the server binary and by tests in dependent packages.
type MockRotator struct {
	// Angle is the current position in degrees
	Angle float64

	// Homed is set after a Home call
	Homed bool

	// Err, when non-nil, is returned from every motion or query method
	Err error

	connected bool
}

// Connect marks the mock connected
func (m *MockRotator) Connect() error {
	if m.Err != nil {
		return m.Err
	}
	m.connected = true
	return nil
}

// Disconnect marks the mock disconnected
func (m *MockRotator) Disconnect() error {
	m.connected = false
	return nil
}

// Connected reports whether Connect has been called
func (m *MockRotator) Connected() bool {
	return m.connected
}

// Position returns the mock angle
func (m *MockRotator) Position() (float64, error) {
	return m.Angle, m.Err
}

// MoveAbs jumps straight to the commanded angle
func (m *MockRotator) MoveAbs(deg float64) error {
	if m.Err != nil {
		return m.Err
	}
	m.Angle = deg
	return nil
}

// Home jumps straight to zero
func (m *MockRotator) Home() error {
	if m.Err != nil {
		return m.Err
	}
	m.Angle = 0
	m.Homed = true
	return nil
}

// Busy always reports idle, moves are instant
func (m *MockRotator) Busy() (bool, error) {
	return false, m.Err
}
