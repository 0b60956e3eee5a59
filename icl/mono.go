package icl

// Slit identifies one of the monochromator's adjustable slits
type Slit int

const (
	// SlitEntranceFront is the front entrance slit, the one between the
	// sample optics and the grating turret
	SlitEntranceFront Slit = iota

	// SlitEntranceSide is the side entrance slit
	SlitEntranceSide

	// SlitExitFront is the front exit slit
	SlitExitFront

	// SlitExitSide is the side exit slit
	SlitExitSide
)

// Mirror identifies a flip mirror in the optical path
type Mirror int

const (
	// MirrorEntrance selects between the front and side entrance ports
	MirrorEntrance Mirror = iota

	// MirrorExit selects between the front and side exit ports
	MirrorExit
)

// MirrorPosition is one of the two seats of a flip mirror
type MirrorPosition int

const (
	// MirrorAxial passes the beam straight through
	MirrorAxial MirrorPosition = iota

	// MirrorLateral folds the beam to the side port
	MirrorLateral
)

// Monochromator is one grating spectrograph addressed through the ICL
type Monochromator struct {
	s *Session

	// Info is the discovery record for this unit
	Info DeviceInfo
}

func (m *Monochromator) params(extra map[string]interface{}) map[string]interface{} {
	p := map[string]interface{}{"index": m.Info.Index}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

// Open establishes communication with the unit
func (m *Monochromator) Open() error {
	_, err := m.s.Exec("mono_open", m.params(nil))
	return err
}

// Close releases the unit
func (m *Monochromator) Close() error {
	_, err := m.s.Exec("mono_close", m.params(nil))
	return err
}

// IsBusy reports whether the unit is executing a motion command
func (m *Monochromator) IsBusy() (bool, error) {
	res, err := m.s.Exec("mono_isBusy", m.params(nil))
	if err != nil {
		return false, err
	}
	return res.Bool("mono_isBusy", "busy")
}

// IsInitialized reports whether the unit has homed its motors this session
func (m *Monochromator) IsInitialized() (bool, error) {
	res, err := m.s.Exec("mono_isInitialized", m.params(nil))
	if err != nil {
		return false, err
	}
	return res.Bool("mono_isInitialized", "initialized")
}

// Initialize homes the grating turret and slit motors.  The unit reports
// busy until the home completes; callers poll IsBusy.
func (m *Monochromator) Initialize() error {
	_, err := m.s.Exec("mono_init", m.params(nil))
	return err
}

// SetTurretGrating selects a grating on the turret by position token
func (m *Monochromator) SetTurretGrating(position int) error {
	_, err := m.s.Exec("mono_setTurretGrating", m.params(map[string]interface{}{
		"position": position}))
	return err
}

// MoveToWavelength slews the grating so the given wavelength in nm lands on
// the center of the detector
func (m *Monochromator) MoveToWavelength(nm float64) error {
	_, err := m.s.Exec("mono_moveToPosition", m.params(map[string]interface{}{
		"wavelength": nm}))
	return err
}

// GetWavelength returns the current center wavelength in nm
func (m *Monochromator) GetWavelength() (float64, error) {
	res, err := m.s.Exec("mono_getPosition", m.params(nil))
	if err != nil {
		return 0, err
	}
	return res.Float("mono_getPosition", "wavelength")
}

// SetSlitPosition sets the opening of a slit in mm
func (m *Monochromator) SetSlitPosition(slit Slit, mm float64) error {
	_, err := m.s.Exec("mono_setSlitPositionInMM", m.params(map[string]interface{}{
		"slit":     int(slit),
		"position": mm}))
	return err
}

// SetMirrorPosition seats a flip mirror
func (m *Monochromator) SetMirrorPosition(mirror Mirror, pos MirrorPosition) error {
	_, err := m.s.Exec("mono_setMirrorPosition", m.params(map[string]interface{}{
		"mirror":   int(mirror),
		"position": int(pos)}))
	return err
}
