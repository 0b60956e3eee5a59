package spectrometer

import "github.com/kmoncr/horibactl/util"

// Field identifies one hardware-applied setting
type Field int

const (
	// FieldGrating is the turret grating position
	FieldGrating Field = iota

	// FieldWavelength is the mono center wavelength
	FieldWavelength

	// FieldSlit is the front entrance slit width
	FieldSlit

	// FieldExposure is the CCD integration time
	FieldExposure

	// FieldGain is the CCD gain token
	FieldGain

	// FieldSpeed is the CCD readout speed token
	FieldSpeed

	// FieldAngle is the rotation stage angle
	FieldAngle
)

// String satisfies fmt.Stringer
func (f Field) String() string {
	switch f {
	case FieldGrating:
		return "grating"
	case FieldWavelength:
		return "wavelength"
	case FieldSlit:
		return "slit"
	case FieldExposure:
		return "exposure"
	case FieldGain:
		return "gain"
	case FieldSpeed:
		return "speed"
	case FieldAngle:
		return "angle"
	}
	return "unknown"
}

// Setting is one field with its requested value.  Integer tokens are
// carried as float64; they are small and convert exactly.
type Setting struct {
	Field Field
	Value float64
}

// ConfigState tracks the settings currently applied to the hardware.  A
// field enters the state only after the device acknowledged it, so a
// failed command is retried on the next acquisition.
type ConfigState struct {
	applied map[Field]float64
}

// NewConfigState returns an empty state; the first Diff against it
// returns every field
func NewConfigState() *ConfigState {
	return &ConfigState{applied: map[Field]float64{}}
}

// Diff returns the settings in req that differ from the applied state, in
// the order they must reach the hardware within their device: grating,
// wavelength, slit, exposure, gain, speed, then angle
func (c *ConfigState) Diff(req AcquisitionRequest) []Setting {
	want := []Setting{
		{FieldGrating, float64(req.Grating)},
		{FieldWavelength, req.CenterWavelengthNm},
		{FieldSlit, req.SlitWidthMm},
		{FieldExposure, req.ExposureSec},
		{FieldGain, float64(req.Gain)},
		{FieldSpeed, float64(req.Speed)},
	}
	if req.HasRotation {
		// compare in normalized form so 370 matches an applied 10
		want = append(want, Setting{FieldAngle, util.ModDegrees(req.RotationAngleDeg)})
	}
	var out []Setting
	for _, s := range want {
		v, ok := c.applied[s.Field]
		if !ok || v != s.Value {
			out = append(out, s)
		}
	}
	return out
}

// Commit records a field as applied.  Called only after the hardware
// acknowledged the setting.
func (c *ConfigState) Commit(f Field, v float64) {
	c.applied[f] = v
}

// Applied reports the committed value for a field, if any
func (c *ConfigState) Applied(f Field) (float64, bool) {
	v, ok := c.applied[f]
	return v, ok
}

// Reset forgets everything; the next Diff returns all fields.  Called on
// every fresh connect so a reconnected instrument is fully reconfigured.
func (c *ConfigState) Reset() {
	c.applied = map[Field]float64{}
}
