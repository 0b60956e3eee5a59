// Package spectrometer orchestrates a Horiba monochromator and CCD, plus
// an optional rotation stage, into single spectrum acquisitions.  It keeps
// a cache of settings already applied to the hardware so that repeat
// acquisitions only send what changed.
package spectrometer

import "math"

// Grating selects a turret grating position
type Grating int

const (
	// Grating1800 is the 1800 gr/mm grating at turret position 0
	Grating1800 Grating = iota

	// Grating600 is the 600 gr/mm grating at turret position 1
	Grating600

	// Grating150 is the 150 gr/mm grating at turret position 2
	Grating150
)

// GratingLabels maps turret positions to human descriptions
var GratingLabels = map[Grating]string{
	Grating1800: "1800 gr/mm",
	Grating600:  "600 gr/mm",
	Grating150:  "150 gr/mm",
}

// GainLabels maps CCD gain tokens to descriptions, used when the chip
// configuration does not carry its own table
var GainLabels = map[int]string{
	0: "High Light",
	1: "Best Dynamic Range",
	2: "High Sensitivity",
}

// SpeedLabels maps CCD readout speed tokens to descriptions
var SpeedLabels = map[int]string{
	0: "45 kHz",
	1: "1 MHz",
	2: "1 MHz Ultra",
}

// AcquisitionRequest is one complete description of a spectrum to take
type AcquisitionRequest struct {
	// Grating is the turret position to use
	Grating Grating `json:"grating"`

	// CenterWavelengthNm is the mono position in nanometers
	CenterWavelengthNm float64 `json:"centerWavelengthNm"`

	// SlitWidthMm is the front entrance slit opening in millimeters
	SlitWidthMm float64 `json:"slitWidthMm"`

	// ExposureSec is the CCD integration time in seconds
	ExposureSec float64 `json:"exposureSec"`

	// Gain is the CCD gain token, see GainLabels
	Gain int `json:"gain"`

	// Speed is the CCD readout speed token, see SpeedLabels
	Speed int `json:"speed"`

	// RotationAngleDeg is the sample stage angle in degrees.  Only
	// honored when HasRotation is true.
	RotationAngleDeg float64 `json:"rotationAngleDeg"`

	// HasRotation indicates the request includes a stage move
	HasRotation bool `json:"hasRotation"`

	// RowOrigin, RowCount and ColumnBin select the detector region read
	// out.  Zero values mean the full chip, fully binned vertically,
	// unbinned horizontally.  Applied once per session, not diffed.
	RowOrigin int `json:"rowOrigin"`
	RowCount  int `json:"rowCount"`
	ColumnBin int `json:"columnBin"`

	// ExcitationNm is the laser line used to label the result in
	// relative wavenumbers.  Unit conversion only, never sent to
	// hardware.  Zero means no wavenumber axis.
	ExcitationNm float64 `json:"excitationNm"`
}

// AcquisitionResult is one captured spectrum
type AcquisitionResult struct {
	// Wavelengths is the x axis in nanometers
	Wavelengths []float64 `json:"wavelengths"`

	// Intensities is the y axis in counts, same length as Wavelengths
	Intensities []float64 `json:"intensities"`
}

// Wavenumber converts a sample wavelength to a Raman shift in relative
// wavenumbers (cm^-1) against the given excitation wavelength.  Both
// inputs are in nanometers.  A zero sample wavelength yields NaN.
func Wavenumber(excitationNm, sampleNm float64) float64 {
	if sampleNm == 0 || excitationNm == 0 {
		return math.NaN()
	}
	return (1/excitationNm - 1/sampleNm) * 1e7
}

// Wavenumbers converts the result x axis to Raman shift in cm^-1
func (r AcquisitionResult) Wavenumbers(excitationNm float64) []float64 {
	out := make([]float64, len(r.Wavelengths))
	for i, nm := range r.Wavelengths {
		out[i] = Wavenumber(excitationNm, nm)
	}
	return out
}
