package icl

import (
	"encoding/json"
)

// TimerResolution is the unit the CCD timer counts exposure in
type TimerResolution int

const (
	// TimerMilliseconds counts the exposure timer in ms
	TimerMilliseconds TimerResolution = iota

	// TimerMicroseconds counts the exposure timer in us
	TimerMicroseconds
)

// AcquisitionFormat selects how the chip is read out
type AcquisitionFormat int

const (
	// FormatSpectra bins each region to rows of spectra
	FormatSpectra AcquisitionFormat = iota

	// FormatImage reads the region as a 2D image
	FormatImage

	// FormatCrop reads a cropped subframe
	FormatCrop
)

// XAxisConversion selects the source of the wavelength axis attached to
// acquisition data
type XAxisConversion int

const (
	// XAxisNone labels the axis in pixel indices
	XAxisNone XAxisConversion = iota

	// XAxisFromFirmware uses the calibration stored in CCD firmware
	XAxisFromFirmware

	// XAxisFromInstrument uses the device server's instrument calibration,
	// which folds in the monochromator's current grating and wavelength
	XAxisFromInstrument
)

// GainSetting pairs a gain token with its human label
type GainSetting struct {
	Token int    `json:"token"`
	Info  string `json:"info"`
}

// ChipConfig is the static configuration of one CCD
type ChipConfig struct {
	// ChipWidth is the number of pixel columns
	ChipWidth int `json:"chipWidth"`

	// ChipHeight is the number of pixel rows
	ChipHeight int `json:"chipHeight"`

	// Gains are the gain settings the unit supports
	Gains []GainSetting `json:"gains"`

	// Speeds are the readout speed settings the unit supports
	Speeds []GainSetting `json:"speeds"`
}

// ROI is a region of interest on the chip.  Origins are zero-based.
type ROI struct {
	Index   int `json:"roiIndex"`
	XOrigin int `json:"xOrigin"`
	YOrigin int `json:"yOrigin"`
	XSize   int `json:"xSize"`
	YSize   int `json:"ySize"`
	XBin    int `json:"xBin"`
	YBin    int `json:"yBin"`
}

// Region is the data read from one region of interest.  In spectra format
// Y carries one row per vertical bin; a fully binned region has exactly one.
type Region struct {
	// Index is the region of interest index, 1-based
	Index int

	// X is the wavelength (or pixel) axis, one sample per column bin
	X []float64

	// Y holds intensity rows, row-major
	Y [][]float64
}

// UnmarshalJSON accepts both the flat and the singleton-wrapped axis shapes
// the device server produces; xData arrives as either [...] or [[...]]
func (r *Region) UnmarshalJSON(b []byte) error {
	var wire struct {
		Index int             `json:"roiIndex"`
		XData json.RawMessage `json:"xData"`
		YData json.RawMessage `json:"yData"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	r.Index = wire.Index
	if err := json.Unmarshal(wire.XData, &r.X); err != nil {
		var nested [][]float64
		if err2 := json.Unmarshal(wire.XData, &nested); err2 != nil {
			return err
		}
		if len(nested) > 0 {
			r.X = nested[0]
		}
	}
	if err := json.Unmarshal(wire.YData, &r.Y); err != nil {
		var flat []float64
		if err2 := json.Unmarshal(wire.YData, &flat); err2 != nil {
			return err
		}
		r.Y = [][]float64{flat}
	}
	return nil
}

// AcquisitionSet is the data of one acquisition; one entry per region
type AcquisitionSet struct {
	Index   int      `json:"acqIndex"`
	Regions []Region `json:"roi"`
}

// CCD is one charge coupled device addressed through the ICL
type CCD struct {
	s *Session

	// Info is the discovery record for this unit
	Info DeviceInfo
}

func (c *CCD) params(extra map[string]interface{}) map[string]interface{} {
	p := map[string]interface{}{"index": c.Info.Index}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

// Open establishes communication with the unit
func (c *CCD) Open() error {
	_, err := c.s.Exec("ccd_open", c.params(nil))
	return err
}

// Close releases the unit
func (c *CCD) Close() error {
	_, err := c.s.Exec("ccd_close", c.params(nil))
	return err
}

// Configuration fetches the chip geometry and the supported gain and speed
// tables
func (c *CCD) Configuration() (ChipConfig, error) {
	var cfg ChipConfig
	res, err := c.s.Exec("ccd_getConfig", c.params(nil))
	if err != nil {
		return cfg, err
	}
	raw, ok := res["configuration"]
	if !ok {
		return cfg, ErrMissingResult{Command: "ccd_getConfig", Field: "configuration"}
	}
	err = json.Unmarshal(raw, &cfg)
	return cfg, err
}

// SetGain programs the analog gain by token
func (c *CCD) SetGain(token int) error {
	_, err := c.s.Exec("ccd_setGain", c.params(map[string]interface{}{"token": token}))
	return err
}

// SetSpeed programs the readout speed by token
func (c *CCD) SetSpeed(token int) error {
	_, err := c.s.Exec("ccd_setSpeed", c.params(map[string]interface{}{"token": token}))
	return err
}

// SetExposure programs the exposure time; the unit is whatever the timer
// resolution is currently set to
func (c *CCD) SetExposure(t int) error {
	_, err := c.s.Exec("ccd_setExposureTime", c.params(map[string]interface{}{"time": t}))
	return err
}

// SetTimerResolution sets the unit of the exposure timer
func (c *CCD) SetTimerResolution(res TimerResolution) error {
	_, err := c.s.Exec("ccd_setTimerResolution", c.params(map[string]interface{}{
		"resolution": int(res)}))
	return err
}

// SetAcquisitionFormat sets the readout format and the number of regions
func (c *CCD) SetAcquisitionFormat(numROIs int, f AcquisitionFormat) error {
	_, err := c.s.Exec("ccd_setAcqFormat", c.params(map[string]interface{}{
		"numberOfRois": numROIs,
		"format":       int(f)}))
	return err
}

// SetROI programs one region of interest
func (c *CCD) SetROI(roi ROI) error {
	_, err := c.s.Exec("ccd_setRoi", c.params(map[string]interface{}{
		"roiIndex": roi.Index,
		"xOrigin":  roi.XOrigin,
		"yOrigin":  roi.YOrigin,
		"xSize":    roi.XSize,
		"ySize":    roi.YSize,
		"xBin":     roi.XBin,
		"yBin":     roi.YBin}))
	return err
}

// SetXAxisConversion selects the wavelength axis source
func (c *CCD) SetXAxisConversion(x XAxisConversion) error {
	_, err := c.s.Exec("ccd_setXAxisConversionType", c.params(map[string]interface{}{
		"type": int(x)}))
	return err
}

// SetAcquisitionCount sets how many acquisitions one start command performs
func (c *CCD) SetAcquisitionCount(n int) error {
	_, err := c.s.Exec("ccd_setAcqCount", c.params(map[string]interface{}{"count": n}))
	return err
}

// AcquisitionReady reports whether the unit will accept a start command
func (c *CCD) AcquisitionReady() (bool, error) {
	res, err := c.s.Exec("ccd_getAcquisitionReady", c.params(nil))
	if err != nil {
		return false, err
	}
	return res.Bool("ccd_getAcquisitionReady", "ready")
}

// AcquisitionStart begins an exposure, optionally opening the shutter
func (c *CCD) AcquisitionStart(openShutter bool) error {
	_, err := c.s.Exec("ccd_setAcqStart", c.params(map[string]interface{}{
		"openShutter": openShutter}))
	return err
}

// AcquisitionBusy reports whether an exposure or readout is in progress
func (c *CCD) AcquisitionBusy() (bool, error) {
	res, err := c.s.Exec("ccd_getAcquisitionBusy", c.params(nil))
	if err != nil {
		return false, err
	}
	return res.Bool("ccd_getAcquisitionBusy", "isBusy")
}

// AcquisitionData fetches the data of the last acquisition
func (c *CCD) AcquisitionData() ([]AcquisitionSet, error) {
	res, err := c.s.Exec("ccd_getAcquisitionData", c.params(nil))
	if err != nil {
		return nil, err
	}
	raw, ok := res["acquisition"]
	if !ok {
		return nil, ErrMissingResult{Command: "ccd_getAcquisitionData", Field: "acquisition"}
	}
	var sets []AcquisitionSet
	err = json.Unmarshal(raw, &sets)
	return sets, err
}
