package spectrometer

import "github.com/kmoncr/horibactl/icl"

// Monochromator is the mono capability set the sequencer drives
type Monochromator interface {
	Open() error
	Close() error
	IsBusy() (bool, error)
	IsInitialized() (bool, error)
	Initialize() error
	SetTurretGrating(position int) error
	MoveToWavelength(nm float64) error
	GetWavelength() (float64, error)
	SetSlitPosition(slit icl.Slit, mm float64) error
	SetMirrorPosition(mirror icl.Mirror, pos icl.MirrorPosition) error
}

// CCD is the detector capability set the sequencer drives
type CCD interface {
	Open() error
	Close() error
	Configuration() (icl.ChipConfig, error)
	SetGain(token int) error
	SetSpeed(token int) error
	SetExposure(ms int) error
	SetTimerResolution(res icl.TimerResolution) error
	SetAcquisitionFormat(numROIs int, f icl.AcquisitionFormat) error
	SetROI(roi icl.ROI) error
	SetXAxisConversion(conv icl.XAxisConversion) error
	SetAcquisitionCount(n int) error
	AcquisitionReady() (bool, error)
	AcquisitionStart(openShutter bool) error
	AcquisitionBusy() (bool, error)
	AcquisitionData() ([]icl.AcquisitionSet, error)
}

// DeviceManager abstracts the instrument control session and its device
// discovery so the sequencer can be tested against mocks
type DeviceManager interface {
	Start() error
	Stop() error
	Started() bool
	Monochromators() ([]Monochromator, error)
	CCDs() ([]CCD, error)
}

// ICLManager adapts icl.DeviceManager, which returns concrete device
// types, to the DeviceManager interface
type ICLManager struct {
	*icl.DeviceManager
}

// Monochromators lists discovered monos as the capability interface
func (m ICLManager) Monochromators() ([]Monochromator, error) {
	devs, err := m.DeviceManager.Monochromators()
	if err != nil {
		return nil, err
	}
	out := make([]Monochromator, len(devs))
	for i, d := range devs {
		out[i] = d
	}
	return out, nil
}

// CCDs lists discovered CCDs as the capability interface
func (m ICLManager) CCDs() ([]CCD, error) {
	devs, err := m.DeviceManager.CCDs()
	if err != nil {
		return nil, err
	}
	out := make([]CCD, len(devs))
	for i, d := range devs {
		out[i] = d
	}
	return out, nil
}
