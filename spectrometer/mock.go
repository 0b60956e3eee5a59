package spectrometer

import (
	"time"

	"github.com/kmoncr/horibactl/icl"
)

// CallLog records device commands in arrival order across devices.  Mocks
// sharing one log let tests assert cross-device ordering.
type CallLog struct {
	Entries []string
}

// Record appends one entry; nil-safe
func (l *CallLog) Record(entry string) {
	if l == nil {
		return
	}
	l.Entries = append(l.Entries, entry)
}

// MockMono simulates a monochromator with instant moves
type MockMono struct {
	// Log, when set, receives every command name
	Log *CallLog

	// Fail maps a command name to an error injected on its next call
	Fail map[string]error

	// Initialized is the reply to IsInitialized
	Initialized bool

	Grating    int
	Wavelength float64
	Slits      map[icl.Slit]float64
	OpenCount  int
	opened     bool
}

// NewMockMono returns an already initialized mock
func NewMockMono() *MockMono {
	return &MockMono{
		Initialized: true,
		Slits:       map[icl.Slit]float64{},
		Fail:        map[string]error{},
	}
}

func (m *MockMono) call(name string) error {
	m.Log.Record("mono." + name)
	if err := m.Fail[name]; err != nil {
		delete(m.Fail, name)
		return err
	}
	return nil
}

func (m *MockMono) Open() error {
	m.OpenCount++
	m.opened = true
	return m.call("open")
}

func (m *MockMono) Close() error {
	m.opened = false
	return m.call("close")
}

func (m *MockMono) IsBusy() (bool, error) {
	return false, m.call("isBusy")
}

func (m *MockMono) IsInitialized() (bool, error) {
	return m.Initialized, m.call("isInitialized")
}

func (m *MockMono) Initialize() error {
	m.Initialized = true
	return m.call("init")
}

func (m *MockMono) SetTurretGrating(position int) error {
	if err := m.call("setTurretGrating"); err != nil {
		return err
	}
	m.Grating = position
	return nil
}

func (m *MockMono) MoveToWavelength(nm float64) error {
	if err := m.call("moveToWavelength"); err != nil {
		return err
	}
	m.Wavelength = nm
	return nil
}

func (m *MockMono) GetWavelength() (float64, error) {
	return m.Wavelength, m.call("getWavelength")
}

func (m *MockMono) SetSlitPosition(slit icl.Slit, mm float64) error {
	if err := m.call("setSlitPosition"); err != nil {
		return err
	}
	m.Slits[slit] = mm
	return nil
}

func (m *MockMono) SetMirrorPosition(mirror icl.Mirror, pos icl.MirrorPosition) error {
	return m.call("setMirrorPosition")
}

// MockCCD simulates a detector.  Exposures complete after ExposureDelay
// of wall time, independent of the commanded exposure.
type MockCCD struct {
	// Log, when set, receives every command name
	Log *CallLog

	// Fail maps a command name to an error injected on its next call
	Fail map[string]error

	// Ready is the reply to AcquisitionReady
	Ready bool

	// ExposureDelay is how long a started acquisition reports busy
	ExposureDelay time.Duration

	// Data is returned from AcquisitionData; when nil a small synthetic
	// spectrum matching the chip width is generated
	Data []icl.AcquisitionSet

	Chip       icl.ChipConfig
	ExposureMs int
	Gain       int
	Speed      int
	LastROI    icl.ROI
	OpenCount  int

	busyUntil time.Time
}

// NewMockCCD returns a ready mock with a small synthetic chip
func NewMockCCD() *MockCCD {
	return &MockCCD{
		Ready: true,
		Fail:  map[string]error{},
		Chip: icl.ChipConfig{
			ChipWidth:  16,
			ChipHeight: 4,
			Gains: []icl.GainSetting{
				{Token: 0, Info: "High Light"},
				{Token: 1, Info: "Best Dynamic Range"},
			},
			Speeds: []icl.GainSetting{
				{Token: 0, Info: "45 kHz"},
			},
		},
	}
}

func (m *MockCCD) call(name string) error {
	m.Log.Record("ccd." + name)
	if err := m.Fail[name]; err != nil {
		delete(m.Fail, name)
		return err
	}
	return nil
}

func (m *MockCCD) Open() error {
	m.OpenCount++
	return m.call("open")
}

func (m *MockCCD) Close() error {
	return m.call("close")
}

func (m *MockCCD) Configuration() (icl.ChipConfig, error) {
	return m.Chip, m.call("getConfig")
}

func (m *MockCCD) SetGain(token int) error {
	if err := m.call("setGain"); err != nil {
		return err
	}
	m.Gain = token
	return nil
}

func (m *MockCCD) SetSpeed(token int) error {
	if err := m.call("setSpeed"); err != nil {
		return err
	}
	m.Speed = token
	return nil
}

func (m *MockCCD) SetExposure(ms int) error {
	if err := m.call("setExposure"); err != nil {
		return err
	}
	m.ExposureMs = ms
	return nil
}

func (m *MockCCD) SetTimerResolution(res icl.TimerResolution) error {
	return m.call("setTimerResolution")
}

func (m *MockCCD) SetAcquisitionFormat(numROIs int, f icl.AcquisitionFormat) error {
	return m.call("setAcqFormat")
}

func (m *MockCCD) SetROI(roi icl.ROI) error {
	if err := m.call("setRoi"); err != nil {
		return err
	}
	m.LastROI = roi
	return nil
}

func (m *MockCCD) SetXAxisConversion(conv icl.XAxisConversion) error {
	return m.call("setXAxisConversion")
}

func (m *MockCCD) SetAcquisitionCount(n int) error {
	return m.call("setAcqCount")
}

func (m *MockCCD) AcquisitionReady() (bool, error) {
	return m.Ready, m.call("acqReady")
}

func (m *MockCCD) AcquisitionStart(openShutter bool) error {
	if err := m.call("acqStart"); err != nil {
		return err
	}
	m.busyUntil = time.Now().Add(m.ExposureDelay)
	return nil
}

func (m *MockCCD) AcquisitionBusy() (bool, error) {
	if err := m.call("acqBusy"); err != nil {
		return false, err
	}
	return time.Now().Before(m.busyUntil), nil
}

func (m *MockCCD) AcquisitionData() ([]icl.AcquisitionSet, error) {
	if err := m.call("acqData"); err != nil {
		return nil, err
	}
	if m.Data != nil {
		return m.Data, nil
	}
	width := m.Chip.ChipWidth
	x := make([]float64, width)
	y := make([]float64, width)
	for i := 0; i < width; i++ {
		x[i] = 500 + float64(i)
		y[i] = 100 + float64(i%7)
	}
	return []icl.AcquisitionSet{{
		Index:   1,
		Regions: []icl.Region{{Index: 1, X: x, Y: [][]float64{y}}},
	}}, nil
}

// MockManager simulates the instrument control session
type MockManager struct {
	// MonoList and CCDList are the discovery results
	MonoList []Monochromator
	CCDList  []CCD

	// StartErr, when non-nil, fails Start
	StartErr error

	// StartCount counts Start calls
	StartCount int

	started bool
}

// NewMockManager returns a manager discovering one mock of each device
func NewMockManager(mono *MockMono, ccd *MockCCD) *MockManager {
	m := &MockManager{}
	if mono != nil {
		m.MonoList = []Monochromator{mono}
	}
	if ccd != nil {
		m.CCDList = []CCD{ccd}
	}
	return m
}

func (m *MockManager) Start() error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.StartCount++
	m.started = true
	return nil
}

func (m *MockManager) Stop() error {
	m.started = false
	return nil
}

func (m *MockManager) Started() bool {
	return m.started
}

func (m *MockManager) Monochromators() ([]Monochromator, error) {
	return m.MonoList, nil
}

func (m *MockManager) CCDs() ([]CCD, error) {
	return m.CCDList, nil
}
