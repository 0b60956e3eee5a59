package spectrometer

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kmoncr/horibactl/icl"
	"github.com/kmoncr/horibactl/poll"
	"github.com/kmoncr/horibactl/stage"
	"github.com/kmoncr/horibactl/util"
)

// SeqState is the phase of the acquisition sequence
type SeqState int

const (
	// SeqIdle means no acquisition is running
	SeqIdle SeqState = iota

	// SeqConfiguring means settings are being pushed to the hardware
	SeqConfiguring

	// SeqTriggering means the exposure is being started
	SeqTriggering

	// SeqWaiting means the exposure is running
	SeqWaiting

	// SeqReading means data is being pulled from the detector
	SeqReading
)

// String satisfies fmt.Stringer
func (s SeqState) String() string {
	switch s {
	case SeqIdle:
		return "Idle"
	case SeqConfiguring:
		return "Configuring"
	case SeqTriggering:
		return "Triggering"
	case SeqWaiting:
		return "WaitingForAcquisition"
	case SeqReading:
		return "Reading"
	}
	return "Unknown"
}

// Controller is the top level orchestrator.  One Controller owns one
// instrument session and serializes acquisitions over it.
type Controller struct {
	// SettleFraction is the fraction of the exposure slept before busy
	// polling begins, so short exposures are not hammered with queries
	SettleFraction float64

	// SettleThreshold is the minimum exposure for which the settle
	// sleep is taken at all.  An exposure exactly at the threshold
	// sleeps; only strictly shorter ones poll immediately
	SettleThreshold time.Duration

	conn  *ConnectionManager
	cache *ConfigState
	chip  icl.ChipConfig

	mu           sync.Mutex
	seq          SeqState
	ccdSetupDone bool
}

// NewController returns a controller over the given device manager and
// optional rotation stage (nil when the bench has none)
func NewController(dm DeviceManager, st *stage.Stage) *Controller {
	return &Controller{
		SettleFraction:  0.9,
		SettleThreshold: 100 * time.Millisecond,
		conn:            NewConnectionManager(dm, st),
		cache:           NewConfigState(),
	}
}

// Connection exposes the session manager, mainly for status reporting
func (c *Controller) Connection() *ConnectionManager {
	return c.conn
}

// SequenceState reports the current acquisition phase
func (c *Controller) SequenceState() SeqState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *Controller) setSeq(s SeqState) {
	c.mu.Lock()
	c.seq = s
	c.mu.Unlock()
}

// ConnectHardware brings the full bench up.  Idempotent while the session
// is healthy.  The stage is optional; a stage connect failure is logged
// and the optical instruments stay usable.
func (c *Controller) ConnectHardware() error {
	already := c.conn.State() == Connected
	if err := c.conn.Connect(); err != nil {
		return err
	}
	if !already {
		cfg, err := c.conn.CCD().Configuration()
		if err != nil {
			c.conn.Degrade()
			return InitializationError{Step: "ccd configuration", Err: err}
		}
		c.chip = cfg
		c.cache.Reset()
		c.mu.Lock()
		c.ccdSetupDone = false
		c.mu.Unlock()
		log.Printf("spectrometer: connected, chip %dx%d", cfg.ChipWidth, cfg.ChipHeight)
	}
	if st := c.conn.Stage(); st != nil && !st.IsConnected() {
		if err := st.Connect(); err != nil {
			log.Printf("spectrometer: rotation stage unavailable: %v", err)
		}
	}
	return nil
}

// fail marks the session degraded and wraps the device error
func (c *Controller) fail(device, op string, err error) error {
	c.conn.Degrade()
	return HardwareError{Device: device, Op: op, Err: err}
}

// AcquireSpectrum runs one full acquisition: connect if needed, apply the
// settings that changed since the last acquisition, trigger the exposure,
// wait it out and read the spectrum back.  Only one acquisition may run
// at a time; concurrent calls get ErrAcquisitionInFlight.
func (c *Controller) AcquireSpectrum(req AcquisitionRequest) (AcquisitionResult, error) {
	var res AcquisitionResult
	c.mu.Lock()
	if c.seq != SeqIdle {
		c.mu.Unlock()
		return res, ErrAcquisitionInFlight
	}
	c.seq = SeqConfiguring
	c.mu.Unlock()
	defer c.setSeq(SeqIdle)

	if c.conn.State() != Connected {
		if err := c.ConnectHardware(); err != nil {
			return res, err
		}
	}

	diff := c.cache.Diff(req)

	// the stage moves first so the sample sits still while the optics
	// are reconfigured
	for _, s := range diff {
		if s.Field != FieldAngle {
			continue
		}
		st := c.conn.Stage()
		if st == nil {
			break
		}
		if err := st.SetAngle(s.Value); err != nil {
			return res, c.fail("stage", "move", err)
		}
		if st.IsConnected() {
			c.cache.Commit(FieldAngle, s.Value)
		}
	}

	if err := c.setupCCD(req); err != nil {
		return res, err
	}

	mono := c.conn.Mono()
	ccd := c.conn.CCD()
	for _, s := range diff {
		var err error
		movesMotors := false
		switch s.Field {
		case FieldAngle:
			continue
		case FieldGrating:
			err = mono.SetTurretGrating(int(s.Value))
			movesMotors = true
		case FieldWavelength:
			err = mono.MoveToWavelength(s.Value)
			movesMotors = true
		case FieldSlit:
			err = mono.SetSlitPosition(icl.SlitEntranceFront, s.Value)
			movesMotors = true
		case FieldExposure:
			ms := int(util.SecsToDuration(s.Value).Milliseconds())
			err = ccd.SetExposure(ms)
		case FieldGain:
			err = ccd.SetGain(int(s.Value))
		case FieldSpeed:
			err = ccd.SetSpeed(int(s.Value))
		}
		if err != nil {
			return res, c.fail(s.Field.device(), "set "+s.Field.String(), err)
		}
		if movesMotors {
			err = poll.WaitUntilReady(mono.IsBusy, c.conn.Poll.MonoInterval, c.conn.Poll.MonoTimeout)
			if err != nil {
				return res, c.fail("mono", s.Field.String()+" wait", err)
			}
		}
		c.cache.Commit(s.Field, s.Value)
	}

	ready, err := ccd.AcquisitionReady()
	if err != nil {
		return res, c.fail("ccd", "ready query", err)
	}
	if !ready {
		// the session is healthy, the caller may simply retry
		return res, ErrDetectorNotReady
	}

	c.setSeq(SeqTriggering)
	if err := ccd.AcquisitionStart(true); err != nil {
		return res, c.fail("ccd", "start", err)
	}

	c.setSeq(SeqWaiting)
	exposure := util.SecsToDuration(req.ExposureSec)
	if exposure >= c.SettleThreshold && c.SettleFraction > 0 {
		time.Sleep(time.Duration(c.SettleFraction * float64(exposure)))
	}
	err = poll.WaitUntilReady(ccd.AcquisitionBusy, c.conn.Poll.CCDInterval, c.conn.Poll.CCDTimeout+exposure)
	if err != nil {
		return res, c.fail("ccd", "acquisition wait", err)
	}

	c.setSeq(SeqReading)
	sets, err := ccd.AcquisitionData()
	if err != nil {
		return res, c.fail("ccd", "read", err)
	}
	res, err = extractSpectrum(sets)
	if err != nil {
		return res, c.fail("ccd", "decode", err)
	}
	return res, nil
}

// device maps a field to the device its command goes to
func (f Field) device() string {
	switch f {
	case FieldGrating, FieldWavelength, FieldSlit:
		return "mono"
	case FieldAngle:
		return "stage"
	}
	return "ccd"
}

// setupCCD pushes the one-time detector setup for a fresh session: single
// acquisition, millisecond timers, spectra format, x axis from the
// instrument.  The readout region comes from the request, defaulting to
// the full chip with the vertical axis fully binned.
func (c *Controller) setupCCD(req AcquisitionRequest) error {
	c.mu.Lock()
	done := c.ccdSetupDone
	c.mu.Unlock()
	if done {
		return nil
	}
	ccd := c.conn.CCD()
	rows := req.RowCount
	if rows <= 0 {
		rows = c.chip.ChipHeight - req.RowOrigin
	}
	xbin := req.ColumnBin
	if xbin <= 0 {
		xbin = 1
	}
	roi := icl.ROI{
		Index:   1,
		XOrigin: 0,
		YOrigin: req.RowOrigin,
		XSize:   c.chip.ChipWidth,
		YSize:   rows,
		XBin:    xbin,
		YBin:    rows,
	}
	steps := []struct {
		op string
		fn func() error
	}{
		{"set acquisition count", func() error { return ccd.SetAcquisitionCount(1) }},
		{"set timer resolution", func() error { return ccd.SetTimerResolution(icl.TimerMilliseconds) }},
		{"set acquisition format", func() error { return ccd.SetAcquisitionFormat(1, icl.FormatSpectra) }},
		{"set roi", func() error { return ccd.SetROI(roi) }},
		{"set x axis conversion", func() error { return ccd.SetXAxisConversion(icl.XAxisFromInstrument) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return c.fail("ccd", s.op, err)
		}
	}
	c.mu.Lock()
	c.ccdSetupDone = true
	c.mu.Unlock()
	return nil
}

// extractSpectrum pulls the single expected region out of the acquisition
// payload and validates its shape
func extractSpectrum(sets []icl.AcquisitionSet) (AcquisitionResult, error) {
	var res AcquisitionResult
	if len(sets) == 0 || len(sets[0].Regions) == 0 {
		return res, fmt.Errorf("acquisition payload carried no regions")
	}
	region := sets[0].Regions[0]
	if len(region.Y) != 1 {
		return res, fmt.Errorf("expected a single binned spectrum row, got %d rows", len(region.Y))
	}
	if len(region.X) != len(region.Y[0]) {
		return res, fmt.Errorf("axis length mismatch, %d wavelengths vs %d intensities", len(region.X), len(region.Y[0]))
	}
	res.Wavelengths = region.X
	res.Intensities = region.Y[0]
	return res, nil
}

// SetRotationAngle moves the stage outside of an acquisition.  The move
// is recorded so the next acquisition does not repeat it.
func (c *Controller) SetRotationAngle(deg float64) error {
	st := c.conn.Stage()
	if st == nil {
		log.Print("spectrometer: no rotation stage configured, ignoring move")
		return nil
	}
	deg = util.ModDegrees(deg)
	if err := st.SetAngle(deg); err != nil {
		return err
	}
	if st.IsConnected() {
		c.cache.Commit(FieldAngle, deg)
	}
	return nil
}

// GetRotationAngle reports the stage angle; zero when no stage exists
func (c *Controller) GetRotationAngle() (float64, error) {
	st := c.conn.Stage()
	if st == nil {
		return 0, nil
	}
	return st.GetAngle()
}

// ReturnRotationToOrigin homes the stage
func (c *Controller) ReturnRotationToOrigin() error {
	st := c.conn.Stage()
	if st == nil {
		log.Print("spectrometer: no rotation stage configured, ignoring home")
		return nil
	}
	if err := st.Home(); err != nil {
		return err
	}
	if st.IsConnected() {
		c.cache.Commit(FieldAngle, 0)
	}
	return nil
}

// GetAvailableGains lists the CCD gain tokens with descriptions.  The
// chip configuration table wins when the camera reported one.
func (c *Controller) GetAvailableGains() map[int]string {
	if len(c.chip.Gains) > 0 {
		out := make(map[int]string, len(c.chip.Gains))
		for _, g := range c.chip.Gains {
			out[g.Token] = g.Info
		}
		return out
	}
	out := make(map[int]string, len(GainLabels))
	for k, v := range GainLabels {
		out[k] = v
	}
	return out
}

// GetAvailableSpeeds lists the CCD readout speed tokens with descriptions
func (c *Controller) GetAvailableSpeeds() map[int]string {
	if len(c.chip.Speeds) > 0 {
		out := make(map[int]string, len(c.chip.Speeds))
		for _, s := range c.chip.Speeds {
			out[s.Token] = s.Info
		}
		return out
	}
	out := make(map[int]string, len(SpeedLabels))
	for k, v := range SpeedLabels {
		out[k] = v
	}
	return out
}

// Shutdown tears the whole bench down
func (c *Controller) Shutdown() error {
	c.cache.Reset()
	c.mu.Lock()
	c.ccdSetupDone = false
	c.mu.Unlock()
	return c.conn.Disconnect()
}
