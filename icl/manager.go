package icl

import (
	"encoding/json"
	"log"
)

// DeviceInfo describes one device the ICL discovered
type DeviceInfo struct {
	// Index is the handle used to address the device in later commands
	Index int `json:"index"`

	// DeviceType is the vendor model string
	DeviceType string `json:"deviceType"`

	// SerialNumber is the unit serial
	SerialNumber string `json:"serialNumber"`
}

// DeviceManager wraps the ICL session with discovery.  It is the only type
// that issues icl_* commands; everything device-specific goes through the
// Monochromator and CCD wrappers it hands out.
type DeviceManager struct {
	s *Session
}

// NewDeviceManager returns a DeviceManager over a session to addr
func NewDeviceManager(addr string) *DeviceManager {
	return &DeviceManager{s: NewSession(addr)}
}

// Start opens the session and logs the ICL build info
func (dm *DeviceManager) Start() error {
	err := dm.s.Open()
	if err != nil {
		return err
	}
	res, err := dm.s.Exec("icl_info", nil)
	if err != nil {
		return err
	}
	if raw, ok := res["nodeVersion"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			log.Printf("icl: connected to device server %s at %s", v, dm.s.Addr)
		}
	}
	return nil
}

// Stop asks the ICL to shut down and closes the socket.  The shutdown
// command is best-effort; a dead server is already stopped.
func (dm *DeviceManager) Stop() error {
	if dm.s.Connected() {
		if _, err := dm.s.Exec("icl_shutdown", nil); err != nil {
			log.Printf("icl: shutdown command failed: %v", err)
		}
	}
	return dm.s.Close()
}

// Started reports whether the session is open
func (dm *DeviceManager) Started() bool {
	return dm.s.Connected()
}

func (dm *DeviceManager) list(discoverCmd, listCmd, field string) ([]DeviceInfo, error) {
	if _, err := dm.s.Exec(discoverCmd, nil); err != nil {
		return nil, err
	}
	res, err := dm.s.Exec(listCmd, nil)
	if err != nil {
		return nil, err
	}
	raw, ok := res[field]
	if !ok {
		return nil, ErrMissingResult{Command: listCmd, Field: field}
	}
	var infos []DeviceInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Monochromators discovers and lists the monochromators on the bench
func (dm *DeviceManager) Monochromators() ([]*Monochromator, error) {
	infos, err := dm.list("mono_discover", "mono_list", "list")
	if err != nil {
		return nil, err
	}
	monos := make([]*Monochromator, len(infos))
	for i, info := range infos {
		monos[i] = &Monochromator{s: dm.s, Info: info}
	}
	return monos, nil
}

// CCDs discovers and lists the charge coupled devices on the bench
func (dm *DeviceManager) CCDs() ([]*CCD, error) {
	infos, err := dm.list("ccd_discover", "ccd_list", "list")
	if err != nil {
		return nil, err
	}
	ccds := make([]*CCD, len(infos))
	for i, info := range infos {
		ccds[i] = &CCD{s: dm.s, Info: info}
	}
	return ccds, nil
}
