// Package spectro exposes a spectrometer controller over HTTP
package spectro

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kmoncr/horibactl/generichttp"
	"github.com/kmoncr/horibactl/server"
	"github.com/kmoncr/horibactl/spectrometer"
	"github.com/kmoncr/horibactl/util"
	"goji.io/pat"
)

// travel of the entrance slit drive in mm
const (
	slitMinMm = 0
	slitMaxMm = 7
)

// Controller is the surface the HTTP wrapper drives.  It is satisfied by
// spectrometer.Controller.
type Controller interface {
	ConnectHardware() error
	AcquireSpectrum(spectrometer.AcquisitionRequest) (spectrometer.AcquisitionResult, error)
	SetRotationAngle(float64) error
	GetRotationAngle() (float64, error)
	ReturnRotationToOrigin() error
	GetAvailableGains() map[int]string
	GetAvailableSpeeds() map[int]string
	SequenceState() spectrometer.SeqState
	Connection() *spectrometer.ConnectionManager
	Shutdown() error
}

// HTTPSpectrograph wraps a Controller with an HTTP route table
type HTTPSpectrograph struct {
	// Excitation is the laser line in nanometers, used to compute the
	// Raman shift axis returned with every spectrum
	Excitation float64

	RouteTable server.RouteTable
	c          Controller
}

// NewHTTPWrapper returns an HTTP wrapper around a controller
func NewHTTPWrapper(c Controller, excitationNm float64) HTTPSpectrograph {
	w := HTTPSpectrograph{Excitation: excitationNm, c: c}
	rt := server.RouteTable{
		pat.Post("/connect"):        w.Connect,
		pat.Post("/acquire"):        w.Acquire,
		pat.Get("/rotation/angle"):  generichttp.GetFloat(c.GetRotationAngle),
		pat.Post("/rotation/angle"): generichttp.SetFloat(c.SetRotationAngle),
		pat.Post("/rotation/home"):  generichttp.NoArgs(c.ReturnRotationToOrigin),
		pat.Get("/gains"):           w.Gains,
		pat.Get("/speeds"):          w.Speeds,
		pat.Get("/status"):          w.Status,
		pat.Post("/shutdown"):       generichttp.NoArgs(c.Shutdown),
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPSpectrograph) RT() server.RouteTable {
	return h.RouteTable
}

// Connect brings the bench up
func (h HTTPSpectrograph) Connect(w http.ResponseWriter, r *http.Request) {
	if err := h.c.ConnectHardware(); err != nil {
		http.Error(w, err.Error(), connectStatus(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// spectrumPayload is the JSON encoding of one captured spectrum
type spectrumPayload struct {
	Wavelengths []float64 `json:"wavelengths"`
	Intensities []float64 `json:"intensities"`
	Wavenumbers []float64 `json:"wavenumbers,omitempty"`
}

// Acquire runs one acquisition.  The request body is a JSON
// spectrometer.AcquisitionRequest; ?fmt=fits streams the spectrum as a
// FITS file instead of JSON.
func (h HTTPSpectrograph) Acquire(w http.ResponseWriter, r *http.Request) {
	var req spectrometer.AcquisitionRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// out of range slit requests pin to the end of travel instead of
	// faulting the mono
	req.SlitWidthMm = util.Clamp(req.SlitWidthMm, slitMinMm, slitMaxMm)
	res, err := h.c.AcquireSpectrum(req)
	if err != nil {
		http.Error(w, err.Error(), acquireStatus(err))
		return
	}
	if r.URL.Query().Get("fmt") == "fits" {
		w.Header().Set("Content-Type", "image/fits")
		w.Header().Set("Content-Disposition", `attachment; filename="spectrum.fits"`)
		if err := WriteFits(w, req, res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	payload := spectrumPayload{
		Wavelengths: res.Wavelengths,
		Intensities: res.Intensities,
	}
	excitation := h.Excitation
	if req.ExcitationNm > 0 {
		excitation = req.ExcitationNm
	}
	if q := r.URL.Query().Get("excitation"); q != "" {
		if f, err := strconv.ParseFloat(q, 64); err == nil {
			excitation = f
		}
	}
	if excitation > 0 {
		payload.Wavenumbers = res.Wavenumbers(excitation)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Gains lists the detector gain tokens with their descriptions
func (h HTTPSpectrograph) Gains(w http.ResponseWriter, r *http.Request) {
	writeTokenMap(w, h.c.GetAvailableGains())
}

// Speeds lists the detector readout speed tokens with their descriptions
func (h HTTPSpectrograph) Speeds(w http.ResponseWriter, r *http.Request) {
	writeTokenMap(w, h.c.GetAvailableSpeeds())
}

func writeTokenMap(w http.ResponseWriter, m map[int]string) {
	// JSON objects key on strings
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// statusPayload is the JSON encoding of the session and sequencer state
type statusPayload struct {
	Connection string `json:"connection"`
	Sequence   string `json:"sequence"`
}

// Status reports session health and the acquisition phase
func (h HTTPSpectrograph) Status(w http.ResponseWriter, r *http.Request) {
	payload := statusPayload{
		Connection: h.c.Connection().State().String(),
		Sequence:   h.c.SequenceState().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// connectStatus maps connect errors to HTTP codes
func connectStatus(err error) int {
	if errors.Is(err, spectrometer.ErrNoDeviceFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// acquireStatus maps acquisition errors to HTTP codes
func acquireStatus(err error) int {
	switch {
	case errors.Is(err, spectrometer.ErrAcquisitionInFlight):
		return http.StatusConflict
	case errors.Is(err, spectrometer.ErrDetectorNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, spectrometer.ErrNoDeviceFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
