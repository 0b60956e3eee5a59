package spectro

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kmoncr/horibactl/icl"
	"github.com/kmoncr/horibactl/spectrometer"
	"goji.io"
)

func newTestServer(t *testing.T) (*httptest.Server, *spectrometer.MockMono, *spectrometer.MockCCD) {
	t.Helper()
	mono := spectrometer.NewMockMono()
	ccd := spectrometer.NewMockCCD()
	dm := spectrometer.NewMockManager(mono, ccd)
	c := spectrometer.NewController(dm, nil)
	c.Connection().Poll = spectrometer.PollSettings{
		MonoInterval: time.Millisecond,
		MonoTimeout:  100 * time.Millisecond,
		CCDInterval:  time.Millisecond,
		CCDTimeout:   100 * time.Millisecond,
	}
	w := NewHTTPWrapper(c, 532)
	mux := goji.NewMux()
	w.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mono, ccd
}

func acquireBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	req := spectrometer.AcquisitionRequest{
		Grating:            spectrometer.Grating600,
		CenterWavelengthNm: 550,
		SlitWidthMm:        0.1,
		ExposureSec:        0.01,
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(req); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestAcquireReturnsSpectrum(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/acquire", "application/json", acquireBody(t))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	var payload struct {
		Wavelengths []float64 `json:"wavelengths"`
		Intensities []float64 `json:"intensities"`
		Wavenumbers []float64 `json:"wavenumbers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Wavelengths) == 0 {
		t.Fatal("empty spectrum")
	}
	if len(payload.Intensities) != len(payload.Wavelengths) {
		t.Error("axis length mismatch")
	}
	if len(payload.Wavenumbers) != len(payload.Wavelengths) {
		t.Error("wavenumber axis missing or wrong length")
	}
}

func TestAcquireClampsSlitToTravel(t *testing.T) {
	srv, mono, _ := newTestServer(t)
	req := spectrometer.AcquisitionRequest{
		Grating:            spectrometer.Grating600,
		CenterWavelengthNm: 550,
		SlitWidthMm:        30,
		ExposureSec:        0.01,
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(req); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+"/acquire", "application/json", buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if mm := mono.Slits[icl.SlitEntranceFront]; mm != 7 {
		t.Errorf("slit commanded to %f mm, expected the 7 mm end of travel", mm)
	}
}

func TestAcquireBadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/acquire", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got status %d, expected 400", resp.StatusCode)
	}
}

func TestAcquireDetectorNotReadyIs503(t *testing.T) {
	srv, _, ccd := newTestServer(t)
	ccd.Ready = false
	resp, err := http.Post(srv.URL+"/acquire", "application/json", acquireBody(t))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got status %d, expected 503", resp.StatusCode)
	}
}

func TestStatusReportsStates(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var payload struct {
		Connection string `json:"connection"`
		Sequence   string `json:"sequence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Connection != "Disconnected" {
		t.Errorf("connection %q, expected Disconnected before connect", payload.Connection)
	}
	if payload.Sequence != "Idle" {
		t.Errorf("sequence %q, expected Idle", payload.Sequence)
	}
}

func TestConnectThenGains(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/connect", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/gains")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var gains map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&gains); err != nil {
		t.Fatal(err)
	}
	if gains["1"] != "Best Dynamic Range" {
		t.Errorf("gain table %v missing chip entry", gains)
	}
}

func TestRotationWithoutStage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/rotation/angle")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	var f struct {
		F64 float64 `json:"f64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.F64 != 0 {
		t.Errorf("angle %f on a stageless bench, expected 0", f.F64)
	}
}

func TestAcquireFits(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/acquire?fmt=fits", "application/json", acquireBody(t))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/fits" {
		t.Errorf("content type %q", ct)
	}
	buf := make([]byte, 6)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "SIMPLE" {
		t.Errorf("payload starts with %q, expected a FITS header", buf)
	}
}
