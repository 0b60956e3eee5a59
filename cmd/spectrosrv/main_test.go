package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kmoncr/horibactl/generichttp"
	"github.com/kmoncr/horibactl/generichttp/spectro"
	"github.com/kmoncr/horibactl/server/middleware/locker"
	"github.com/kmoncr/horibactl/spectrometer"
)

func newTestRouter(t *testing.T, root string) *httptest.Server {
	t.Helper()
	dm := spectrometer.NewMockManager(spectrometer.NewMockMono(), spectrometer.NewMockCCD())
	ctl := spectrometer.NewController(dm, nil)
	w := spectro.NewHTTPWrapper(ctl, 532)
	l := locker.New()
	locker.Inject(w, l)
	srv := httptest.NewServer(buildRouter(w, l, root))
	t.Cleanup(srv.Close)
	return srv
}

func TestMountedRoutesReachable(t *testing.T) {
	srv := newTestRouter(t, "/spectro")
	resp, err := http.Get(srv.URL + "/spectro/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, expected 200 through the mounted root", resp.StatusCode)
	}
	var payload struct {
		Sequence string `json:"sequence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Sequence != "Idle" {
		t.Errorf("sequence %q, expected Idle", payload.Sequence)
	}
}

func TestMountedLockRouteReachable(t *testing.T) {
	srv := newTestRouter(t, "/spectro")
	resp, err := http.Get(srv.URL + "/spectro/lock")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, expected 200 from the lock route", resp.StatusCode)
	}
}

func TestMountedRootToleratesSloppyConfig(t *testing.T) {
	// no leading slash, trailing slash; the stem still normalizes
	srv := newTestRouter(t, "spectro/")
	resp, err := http.Get(srv.URL + "/spectro/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, expected 200", resp.StatusCode)
	}
}

func TestMountStem(t *testing.T) {
	cases := map[string]string{
		"/spectro":  "/spectro",
		"spectro":   "/spectro",
		"spectro/":  "/spectro",
		"/spectro/": "/spectro",
	}
	for in, expected := range cases {
		if got := generichttp.MountStem(in); got != expected {
			t.Errorf("MountStem(%q) = %q, expected %q", in, got, expected)
		}
	}
}
