package icl

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// loopbackICL answers every command with canned results keyed by command
// name, echoing the request id back the way the device server does.
func loopbackICL(t *testing.T, canned map[string]map[string]interface{}) *Session {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req command
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			rep := map[string]interface{}{
				"id":      req.ID,
				"command": req.Command,
				"errors":  []string{},
			}
			if res, ok := canned[req.Command]; ok {
				rep["results"] = res
			} else {
				rep["errors"] = []string{"unknown command"}
			}
			if err := conn.WriteJSON(rep); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")
	s := NewSession(addr)
	if err := s.Open(); err != nil {
		t.Fatalf("could not open session to loopback: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecRoundTrip(t *testing.T) {
	s := loopbackICL(t, map[string]map[string]interface{}{
		"mono_isBusy": {"busy": true},
	})
	res, err := s.Exec("mono_isBusy", map[string]interface{}{"index": 0})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	busy, err := res.Bool("mono_isBusy", "busy")
	if err != nil {
		t.Fatalf("result decode failed: %v", err)
	}
	if !busy {
		t.Error("expected busy=true from loopback")
	}
}

func TestExecSurfacesErrorStrings(t *testing.T) {
	s := loopbackICL(t, nil)
	_, err := s.Exec("mono_nonexistent", nil)
	var ce CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %T: %v", err, err)
	}
	if ce.Command != "mono_nonexistent" {
		t.Errorf("CommandError names wrong command: %s", ce.Command)
	}
}

func TestExecIDsIncrement(t *testing.T) {
	s := loopbackICL(t, map[string]map[string]interface{}{
		"icl_info": {"nodeVersion": "1.0"},
	})
	for i := 0; i < 3; i++ {
		if _, err := s.Exec("icl_info", nil); err != nil {
			t.Fatalf("exec %d failed: %v", i, err)
		}
	}
	if s.id != 3 {
		t.Errorf("expected command id to reach 3, got %d", s.id)
	}
}

func TestRegionDecodeFlat(t *testing.T) {
	blob := []byte(`{"roiIndex":1,"xData":[500.1,500.2],"yData":[[10,20]]}`)
	var r Region
	if err := json.Unmarshal(blob, &r); err != nil {
		t.Fatal(err)
	}
	if len(r.X) != 2 || len(r.Y) != 1 || len(r.Y[0]) != 2 {
		t.Errorf("bad shapes: x=%d yrows=%d", len(r.X), len(r.Y))
	}
}

func TestRegionDecodeSingletonWrapped(t *testing.T) {
	// some server builds wrap the x axis in a one-element outer list
	blob := []byte(`{"roiIndex":1,"xData":[[500.1,500.2]],"yData":[10,20]}`)
	var r Region
	if err := json.Unmarshal(blob, &r); err != nil {
		t.Fatal(err)
	}
	if len(r.X) != 2 {
		t.Errorf("expected x axis unwrapped to 2 samples, got %d", len(r.X))
	}
	if len(r.Y) != 1 || len(r.Y[0]) != 2 {
		t.Errorf("expected flat y promoted to one row of 2, got %d rows", len(r.Y))
	}
}
