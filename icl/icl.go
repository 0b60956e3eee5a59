/*Package icl speaks to the vendor instrument control layer (ICL) for the
spectrometer bench.  The ICL is a device server shipped with the instrument
that owns USB enumeration and register programming for the monochromator
and the CCD; clients talk to it as JSON command envelopes over a websocket,
normally on the loopback interface.

This package is purely a driver seam.  Recipes (parameter diffing, busy
sequencing, spectrum assembly) live in package spectrometer.
*/
package icl

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
)

// DefaultAddr is where the vendor device server listens when started with
// stock settings.
const DefaultAddr = "127.0.0.1:25010"

// CommandError is generated when the ICL answers a command with a non-empty
// errors list
type CommandError struct {
	// Command is the command that failed
	Command string

	// Errors holds the error strings from the ICL, verbatim
	Errors []string
}

// Error satisfies the error interface
func (e CommandError) Error() string {
	return fmt.Sprintf("icl: %s: %s", e.Command, strings.Join(e.Errors, "; "))
}

// ErrMissingResult is generated when a reply lacks a field the caller needs
type ErrMissingResult struct {
	Command string
	Field   string
}

// Error satisfies the error interface
func (e ErrMissingResult) Error() string {
	return fmt.Sprintf("icl: %s: reply missing result field %q", e.Command, e.Field)
}

// command is the request envelope
type command struct {
	ID         uint64                 `json:"id"`
	Command    string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// reply is the response envelope
type reply struct {
	ID      uint64                     `json:"id"`
	Command string                     `json:"command"`
	Results map[string]json.RawMessage `json:"results"`
	Errors  []string                   `json:"errors"`
}

// Results holds the decoded results map of one reply
type Results map[string]json.RawMessage

// Float extracts a float64 field from the results
func (r Results) Float(cmd, field string) (float64, error) {
	raw, ok := r[field]
	if !ok {
		return 0, ErrMissingResult{Command: cmd, Field: field}
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// Int extracts an int field from the results
func (r Results) Int(cmd, field string) (int, error) {
	raw, ok := r[field]
	if !ok {
		return 0, ErrMissingResult{Command: cmd, Field: field}
	}
	var i int
	err := json.Unmarshal(raw, &i)
	return i, err
}

// Bool extracts a bool field from the results
func (r Results) Bool(cmd, field string) (bool, error) {
	raw, ok := r[field]
	if !ok {
		return false, ErrMissingResult{Command: cmd, Field: field}
	}
	var b bool
	err := json.Unmarshal(raw, &b)
	return b, err
}

// Session is one websocket connection to the ICL.  Command ids increment
// per session; the ICL replies in order, so a single in-flight command at a
// time is enforced with a lock rather than a correlation table.
type Session struct {
	// Addr is the host:port of the device server
	Addr string

	conn *websocket.Conn
	id   uint64
	mu   sync.Mutex
}

// NewSession returns a Session that will dial addr; it does not connect
func NewSession(addr string) *Session {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Session{Addr: addr}
}

// Open dials the device server.  The dial is retried with exponential
// backoff; the ICL takes a moment to accept connections after it is spawned.
func (s *Session) Open() error {
	url := fmt.Sprintf("ws://%s", s.Addr)
	op := func() error {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      5 * time.Second,
		Clock:               backoff.SystemClock})
}

// Close closes the websocket
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Connected reports whether the session holds a live socket
func (s *Session) Connected() bool {
	return s != nil && s.conn != nil
}

// Exec round-trips one command.  A reply carrying error strings becomes a
// CommandError; transport failures are returned as-is so callers can treat
// them as a degraded link.
func (s *Session) Exec(cmd string, params map[string]interface{}) (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, fmt.Errorf("icl: %s: session not open", cmd)
	}
	s.id++
	req := command{ID: s.id, Command: cmd, Parameters: params}
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, err
	}
	var rep reply
	if err := s.conn.ReadJSON(&rep); err != nil {
		return nil, err
	}
	if len(rep.Errors) > 0 {
		return nil, CommandError{Command: cmd, Errors: rep.Errors}
	}
	return Results(rep.Results), nil
}
