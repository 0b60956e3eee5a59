// Package locker provides an HTTP middleware that can shut out remote
// control, returning 423 (locked).  An operator working at the bench locks
// the server so a remote script cannot move the instrument underneath them.
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"

	"github.com/kmoncr/horibactl/server"
	"goji.io/pat"
)

// Inject adds the lock manipulation routes to an HTTPer's table
func Inject(other server.HTTPer, l *Locker) {
	rt := other.RT()
	rt[pat.Get("/lock")] = l.HTTPGet
	rt[pat.Post("/lock")] = l.HTTPSet
}

// Locker behaves like a mutex without the blocking; locked requests are
// rejected, not queued
type Locker struct {
	isLocked bool

	// DoNotProtect lists path substrings the lock does not apply to,
	// so status queries keep working while the bench is claimed
	DoNotProtect []string
}

// New returns a Locker that never protects the lock route itself or
// read-only status queries
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock", "status"}}
}

// Lock claims the bench
func (l *Locker) Lock() {
	l.isLocked = true
}

// Unlock releases the bench
func (l *Locker) Unlock() {
	l.isLocked = false
}

// Locked reports whether the bench is claimed
func (l *Locker) Locked() bool {
	return l.isLocked
}

// Check is the middleware; requests to protected paths bounce with 423
// while the bench is claimed
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() {
			protected := true
			for _, str := range l.DoNotProtect {
				if strings.Contains(r.URL.Path, str) {
					protected = false
					break
				}
			}
			if protected {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet claims or releases the bench based on json:bool in the body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}
