// Package server contains the payload and route table plumbing shared by
// the HTTP wrappers in this module.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"sort"

	"goji.io"
)

// HumanPayload is a struct that can hold any Go basic type, with a tag
// indicating which of its fields is live
type HumanPayload struct {
	// T is the type of the live field
	T types.BasicKind

	// Bool is the payload when T == types.Bool
	Bool bool

	// Int is the payload when T == types.Int
	Int int

	// Float is the payload when T == types.Float64
	Float float64

	// String is the payload when T == types.String
	String string
}

// EncodeAndRespond writes the live field to w as a single-key JSON object,
// {"f64": v}, {"int": v}, {"str": v} or {"bool": v}
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var obj interface{}
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unsupported payload type %v", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// FloatT is a struct with a single field for JSON requests/responses
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single field for JSON requests/responses
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single field for JSON requests/responses
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single field for JSON requests/responses
type BoolT struct {
	Bool bool `json:"bool"`
}

// RouteTable maps goji patterns to handler funcs
type RouteTable map[goji.Pattern]http.HandlerFunc

// Bind attaches each route in the table to the mux
func (rt RouteTable) Bind(mux *goji.Mux) {
	for p, h := range rt {
		mux.Handle(p, h)
	}
}

// Endpoints lists the routes in the table, sorted
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for p := range rt {
		if s, ok := p.(fmt.Stringer); ok {
			routes = append(routes, s.String())
		}
	}
	sort.Strings(routes)
	return routes
}

// HTTPer is a type which exposes a route table over HTTP
type HTTPer interface {
	// RT yields the route table for binding to a mux
	RT() RouteTable
}
