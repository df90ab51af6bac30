package openapi

import (
	"net/http"
	"strings"
)

// Method is an HTTP method that owns a slot in a PathItem.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
	MethodPatch   Method = http.MethodPatch
	MethodTrace   Method = http.MethodTrace
)

// methods lists every slot in PathItem field order.
var methods = []Method{
	MethodGet, MethodPut, MethodPost, MethodDelete,
	MethodOptions, MethodHead, MethodPatch, MethodTrace,
}

// Valid reports whether m is one of the eight slot methods.
func (m Method) Valid() bool {
	for _, known := range methods {
		if m == known {
			return true
		}
	}
	return false
}

// String returns the upper-case method name.
func (m Method) String() string {
	return string(m)
}

// ParseMethod converts a method name in any case to a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &MethodError{Method: s}
	}
	return m, nil
}
