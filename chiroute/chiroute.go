// Package chiroute binds descriptors to a chi router, so the handlers that
// make up a page are served from the same descriptors that document them.
package chiroute

import (
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/vitalvas/pagespec/openapi"
)

// ErrNoHandler is returned by Bind for a descriptor without a Handler.
var ErrNoHandler = errors.New("chiroute: descriptor has no handler")

// Mount routes each descriptor with a non-nil Handler to r under prefix.
// Path macros ({id:uuid}) are reduced to chi's {id} form. Descriptors
// without a Handler are skipped. Invalid methods and empty paths are
// reported for every offending descriptor.
func Mount(r chi.Router, prefix string, descs ...openapi.Descriptor) error {
	var errs []error
	for _, d := range descs {
		if d.Handler == nil {
			continue
		}
		if err := mount(r, prefix, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bind mounts every descriptor on r and registers it with reg, so the
// router and the pages stay in step. A descriptor without a Handler is an
// error here.
func Bind(r chi.Router, reg *openapi.Registry, prefix string, descs ...openapi.Descriptor) error {
	var errs []error
	for _, d := range descs {
		if d.Handler == nil {
			errs = append(errs, fmt.Errorf("%w: %s %s (%s)", ErrNoHandler, d.Method, d.Path, d.Ident))
			continue
		}
		if err := mount(r, prefix, d); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := reg.Register(prefix, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func mount(r chi.Router, prefix string, d openapi.Descriptor) error {
	if !d.Method.Valid() {
		return &openapi.RegistrationError{
			Ident:  d.Ident,
			Method: d.Method,
			Path:   d.Path,
			Err:    &openapi.MethodError{Method: string(d.Method)},
		}
	}
	if prefix == "" && d.Path == "" {
		return &openapi.RegistrationError{Ident: d.Ident, Method: d.Method, Err: openapi.ErrEmptyPath}
	}

	r.Method(d.Method.String(), openapi.FullPath(prefix, d.Path), d.Handler)
	return nil
}
