package openapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMethod is returned for a descriptor whose method is not
	// one of the eight PathItem slots.
	ErrInvalidMethod = errors.New("openapi: invalid method")

	// ErrEmptyPath is returned when both the container prefix and the
	// descriptor path are empty.
	ErrEmptyPath = errors.New("openapi: empty path")

	// ErrGeneration is wrapped by every GenerationError.
	ErrGeneration = errors.New("openapi: schema generation failed")

	// ErrGeneratorClosed is the panic value raised when a Generator is
	// used after the registration that created it has finished.
	ErrGeneratorClosed = errors.New("openapi: generator used outside its registration")
)

// MethodError reports an unknown HTTP method.
type MethodError struct {
	Method string
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("openapi: invalid method %q", e.Method)
}

func (e *MethodError) Unwrap() error { return ErrInvalidMethod }

// GenerationError reports a panic raised by a descriptor hook while its
// operation was being generated.
type GenerationError struct {
	Value any
	Stack []byte
}

func (e *GenerationError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("%v: %v", ErrGeneration, err)
	}
	return fmt.Sprintf("%v: %v", ErrGeneration, e.Value)
}

// Unwrap exposes ErrGeneration and, when the panic value was an error,
// that error too.
func (e *GenerationError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrGeneration, err}
	}
	return []error{ErrGeneration}
}

// RegistrationError locates a failed AddHandler call.
type RegistrationError struct {
	Ident  string
	Method Method
	Path   string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("openapi: register %s %s (%s): %v", e.Method, e.Path, e.Ident, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
