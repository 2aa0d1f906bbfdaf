// Package errs holds the error values shared by the surrogate packages.
//
// Configuration errors are detected eagerly when objects are constructed or
// set up and are never retried. Numerical errors are reported at the point of
// the failing factorization or solve and wrap one of the sentinel values below.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is wrapped by every ConfigError.
	ErrConfig = errors.New("surrogate: configuration error")
	// ErrSingular is returned when a linear system cannot be solved.
	ErrSingular = errors.New("surrogate: singular system")
	// ErrNotPositiveDefinite is returned when a Cholesky factorization fails.
	ErrNotPositiveDefinite = errors.New("surrogate: matrix not positive definite")
)

// ConfigError reports an inconsistent or unsupported parameter. Got and Want
// hold the two conflicting values when there are two; they are nil otherwise.
type ConfigError struct {
	Object string // name of the object being configured
	Param  string // name of the offending parameter
	Msg    string
	Got    any
	Want   any
}

func (e *ConfigError) Error() string {
	s := e.Object
	if e.Param != "" {
		s += " (" + e.Param + ")"
	}
	s += ": " + e.Msg
	if e.Got != nil || e.Want != nil {
		s += fmt.Sprintf(": got %v, want %v", e.Got, e.Want)
	}
	return s
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Config returns a ConfigError without conflicting values.
func Config(object, param, msg string) error {
	return &ConfigError{Object: object, Param: param, Msg: msg}
}

// Mismatch returns a ConfigError for two values that must agree.
func Mismatch(object, param, msg string, got, want any) error {
	return &ConfigError{Object: object, Param: param, Msg: msg, Got: got, Want: want}
}
