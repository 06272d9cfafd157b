// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"errors"
	"fmt"
)

// Kind classifies recommender failures. Callers branch on the kind rather
// than on message text.
type Kind int

const (
	// KindInternal is any failure not covered by a more specific kind.
	KindInternal Kind = iota
	// KindEmptyInput means there was nothing to train on.
	KindEmptyInput
	// KindInvalidArgument means the request was rejected before computation.
	KindInvalidArgument
	// KindConvergence means factorization produced NaN or Inf.
	KindConvergence
	// KindModelUnavailable means no trained model is loaded.
	KindModelUnavailable
)

// Code returns the stable wire code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConvergence:
		return "convergence_error"
	case KindModelUnavailable:
		return "model_not_loaded"
	default:
		return "internal_error"
	}
}

func (k Kind) String() string { return k.Code() }

// Sentinel errors for errors.Is checks.
var (
	ErrEmptyInput       = &Error{Kind: KindEmptyInput}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrConvergence      = &Error{Kind: KindConvergence}
	ErrModelUnavailable = &Error{Kind: KindModelUnavailable}
)

// Error is the typed error returned by the recommender core.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Code(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Code())
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	default:
		return e.Kind.Code()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidArgument)
// holds for every invalid-argument failure regardless of Op or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...interface{}) error {
	return newError(KindInvalidArgument, op, format, args...)
}

// Convergence builds a KindConvergence error.
func Convergence(op, format string, args ...interface{}) error {
	return newError(KindConvergence, op, format, args...)
}

// KindOf extracts the Kind from err, returning KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
