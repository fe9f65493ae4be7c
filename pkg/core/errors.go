package core

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("edgecas: not found")
	ErrInvalidJSON  = errors.New("edgecas: invalid json")
	ErrInvalidInput = errors.New("edgecas: invalid input")
	ErrCorrupt      = errors.New("edgecas: corrupt data")
	ErrTooLarge     = errors.New("edgecas: too large")
	ErrBackend      = errors.New("edgecas: backend failure")
	ErrClosed       = errors.New("edgecas: store closed")
	ErrNotSupported = errors.New("edgecas: not supported")
)

// RejectionError is a terminal, caller-facing ingest failure. Reasons are
// meant to be shown to the client as-is.
type RejectionError struct {
	Kind    error
	Reasons []string
}

func (e *RejectionError) Error() string {
	return e.Kind.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *RejectionError) Unwrap() error { return e.Kind }

// Reject builds a RejectionError of the given kind.
func Reject(kind error, reasons ...string) error {
	return &RejectionError{Kind: kind, Reasons: reasons}
}
