package edgecas

import (
	"github.com/agenthands/edgecas/pkg/core"
)

var (
	ErrNotFound     = core.ErrNotFound
	ErrInvalidJSON  = core.ErrInvalidJSON
	ErrInvalidInput = core.ErrInvalidInput
	ErrCorrupt      = core.ErrCorrupt
	ErrTooLarge     = core.ErrTooLarge
	ErrBackend      = core.ErrBackend
	ErrClosed       = core.ErrClosed
	ErrNotSupported = core.ErrNotSupported
)

// Caller-facing rejection reasons.
const (
	ReasonInvalidJSON = "Invalid JSON"
	ReasonTooLarge    = "Instance too large"
)
