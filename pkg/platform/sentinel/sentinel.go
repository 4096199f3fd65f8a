package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Lower layers return these,
// optionally wrapped, so services can translate them into domain errors.
var (
	// ErrAlreadyUsed marks a one-shot operation, such as override install,
	// that already ran.
	ErrAlreadyUsed = errors.New("already used")
)
