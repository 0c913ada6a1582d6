package glutbridge

import (
	"fmt"
)

// RegistrationAbortedError is returned under PolicyStopOnFirstMiss: a
// missing registration symbol stops the pass and every later entry point
// stays unregistered.
type RegistrationAbortedError struct {
	Shim    string
	Missing string
	Skipped []string
	Cause   error
}

func (e *RegistrationAbortedError) Error() string {
	return fmt.Sprintf(
		"registration with '%s' aborted at '%s' (%d entry points left unregistered): %v",
		e.Shim, e.Missing, len(e.Skipped), e.Cause,
	)
}

func (e *RegistrationAbortedError) Unwrap() error {
	return e.Cause
}
