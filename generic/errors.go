/*
errors.go - Shared error types for the generic primitives

PURPOSE:
  Errors that are not specific to settlements: malformed periods and
  store-level conflicts. The settlement package defines its own domain
  errors and reuses these for the shared cases.

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      // 400 to the client
  }

SEE ALSO:
  - period.go: Returns ErrInvalidPeriod
  - settlement/errors.go: Domain error taxonomy
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start,
	// missing or unparsable date).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrConcurrentModification is returned when a guarded write finds the row
	// no longer in the state it was read in.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)
