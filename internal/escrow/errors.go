package escrow

import "errors"

// ErrNotBuyer means the authenticated caller's role may not open escrow.
// The request is well formed but forbidden, so the API maps it to 403
// rather than 400.
var ErrNotBuyer = errors.New("only buyers can start escrow")

// ValidationError means the caller's input is wrong (over-requested
// quantity, negative amount). The caller must correct the input; the
// operation is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError means the operation is not legal in the escrow's or
// listing's current state: verifying or releasing out of order, releasing
// twice, or starting escrow on a sold listing.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }
