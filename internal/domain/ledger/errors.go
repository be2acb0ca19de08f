package ledger

import "errors"

// ErrNonPositiveAmount is returned by New when the supplied amount is
// not strictly positive.
var ErrNonPositiveAmount = errors.New("ledger entry amount must be positive")
