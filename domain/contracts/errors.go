package contracts

import "errors"

// Common errors for domain contracts
var (
	// ErrUnknownAudit occurs when an operation references an audit ID with no
	// known audit. No state is mutated.
	ErrUnknownAudit = errors.New("unknown audit")
)
