package library

import "errors"

// Error kinds reported by LendingService. Operations wrap one of these with
// the offending ids so callers can match with errors.Is and still print a
// useful message.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrPolicyViolation = errors.New("policy violation")
	ErrNotHeld         = errors.New("material not held by user")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrRegistrySealed = errors.New("material type registry is sealed")
	ErrLedgerTampered = errors.New("ledger hash chain broken")
)
