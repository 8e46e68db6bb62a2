// Package errors collects the sentinel errors shared across the ve3 ledger
// engine, grouped by the kind taxonomy the engine reports to callers:
// validation, authorization, consistency, saturation, and external.
package errors

import stderrors "errors"

// Validation errors are rejected before any state change.
var (
	ErrBadBps            = stderrors.New("ve3: bps sum exceeds 10000 or entry is out of range")
	ErrDuplicateAsset    = stderrors.New("ve3: duplicated asset in allocation")
	ErrUnknownGauge      = stderrors.New("ve3: unknown gauge")
	ErrUnknownAsset      = stderrors.New("ve3: asset not whitelisted")
	ErrWrongAsset        = stderrors.New("ve3: deposit asset does not match position asset")
	ErrDurationOutOfBand = stderrors.New("ve3: lock duration out of bounds")
	ErrZeroAmount        = stderrors.New("ve3: amount must be positive")
)

// Authorization errors are rejected before any state change.
var (
	ErrNotOwner        = stderrors.New("ve3: caller is neither owner nor approved")
	ErrCapabilityMissing = stderrors.New("ve3: caller lacks required capability")
)

// Consistency errors reject an operation on state that cannot support it.
var (
	ErrPositionNotFound   = stderrors.New("ve3: position not found")
	ErrPositionBurned     = stderrors.New("ve3: position already burned")
	ErrMergeMismatch      = stderrors.New("ve3: positions are not mergeable")
	ErrNotExpired         = stderrors.New("ve3: lock has not expired")
	ErrAlreadyPermanent   = stderrors.New("ve3: position is already permanent")
	ErrNotPermanent       = stderrors.New("ve3: position is not permanent")
	ErrDistributionFrozen = stderrors.New("ve3: distribution already set for period")
	ErrNothingToClaim     = stderrors.New("ve3: nothing to claim")
)

// ErrSaturated marks an arithmetic path the engine treats as a bug: the
// action aborts rather than silently truncating.
var ErrSaturated = stderrors.New("ve3: arithmetic saturation detected")

// External errors originate from a subcall (swap/zapper, reward sink,
// stake-forwarding adapter, capability oracle transport).
var (
	ErrExternalCall  = stderrors.New("ve3: external subcall failed")
	ErrOracleUnavail = stderrors.New("ve3: capability oracle unavailable")
)
