package sale

import "errors"

var (
	ErrUnauthorized       = errors.New("sale: unauthorized")
	ErrNotInitialized     = errors.New("sale: not initialized")
	ErrAlreadyInitialized = errors.New("sale: already initialized")
	ErrNotWhitelisted     = errors.New("sale: contributor not whitelisted")
	ErrOutsideSaleWindow  = errors.New("sale: outside sale window")
	ErrBelowMinimum       = errors.New("sale: contribution below minimum")
	ErrInsufficientAlloc  = errors.New("sale: insufficient allocation")
	ErrInvalidValue       = errors.New("sale: invalid value")
	ErrLengthMismatch     = errors.New("sale: tier array length mismatch")
	ErrUnknownAsset       = errors.New("sale: unknown asset")
	ErrNotClosed          = errors.New("sale: sale has not closed")
	ErrAlreadyFinalized   = errors.New("sale: already finalized")
	ErrReleaseNotSet      = errors.New("sale: bonus release date not set")
	ErrReleaseAlreadySet  = errors.New("sale: bonus release date already set")
	ErrTooEarly           = errors.New("sale: bonus not yet releasable")
	ErrNothingToWithdraw  = errors.New("sale: nothing to withdraw")
	ErrExternalTransfer   = errors.New("sale: external token transfer failed")
	ErrInsufficientFunds  = errors.New("sale: insufficient collected funds")
	ErrNilState           = errors.New("sale: engine state not configured")
	ErrOwnerRoleImmutable = errors.New("sale: owner role cannot be revoked")
)
