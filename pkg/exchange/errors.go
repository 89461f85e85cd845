package exchange

import "errors"

// Engine errors. Every public operation fails with exactly one of these
// (possibly wrapped with call context); callers can branch with errors.Is.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidAsset        = errors.New("invalid asset for operation")
	ErrSameAsset           = errors.New("order must trade two different assets")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderFilled         = errors.New("order already filled")
	ErrOrderCancelled      = errors.New("order already cancelled")
	ErrNotMaker            = errors.New("caller is not the order maker")
	ErrTokenNotRegistered  = errors.New("token not registered")
	ErrTransferFailed      = errors.New("token transfer failed")
)
