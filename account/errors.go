package account

import "errors"

// Errors
var (
	ErrAccountNotFound  = errors.New("account: merchant account not found")
	ErrAccountNotActive = errors.New("account: merchant account is not active")
	ErrLimitRange       = errors.New("account: min transaction amount exceeds max")
	ErrCurrencyMismatch = errors.New("account: currency mismatch")
	ErrDuplicateAccount = errors.New("account: merchant account already exists")
)
