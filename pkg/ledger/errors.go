package ledger

import "errors"

var (
	// ErrNotTokenOwner is returned when mint/burn is attempted by anyone
	// other than the address the token was constructed with.
	ErrNotTokenOwner = errors.New("caller is not the token owner")

	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrPaymentRejected is returned when the recipient refuses native
	// currency (the analogue of a contract reverting on receive).
	ErrPaymentRejected = errors.New("recipient rejected payment")

	ErrNonPositiveAmount = errors.New("amount must be positive")
)
