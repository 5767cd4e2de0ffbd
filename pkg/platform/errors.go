package platform

import "errors"

// State-guard and input violations of the round engine. Authorization and
// order-lifecycle errors live in the referral and orderbook packages;
// resource errors (balance/allowance) come from pkg/ledger. Every rejected
// operation leaves state untouched.
var (
	ErrNoSaleRoundYet      = errors.New("this action is possible only after the first sale round start")
	ErrSaleAlreadyStarted  = errors.New("sale round already started")
	ErrSaleStillOngoing    = errors.New("sale round is still ongoing")
	ErrTradeAlreadyStarted = errors.New("trade round already started")
	ErrTradeStillOngoing   = errors.New("trade round window has not elapsed")
	ErrSaleRoundNotOpen    = errors.New("sale round is not open")
	ErrTradeRoundNotOpen   = errors.New("trade round is not open")
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrZeroPrice           = errors.New("unit price must be greater than zero")
	ErrWrongOrderSide      = errors.New("operation does not apply to this order side")
)
