package platform

import (
	"math/big"
	"time"
)

// Kind tags a round as the mint-and-sell phase or the peer-to-peer phase.
// Rounds alternate strictly Sale→Trade→Sale…, sharing one index sequence.
type Kind int8

const (
	SaleRound Kind = iota
	TradeRound
)

func (k Kind) String() string {
	switch k {
	case SaleRound:
		return "Sale"
	case TradeRound:
		return "Trade"
	default:
		return "unknown"
	}
}

// Round is one phase instance. The wall-clock window is fixed at creation
// and never extended; a superseded round is immutable history. Sale rounds
// carry pricing/supply fields, trade rounds accumulate TradedValue.
type Round struct {
	Index     uint64    `json:"index"`
	Kind      Kind      `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`

	// Sale only.
	UnitPrice *big.Int `json:"unitPrice,omitempty"` // wei per whole token
	Supplied  *big.Int `json:"supplied,omitempty"`  // smallest token units minted
	Remaining *big.Int `json:"remaining,omitempty"` // unsold smallest token units

	// Trade only: cumulative wei value of fills, sizing the next sale round.
	TradedValue *big.Int `json:"tradedValue,omitempty"`
}

func (r *Round) clone() Round {
	cp := *r
	if r.UnitPrice != nil {
		cp.UnitPrice = new(big.Int).Set(r.UnitPrice)
	}
	if r.Supplied != nil {
		cp.Supplied = new(big.Int).Set(r.Supplied)
	}
	if r.Remaining != nil {
		cp.Remaining = new(big.Int).Set(r.Remaining)
	}
	if r.TradedValue != nil {
		cp.TradedValue = new(big.Int).Set(r.TradedValue)
	}
	return cp
}

// over reports whether the round's window has elapsed at now.
func (r *Round) over(now time.Time) bool {
	return !now.Before(r.EndsAt)
}
