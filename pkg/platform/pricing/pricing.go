// Package pricing computes each sale round's unit price and supply from
// round history. Pure arithmetic, no state.
package pricing

import (
	"math/big"

	"github.com/quantor-labs/mintround/params"
)

// Terms are the opening parameters of a sale round.
type Terms struct {
	UnitPrice *big.Int // wei per whole token
	Supply    *big.Int // smallest token units
}

const bpsDenominator = 10000

// Bootstrap returns the fixed terms of the very first sale round.
func Bootstrap(eco params.Economics) Terms {
	return Terms{
		UnitPrice: new(big.Int).Set(eco.InitialPrice),
		Supply:    new(big.Int).Set(eco.InitialSupply),
	}
}

// NextTerms derives the terms of the sale round that follows a trade round.
//
//	price'  = prevPrice * GrowthBps / 10000 + Increment
//	supply' = tradedValue * TokenUnit / price'   (truncating)
//
// The supply is sized so that, at the new price, it is worth exactly the
// native-currency value transacted in the preceding trade round; leftover
// sale supply never feeds back into this recurrence.
func NextTerms(eco params.Economics, prevPrice, tradedValue *big.Int) Terms {
	price := new(big.Int).Mul(prevPrice, big.NewInt(eco.PriceGrowthBps))
	price.Quo(price, big.NewInt(bpsDenominator))
	price.Add(price, eco.PriceIncrement)

	supply := new(big.Int).Mul(tradedValue, params.TokenUnit)
	supply.Quo(supply, price)

	return Terms{UnitPrice: price, Supply: supply}
}
