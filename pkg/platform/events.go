package platform

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
)

// EventSink receives the platform's notifications. They exist for external
// logging/UI consumers and are not required for correctness; sinks must not
// call back into the platform.
type EventSink interface {
	RoundStarted(kind Kind, unitPrice *big.Int)
	OrderAdded(side orderbook.Side, amount, unitPrice *big.Int)
	OrderRemoved(side orderbook.Side, amount, unitPrice *big.Int)
	TokenBought(buyer common.Address, amount *big.Int)
}

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) RoundStarted(Kind, *big.Int)                     {}
func (NopSink) OrderAdded(orderbook.Side, *big.Int, *big.Int)   {}
func (NopSink) OrderRemoved(orderbook.Side, *big.Int, *big.Int) {}
func (NopSink) TokenBought(common.Address, *big.Int)            {}
