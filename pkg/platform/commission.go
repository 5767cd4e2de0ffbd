package platform

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantor-labs/mintround/pkg/ledger"
	"github.com/quantor-labs/mintround/pkg/platform/referral"
)

// Commission payouts are always keyed on the currency payer's referral
// chain and staged into the operation's batch, so a payout failure aborts
// the whole buy/redeem. A missing ancestor at a level silently skips that
// level; the funds stay with whoever receives the remainder.

const bpsDenominator = 10000

// stageSaleCommissions stages the sale-path schedule (level 0 then level 1)
// out of the platform account and returns the total wei paid to referrers.
func (p *Platform) stageSaleCommissions(batch *ledger.Batch, payer common.Address, cost *big.Int) (*big.Int, error) {
	total := new(big.Int)
	for level, bps := range []int64{p.eco.SaleRefLevel0Bps, p.eco.SaleRefLevel1Bps} {
		paid, err := p.stageCommission(batch, payer, level, cost, bps)
		if err != nil {
			return nil, err
		}
		total.Add(total, paid)
	}
	return total, nil
}

// stageTradeCommissions stages the trade-path schedule: the same fraction
// to each of the two levels, deducted from the maker's proceeds.
func (p *Platform) stageTradeCommissions(batch *ledger.Batch, payer common.Address, cost *big.Int) (*big.Int, error) {
	total := new(big.Int)
	for level := 0; level <= referral.MaxLevel; level++ {
		paid, err := p.stageCommission(batch, payer, level, cost, p.eco.TradeRefBps)
		if err != nil {
			return nil, err
		}
		total.Add(total, paid)
	}
	return total, nil
}

func (p *Platform) stageCommission(batch *ledger.Batch, payer common.Address, level int, cost *big.Int, bps int64) (*big.Int, error) {
	ancestor, err := p.referrals.AncestorAt(payer, level)
	if err != nil {
		if errors.Is(err, referral.ErrNoSuchAncestor) {
			return new(big.Int), nil
		}
		return nil, err
	}

	share := new(big.Int).Mul(cost, big.NewInt(bps))
	share.Quo(share, big.NewInt(bpsDenominator))
	if err := batch.Pay(p.addr, ancestor, share); err != nil {
		return nil, err
	}
	return share, nil
}
