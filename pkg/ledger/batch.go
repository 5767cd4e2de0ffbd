package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Batch stages native-currency and token movements against a Bank and a
// Token and applies them in a single step. Every multi-leg settlement in
// the platform (purchase + refund + referral payouts, escrow pull, fill
// payout) is built on one Batch: if any leg fails validation while being
// staged, the batch is simply discarded and no balance has changed.
//
// Staging validates each debit against the live balance adjusted by the
// deltas already staged, so a batch can never commit into a negative
// balance. Commit itself cannot fail. This relies on the platform being
// the only writer of the ledgers it settles on (one operation at a time),
// which the round engine enforces with its own mutex.
type Batch struct {
	bank  *Bank
	token *Token

	bankDelta  map[common.Address]*big.Int
	tokenDelta map[common.Address]*big.Int
	spent      map[allowanceKey]*big.Int // allowance consumed by this batch
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

func NewBatch(bank *Bank, token *Token) *Batch {
	return &Batch{
		bank:       bank,
		token:      token,
		bankDelta:  make(map[common.Address]*big.Int),
		tokenDelta: make(map[common.Address]*big.Int),
		spent:      make(map[allowanceKey]*big.Int),
	}
}

// Pay stages a native-currency transfer. A zero amount is a no-op so
// callers can stage computed payouts (refunds, commissions) unconditionally.
func (b *Batch) Pay(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if b.bank.isRejecting(to) {
		return ErrPaymentRejected
	}
	if b.effectiveBank(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	addDelta(b.bankDelta, from, neg(amount))
	addDelta(b.bankDelta, to, amount)
	return nil
}

// TransferToken stages a token transfer out of from's own balance.
func (b *Batch) TransferToken(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if b.effectiveToken(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	addDelta(b.tokenDelta, from, neg(amount))
	addDelta(b.tokenDelta, to, amount)
	return nil
}

// TransferTokenFrom stages an allowance-gated token pull, the way escrow
// takes custody of a seller's tokens.
func (b *Batch) TransferTokenFrom(spender, owner, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	key := allowanceKey{owner: owner, spender: spender}
	remaining := new(big.Int).Sub(b.token.Allowance(owner, spender), b.spentOn(key))
	if remaining.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if b.effectiveToken(owner).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	addDelta(b.tokenDelta, owner, neg(amount))
	addDelta(b.tokenDelta, to, amount)
	addDelta(b.spent, key, amount)
	return nil
}

// Commit applies every staged movement. Must be called at most once.
func (b *Batch) Commit() {
	b.bank.mu.Lock()
	for addr, d := range b.bankDelta {
		if d.Sign() == 0 {
			continue
		}
		v, ok := b.bank.balances[addr]
		if !ok {
			v = new(big.Int)
			b.bank.balances[addr] = v
		}
		v.Add(v, d)
	}
	b.bank.mu.Unlock()

	b.token.mu.Lock()
	for addr, d := range b.tokenDelta {
		if d.Sign() == 0 {
			continue
		}
		v, ok := b.token.balances[addr]
		if !ok {
			v = new(big.Int)
			b.token.balances[addr] = v
		}
		v.Add(v, d)
	}
	for key, s := range b.spent {
		if a, ok := b.token.allowances[key.owner][key.spender]; ok {
			a.Sub(a, s)
		}
	}
	b.token.mu.Unlock()
}

func (b *Batch) effectiveBank(addr common.Address) *big.Int {
	v := b.bank.BalanceOf(addr)
	if d, ok := b.bankDelta[addr]; ok {
		v.Add(v, d)
	}
	return v
}

func (b *Batch) effectiveToken(addr common.Address) *big.Int {
	v := b.token.BalanceOf(addr)
	if d, ok := b.tokenDelta[addr]; ok {
		v.Add(v, d)
	}
	return v
}

func (b *Batch) spentOn(key allowanceKey) *big.Int {
	if s, ok := b.spent[key]; ok {
		return s
	}
	return new(big.Int)
}

func addDelta[K comparable](m map[K]*big.Int, k K, d *big.Int) {
	v, ok := m[k]
	if !ok {
		v = new(big.Int)
		m[k] = v
	}
	v.Add(v, d)
}

func neg(v *big.Int) *big.Int { return new(big.Int).Neg(v) }
