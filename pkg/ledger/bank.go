package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank is the native-currency transfer primitive consumed by the platform:
// a per-account wei balance registry. A recipient can be flagged as
// rejecting payment, which makes Pay fail the way a contract refusing a
// value transfer would; the platform must treat that as fatal for the
// whole enclosing operation.
type Bank struct {
	mu        sync.RWMutex
	balances  map[common.Address]*big.Int
	rejecting map[common.Address]bool
}

func NewBank() *Bank {
	return &Bank{
		balances:  make(map[common.Address]*big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

func (b *Bank) BalanceOf(addr common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Deposit credits currency out of thin air. Used by the dev faucet and by
// tests to fund participants.
func (b *Bank) Deposit(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return ErrPaymentRejected
	}
	b.credit(to, amount)
	return nil
}

// Pay moves amount from from to to. Fails on insufficient balance or if the
// recipient rejects the transfer; the caller must not have applied any
// partial state before calling (use a Batch for multi-leg settlements).
func (b *Bank) Pay(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return ErrPaymentRejected
	}
	if err := b.debit(from, amount); err != nil {
		return err
	}
	b.credit(to, amount)
	return nil
}

// SetRejecting marks an address as refusing (or accepting again) incoming
// payments.
func (b *Bank) SetRejecting(addr common.Address, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reject {
		b.rejecting[addr] = true
	} else {
		delete(b.rejecting, addr)
	}
}

func (b *Bank) isRejecting(addr common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rejecting[addr]
}

// credit assumes the lock is held.
func (b *Bank) credit(addr common.Address, amount *big.Int) {
	v, ok := b.balances[addr]
	if !ok {
		v = new(big.Int)
		b.balances[addr] = v
	}
	v.Add(v, amount)
}

// debit assumes the lock is held.
func (b *Bank) debit(addr common.Address, amount *big.Int) error {
	v, ok := b.balances[addr]
	if !ok || v.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	v.Sub(v, amount)
	return nil
}
