package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an in-memory fungible-asset ledger: a per-account balance
// registry with owner-gated mint/burn and an allowance-gated
// transfer-on-behalf primitive. Amounts are in smallest units (18 decimals).
//
// Thread-safe for concurrent reads; mutations are serialized by the
// internal mutex. Multi-step settlements should go through a Batch instead
// of calling Transfer repeatedly.
type Token struct {
	mu          sync.RWMutex
	name        string
	symbol      string
	owner       common.Address
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int // owner -> spender -> remaining
}

func NewToken(name, symbol string, owner common.Address) *Token {
	return &Token{
		name:        name,
		symbol:      symbol,
		owner:       owner,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Name() string   { return t.name }
func (t *Token) Symbol() string { return t.symbol }

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns a copy of the account's balance (zero if unknown).
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint creates amount units in to's balance. Owner-gated.
func (t *Token) Mint(caller, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrNotTokenOwner
	}
	t.credit(to, amount)
	t.totalSupply.Add(t.totalSupply, amount)
	return nil
}

// Burn destroys amount units from from's balance. Owner-gated.
func (t *Token) Burn(caller, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrNotTokenOwner
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.totalSupply.Sub(t.totalSupply, amount)
	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

// Approve sets (not increments) spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// TransferFrom moves amount from owner to to, spending spender's allowance.
func (t *Token) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.spendAllowance(owner, spender, amount); err != nil {
		return err
	}
	if err := t.debit(owner, amount); err != nil {
		// Restore the allowance consumed above.
		t.allowances[owner][spender].Add(t.allowances[owner][spender], amount)
		return err
	}
	t.credit(to, amount)
	return nil
}

// credit assumes the lock is held.
func (t *Token) credit(addr common.Address, amount *big.Int) {
	b, ok := t.balances[addr]
	if !ok {
		b = new(big.Int)
		t.balances[addr] = b
	}
	b.Add(b, amount)
}

// debit assumes the lock is held.
func (t *Token) debit(addr common.Address, amount *big.Int) error {
	b, ok := t.balances[addr]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}

// spendAllowance assumes the lock is held.
func (t *Token) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	m, ok := t.allowances[owner]
	if !ok {
		return ErrInsufficientAllowance
	}
	a, ok := m[spender]
	if !ok || a.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	a.Sub(a, amount)
	return nil
}
