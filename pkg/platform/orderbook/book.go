// Package orderbook tracks the sell and buy orders posted during trade
// rounds. It is a claims index, not a matching engine: escrowed balances
// live on the platform's ledger accounts, each order records who can claim
// how much, and fills are buyer-initiated against a specific order id.
// There is no price-time priority because makers set their own price and
// takers choose the order they fill.
package orderbook

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderInactive = errors.New("order is closed")
	ErrNotOrderOwner = errors.New("only the order creator can cancel it")
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "unknown"
	}
}

// Order is one resting maker order. For a Sell order, Remaining is the
// escrowed token amount still for sale; for a Buy order it is the token
// amount still wanted, backed by currency escrow of Remaining×UnitPrice.
// Remaining only decreases (fills) or is zeroed (cancel, full fill).
type Order struct {
	ID        uint64         `json:"id"`
	Side      Side           `json:"side"`
	Owner     common.Address `json:"owner"`
	Remaining *big.Int       `json:"remaining"` // smallest token units
	UnitPrice *big.Int       `json:"unitPrice"` // wei per whole token
	Active    bool           `json:"active"`
	CreatedAt int64          `json:"createdAt"` // unix milliseconds
}

// Book holds all orders ever created, id-addressed. Ids are monotonic and
// never reused, including across restarts.
type Book struct {
	mu     sync.RWMutex
	orders map[uint64]*Order
	ids    []uint64 // insertion order, for stable listings
	nextID uint64
}

func NewBook() *Book {
	return &Book{orders: make(map[uint64]*Order)}
}

// Add creates an active order with a fresh id and returns a snapshot of it.
func (b *Book) Add(owner common.Address, side Side, amount, unitPrice *big.Int, nowMilli int64) Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := &Order{
		ID:        b.nextID,
		Side:      side,
		Owner:     owner,
		Remaining: new(big.Int).Set(amount),
		UnitPrice: new(big.Int).Set(unitPrice),
		Active:    true,
		CreatedAt: nowMilli,
	}
	b.nextID++
	b.orders[o.ID] = o
	b.ids = append(b.ids, o.ID)
	return o.snapshot()
}

// Get returns a snapshot of the order, active or not.
func (b *Book) Get(id uint64) (Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o.snapshot(), nil
}

// Remove cancels caller's order and returns its state at cancel time, with
// Remaining telling the caller how much escrow to hand back.
func (b *Book) Remove(caller common.Address, id uint64) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Owner != caller {
		return Order{}, ErrNotOrderOwner
	}
	if !o.Active {
		return Order{}, ErrOrderInactive
	}

	snap := o.snapshot()
	o.Remaining = new(big.Int)
	o.Active = false
	return snap, nil
}

// ApplyFill decrements an active order by tokens, closing it at zero.
// The caller has already settled the corresponding transfers; tokens must
// not exceed Remaining.
func (b *Book) ApplyFill(id uint64, tokens *big.Int) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if !o.Active {
		return Order{}, ErrOrderInactive
	}
	if tokens.Cmp(o.Remaining) > 0 {
		return Order{}, errors.New("fill exceeds remaining amount")
	}

	o.Remaining.Sub(o.Remaining, tokens)
	if o.Remaining.Sign() == 0 {
		o.Active = false
	}
	return o.snapshot(), nil
}

// Orders returns snapshots of every order in creation order.
func (b *Book) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Order, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.orders[id].snapshot())
	}
	return out
}

// ActiveOrders returns snapshots of the open orders only.
func (b *Book) ActiveOrders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Order, 0, len(b.ids))
	for _, id := range b.ids {
		if o := b.orders[id]; o.Active {
			out = append(out, o.snapshot())
		}
	}
	return out
}

// Restore re-inserts a persisted order, keeping the id sequence ahead of
// every restored id.
func (b *Book) Restore(o Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := o
	cp.Remaining = new(big.Int).Set(o.Remaining)
	cp.UnitPrice = new(big.Int).Set(o.UnitPrice)
	b.orders[cp.ID] = &cp
	b.ids = append(b.ids, cp.ID)
	if cp.ID >= b.nextID {
		b.nextID = cp.ID + 1
	}
}

func (o *Order) snapshot() Order {
	cp := *o
	cp.Remaining = new(big.Int).Set(o.Remaining)
	cp.UnitPrice = new(big.Int).Set(o.UnitPrice)
	return cp
}
