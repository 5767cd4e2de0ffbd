// Package platform implements the two-phase issuance/exchange engine: the
// round state machine, the sale path, the order-book escrow paths, and the
// referral commission routing. All operations execute one at a time behind
// a single mutex and are atomic: either every transfer and state change of
// a call lands, or the call is rejected with no effect.
package platform

import (
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quantor-labs/mintround/params"
	"github.com/quantor-labs/mintround/pkg/ledger"
	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
	"github.com/quantor-labs/mintround/pkg/platform/pricing"
	"github.com/quantor-labs/mintround/pkg/platform/referral"
	"github.com/quantor-labs/mintround/pkg/util"
)

// Store persists platform state as it changes. Implementations must treat
// each call as a full upsert of the entity. A nil Store disables
// persistence.
type Store interface {
	SaveRegistration(referral.Registration) error
	SaveOrder(orderbook.Order) error
	SaveRound(Round) error
}

// Options carries the optional collaborators of a Platform.
type Options struct {
	Clock  util.Clock
	Logger *zap.SugaredLogger
	Events EventSink
	Store  Store
}

// Platform owns the round history, the order book, the referral ledger,
// and the platform's own accounts on the token and currency ledgers. It is
// the only writer of those accounts.
type Platform struct {
	mu sync.Mutex

	eco   params.Economics
	addr  common.Address
	clock util.Clock
	log   *zap.SugaredLogger
	sink  EventSink
	store Store

	bank      *ledger.Bank
	token     *ledger.Token
	referrals *referral.Ledger
	book      *orderbook.Book

	rounds []*Round // history; last element is the current round
}

// New creates a platform settling on the given ledgers. self must be the
// token's owner address so sale rounds can mint and burn supply.
func New(eco params.Economics, self common.Address, bank *ledger.Bank, token *ledger.Token, opts Options) *Platform {
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Events == nil {
		opts.Events = NopSink{}
	}
	return &Platform{
		eco:       eco,
		addr:      self,
		clock:     opts.Clock,
		log:       opts.Logger,
		sink:      opts.Events,
		store:     opts.Store,
		bank:      bank,
		token:     token,
		referrals: referral.NewLedger(),
		book:      orderbook.NewBook(),
	}
}

// Address returns the platform's own ledger address.
func (p *Platform) Address() common.Address { return p.addr }

// Referrals exposes read access to the referral ledger.
func (p *Platform) Referrals() *referral.Ledger { return p.referrals }

// ==============================
// Registration
// ==============================

// Register enrolls caller with the given referrer (referral.NoReferrer for
// none). Write-once per address.
func (p *Platform) Register(caller, referrer common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.referrals.Register(caller, referrer); err != nil {
		return err
	}
	p.persistRegistration(referral.Registration{
		Address:     caller,
		Referrer:    referrer,
		HasReferrer: referrer != referral.NoReferrer,
	})
	p.log.Infow("registered", "address", caller.Hex(), "referrer", referrer.Hex())
	return nil
}

// ==============================
// Round transitions
// ==============================

// StartSaleRound opens the next sale round. Legal when no round exists yet
// or when the current trade round's window has elapsed. Terms come from the
// pricing recurrence; the supply is minted into platform custody.
func (p *Platform) StartSaleRound() (Round, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if cur := p.current(); cur != nil {
		if cur.Kind == SaleRound {
			return Round{}, ErrSaleAlreadyStarted
		}
		if !cur.over(now) {
			return Round{}, ErrTradeStillOngoing
		}
	}

	var terms pricing.Terms
	if prevPrice := p.lastSalePrice(); prevPrice == nil {
		terms = pricing.Bootstrap(p.eco)
	} else {
		terms = pricing.NextTerms(p.eco, prevPrice, p.current().TradedValue)
	}

	if terms.Supply.Sign() > 0 {
		if err := p.token.Mint(p.addr, p.addr, terms.Supply); err != nil {
			return Round{}, err
		}
	}

	r := &Round{
		Index:     uint64(len(p.rounds)),
		Kind:      SaleRound,
		StartedAt: now,
		EndsAt:    now.Add(p.eco.RoundDuration),
		UnitPrice: terms.UnitPrice,
		Supplied:  new(big.Int).Set(terms.Supply),
		Remaining: new(big.Int).Set(terms.Supply),
	}
	p.rounds = append(p.rounds, r)
	p.persistRound(r)

	p.sink.RoundStarted(SaleRound, r.UnitPrice)
	p.log.Infow("round_started", "kind", "Sale", "index", r.Index,
		"unit_price_wei", r.UnitPrice.String(), "supply_units", r.Supplied.String())
	return r.clone(), nil
}

// StartTradeRound opens the next trade round once the current sale round is
// over (window elapsed or sold out). Unsold sale supply is burned, never
// rolled into the order book or the next round.
func (p *Platform) StartTradeRound() (Round, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.current()
	if cur == nil {
		return Round{}, ErrNoSaleRoundYet
	}
	if cur.Kind == TradeRound {
		return Round{}, ErrTradeAlreadyStarted
	}

	now := p.clock.Now()
	if !cur.over(now) && cur.Remaining.Sign() > 0 {
		return Round{}, ErrSaleStillOngoing
	}

	if cur.Remaining.Sign() > 0 {
		// Strand the leftover supply. The escrowed order tokens also sit on
		// the platform balance, so burn exactly the unsold amount.
		if err := p.token.Burn(p.addr, p.addr, cur.Remaining); err != nil {
			return Round{}, err
		}
		p.log.Infow("unsold_supply_burned", "round", cur.Index, "units", cur.Remaining.String())
	}

	r := &Round{
		Index:       uint64(len(p.rounds)),
		Kind:        TradeRound,
		StartedAt:   now,
		EndsAt:      now.Add(p.eco.RoundDuration),
		TradedValue: new(big.Int),
	}
	p.rounds = append(p.rounds, r)
	p.persistRound(r)

	p.sink.RoundStarted(TradeRound, new(big.Int))
	p.log.Infow("round_started", "kind", "Trade", "index", r.Index)
	return r.clone(), nil
}

// ==============================
// Sale path
// ==============================

// Purchase is the receipt of a sale-round buy.
type Purchase struct {
	Buyer  common.Address
	Tokens *big.Int // smallest units received
	Cost   *big.Int // wei actually charged
	Refund *big.Int // wei returned (sent - cost)
}

// BuyInSale sells round supply to buyer for up to sent wei at the round's
// unit price. Excess currency beyond the affordable whole-unit allotment —
// or beyond the round's remaining supply — stays with the buyer.
func (p *Platform) BuyInSale(buyer common.Address, sent *big.Int) (Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.current()
	now := p.clock.Now()
	if cur == nil || cur.Kind != SaleRound || cur.over(now) {
		return Purchase{}, ErrSaleRoundNotOpen
	}
	if sent == nil || sent.Sign() <= 0 {
		return Purchase{}, ErrZeroAmount
	}
	if p.bank.BalanceOf(buyer).Cmp(sent) < 0 {
		return Purchase{}, ledger.ErrInsufficientBalance
	}

	tokens := tokensFor(sent, cur.UnitPrice)
	if tokens.Cmp(cur.Remaining) > 0 {
		tokens.Set(cur.Remaining)
	}
	cost := costOf(tokens, cur.UnitPrice)

	batch := ledger.NewBatch(p.bank, p.token)
	if err := batch.Pay(buyer, p.addr, cost); err != nil {
		return Purchase{}, err
	}
	if _, err := p.stageSaleCommissions(batch, buyer, cost); err != nil {
		return Purchase{}, err
	}
	if err := batch.TransferToken(p.addr, buyer, tokens); err != nil {
		return Purchase{}, err
	}
	batch.Commit()

	cur.Remaining.Sub(cur.Remaining, tokens)
	p.persistRound(cur)

	p.sink.TokenBought(buyer, tokens)
	p.log.Infow("sale_buy", "buyer", buyer.Hex(), "tokens", tokens.String(),
		"cost_wei", cost.String(), "round", cur.Index)

	return Purchase{
		Buyer:  buyer,
		Tokens: tokens,
		Cost:   cost,
		Refund: new(big.Int).Sub(sent, cost),
	}, nil
}

// ==============================
// Order book paths
// ==============================

// AddOrder posts a maker order during an open trade round. A Sell order
// escrows amount tokens pulled from the seller (requires prior allowance to
// the platform address); a Buy order escrows the equivalent currency.
func (p *Platform) AddOrder(caller common.Address, side orderbook.Side, amount, unitPrice *big.Int) (orderbook.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpenTradeRound(); err != nil {
		return orderbook.Order{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return orderbook.Order{}, ErrZeroAmount
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return orderbook.Order{}, ErrZeroPrice
	}

	batch := ledger.NewBatch(p.bank, p.token)
	switch side {
	case orderbook.Sell:
		if err := batch.TransferTokenFrom(p.addr, caller, p.addr, amount); err != nil {
			return orderbook.Order{}, err
		}
	case orderbook.Buy:
		escrow := costOf(amount, unitPrice)
		if escrow.Sign() == 0 {
			return orderbook.Order{}, ErrZeroAmount
		}
		if err := batch.Pay(caller, p.addr, escrow); err != nil {
			return orderbook.Order{}, err
		}
	default:
		return orderbook.Order{}, ErrWrongOrderSide
	}
	batch.Commit()

	o := p.book.Add(caller, side, amount, unitPrice, p.clock.Now().UnixMilli())
	p.persistOrder(o)

	p.sink.OrderAdded(side, amount, unitPrice)
	p.log.Infow("order_added", "id", o.ID, "side", side.String(),
		"owner", caller.Hex(), "amount", amount.String(), "unit_price_wei", unitPrice.String())
	return o, nil
}

// RemoveOrder cancels caller's order and returns the full remaining escrow
// (tokens for a Sell, currency for a Buy). Cancellation is not gated on a
// round: escrow must always be reclaimable.
func (p *Platform) RemoveOrder(caller common.Address, id uint64) (orderbook.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, err := p.book.Get(id)
	if err != nil {
		return orderbook.Order{}, err
	}
	if o.Owner != caller {
		return orderbook.Order{}, orderbook.ErrNotOrderOwner
	}
	if !o.Active {
		return orderbook.Order{}, orderbook.ErrOrderInactive
	}

	batch := ledger.NewBatch(p.bank, p.token)
	switch o.Side {
	case orderbook.Sell:
		if err := batch.TransferToken(p.addr, caller, o.Remaining); err != nil {
			return orderbook.Order{}, err
		}
	case orderbook.Buy:
		if err := batch.Pay(p.addr, caller, costOf(o.Remaining, o.UnitPrice)); err != nil {
			return orderbook.Order{}, err
		}
	}
	batch.Commit()

	closed, err := p.book.Remove(caller, id)
	if err != nil {
		// Unreachable after the checks above; surface it rather than hide it.
		return orderbook.Order{}, err
	}
	p.persistOrder(mustGet(p.book, id))

	p.sink.OrderRemoved(closed.Side, closed.Remaining, closed.UnitPrice)
	p.log.Infow("order_removed", "id", id, "side", closed.Side.String(),
		"returned", closed.Remaining.String())
	return closed, nil
}

// Fill is the receipt of a fill against a specific order.
type Fill struct {
	OrderID uint64
	Taker   common.Address
	Tokens  *big.Int // smallest units moved
	Cost    *big.Int // wei moved
	Refund  *big.Int // wei returned to the taker (sell-order fills only)
	Closed  bool     // order reached zero remaining
}

// RedeemOrder fills a Sell order: buyer pays up to sent wei at the order's
// unit price, receives tokens from escrow, and the seller is credited the
// cost minus the trade commission schedule (keyed on the buyer's referral
// chain). The cost accumulates into the current trade round's traded value.
func (p *Platform) RedeemOrder(buyer common.Address, id uint64, sent *big.Int) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpenTradeRound(); err != nil {
		return Fill{}, err
	}
	if sent == nil || sent.Sign() <= 0 {
		return Fill{}, ErrZeroAmount
	}

	o, err := p.book.Get(id)
	if err != nil {
		return Fill{}, err
	}
	if !o.Active {
		return Fill{}, orderbook.ErrOrderInactive
	}
	if o.Side != orderbook.Sell {
		return Fill{}, ErrWrongOrderSide
	}
	if p.bank.BalanceOf(buyer).Cmp(sent) < 0 {
		return Fill{}, ledger.ErrInsufficientBalance
	}

	tokens := tokensFor(sent, o.UnitPrice)
	if tokens.Cmp(o.Remaining) > 0 {
		tokens.Set(o.Remaining)
	}
	cost := costOf(tokens, o.UnitPrice)

	batch := ledger.NewBatch(p.bank, p.token)
	if err := batch.Pay(buyer, p.addr, cost); err != nil {
		return Fill{}, err
	}
	commission, err := p.stageTradeCommissions(batch, buyer, cost)
	if err != nil {
		return Fill{}, err
	}
	if err := batch.Pay(p.addr, o.Owner, new(big.Int).Sub(cost, commission)); err != nil {
		return Fill{}, err
	}
	if err := batch.TransferToken(p.addr, buyer, tokens); err != nil {
		return Fill{}, err
	}
	batch.Commit()

	return p.settleFill(id, buyer, tokens, cost, new(big.Int).Sub(sent, cost))
}

// FillBuyOrder fills a Buy order: seller delivers up to tokenAmount tokens
// (allowance-gated pull straight to the order owner) and receives the
// escrowed currency minus the trade commission schedule, which is keyed on
// the order owner — the currency payer.
func (p *Platform) FillBuyOrder(seller common.Address, id uint64, tokenAmount *big.Int) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireOpenTradeRound(); err != nil {
		return Fill{}, err
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return Fill{}, ErrZeroAmount
	}

	o, err := p.book.Get(id)
	if err != nil {
		return Fill{}, err
	}
	if !o.Active {
		return Fill{}, orderbook.ErrOrderInactive
	}
	if o.Side != orderbook.Buy {
		return Fill{}, ErrWrongOrderSide
	}

	tokens := new(big.Int).Set(tokenAmount)
	if tokens.Cmp(o.Remaining) > 0 {
		tokens.Set(o.Remaining)
	}
	cost := costOf(tokens, o.UnitPrice)

	batch := ledger.NewBatch(p.bank, p.token)
	if err := batch.TransferTokenFrom(p.addr, seller, o.Owner, tokens); err != nil {
		return Fill{}, err
	}
	commission, err := p.stageTradeCommissions(batch, o.Owner, cost)
	if err != nil {
		return Fill{}, err
	}
	if err := batch.Pay(p.addr, seller, new(big.Int).Sub(cost, commission)); err != nil {
		return Fill{}, err
	}
	batch.Commit()

	p.sink.TokenBought(o.Owner, tokens)
	return p.settleFill(id, seller, tokens, cost, new(big.Int))
}

// settleFill applies the book/round bookkeeping shared by both fill paths.
// Transfers have already been committed.
func (p *Platform) settleFill(id uint64, taker common.Address, tokens, cost, refund *big.Int) (Fill, error) {
	after, err := p.book.ApplyFill(id, tokens)
	if err != nil {
		return Fill{}, err
	}

	cur := p.current()
	cur.TradedValue.Add(cur.TradedValue, cost)
	p.persistRound(cur)
	p.persistOrder(after)

	p.log.Infow("order_filled", "id", id, "taker", taker.Hex(),
		"tokens", tokens.String(), "cost_wei", cost.String(),
		"traded_value_wei", cur.TradedValue.String(), "closed", !after.Active)

	return Fill{
		OrderID: id,
		Taker:   taker,
		Tokens:  tokens,
		Cost:    cost,
		Refund:  refund,
		Closed:  !after.Active,
	}, nil
}

// ==============================
// Queries
// ==============================

// CurrentRound returns a copy of the current round, if any. The round may
// already be over its window; callers check EndsAt themselves.
func (p *Platform) CurrentRound() (Round, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.current()
	if cur == nil {
		return Round{}, false
	}
	return cur.clone(), true
}

// Rounds returns the full round history, oldest first.
func (p *Platform) Rounds() []Round {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Round, 0, len(p.rounds))
	for _, r := range p.rounds {
		out = append(out, r.clone())
	}
	return out
}

// Orders returns every order ever created, in creation order.
func (p *Platform) Orders() []orderbook.Order { return p.book.Orders() }

// ActiveOrders returns the open orders only.
func (p *Platform) ActiveOrders() []orderbook.Order { return p.book.ActiveOrders() }

// ==============================
// Restore
// ==============================

// Restore reloads persisted state into a freshly constructed platform.
// Must be called before any operation.
func (p *Platform) Restore(rounds []Round, orders []orderbook.Order, regs []referral.Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Index < rounds[j].Index })
	for i := range rounds {
		r := rounds[i].clone()
		p.rounds = append(p.rounds, &r)
	}
	for _, o := range orders {
		p.book.Restore(o)
	}
	for _, reg := range regs {
		p.referrals.Restore(reg)
	}
}

// ==============================
// Internal helpers
// ==============================

func (p *Platform) current() *Round {
	if len(p.rounds) == 0 {
		return nil
	}
	return p.rounds[len(p.rounds)-1]
}

// lastSalePrice returns the most recent sale round's unit price, or nil if
// no sale round has ever run.
func (p *Platform) lastSalePrice() *big.Int {
	for i := len(p.rounds) - 1; i >= 0; i-- {
		if p.rounds[i].Kind == SaleRound {
			return p.rounds[i].UnitPrice
		}
	}
	return nil
}

func (p *Platform) requireOpenTradeRound() error {
	cur := p.current()
	if cur == nil || cur.Kind != TradeRound || cur.over(p.clock.Now()) {
		return ErrTradeRoundNotOpen
	}
	return nil
}

func (p *Platform) persistRound(r *Round) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRound(r.clone()); err != nil {
		p.log.Warnw("persist_round_failed", "index", r.Index, "err", err)
	}
}

func (p *Platform) persistOrder(o orderbook.Order) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveOrder(o); err != nil {
		p.log.Warnw("persist_order_failed", "id", o.ID, "err", err)
	}
}

func (p *Platform) persistRegistration(r referral.Registration) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRegistration(r); err != nil {
		p.log.Warnw("persist_registration_failed", "address", r.Address.Hex(), "err", err)
	}
}

// tokensFor converts a wei budget into whole smallest-units at unitPrice,
// truncating toward zero.
func tokensFor(wei, unitPrice *big.Int) *big.Int {
	t := new(big.Int).Mul(wei, params.TokenUnit)
	return t.Quo(t, unitPrice)
}

// costOf prices a smallest-unit amount at unitPrice wei per whole token.
func costOf(tokens, unitPrice *big.Int) *big.Int {
	c := new(big.Int).Mul(tokens, unitPrice)
	return c.Quo(c, params.TokenUnit)
}

func mustGet(b *orderbook.Book, id uint64) orderbook.Order {
	o, _ := b.Get(id)
	return o
}
