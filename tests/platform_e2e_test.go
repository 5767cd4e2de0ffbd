package tests

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantor-labs/mintround/params"
	"github.com/quantor-labs/mintround/pkg/ledger"
	"github.com/quantor-labs/mintround/pkg/platform"
	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
	"github.com/quantor-labs/mintround/pkg/platform/referral"
	"github.com/quantor-labs/mintround/pkg/storage"
	"github.com/quantor-labs/mintround/pkg/util"
)

var (
	platformAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice        = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob          = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	carol        = common.HexToAddress("0xCC00000000000000000000000000000000000000")
	dave         = common.HexToAddress("0xDD00000000000000000000000000000000000000")
)

type fixture struct {
	p     *platform.Platform
	bank  *ledger.Bank
	token *ledger.Token
	store *storage.Store
	clock *util.ManualClock
}

// newFixture wires a platform against a real Pebble store so the e2e flow
// exercises persistence the same way cmd/node does.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "platform.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	bank := ledger.NewBank()
	token := ledger.NewToken("Mintround Token", "MRT", platformAddr)
	p := platform.New(params.Default().Economics, platformAddr, bank, token, platform.Options{
		Clock: clock,
		Store: store,
	})
	return &fixture{p: p, bank: bank, token: token, store: store, clock: clock}
}

func num(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad numeric literal %q", s)
	}
	return v
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func checkBalance(t *testing.T, got, want *big.Int, what string) {
	t.Helper()
	if got.Cmp(want) != 0 {
		t.Fatalf("%s = %s, want %s", what, got, want)
	}
}

// TestFullPlatformLifecycle walks one complete cycle: registrations, the
// bootstrap sale with referral payouts, a trade round with an escrowed sell
// order and a partial-refund redemption, and the second sale round priced by
// the recurrence over the traded value.
func TestFullPlatformLifecycle(t *testing.T) {
	f := newFixture(t)
	day := 24 * time.Hour

	// Referral chain: carol <- bob <- alice.
	if err := f.p.Register(carol, referral.NoReferrer); err != nil {
		t.Fatalf("register carol: %v", err)
	}
	if err := f.p.Register(bob, carol); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if err := f.p.Register(alice, bob); err != nil {
		t.Fatalf("register alice: %v", err)
	}

	// Round 0: bootstrap sale at 0.00001 ether for 100,000 tokens.
	r0, err := f.p.StartSaleRound()
	if err != nil {
		t.Fatalf("start sale: %v", err)
	}
	checkBalance(t, r0.UnitPrice, num(t, "10000000000000"), "bootstrap price")
	checkBalance(t, r0.Supplied, num(t, "100000000000000000000000"), "bootstrap supply")

	if err := f.bank.Deposit(alice, eth(1)); err != nil {
		t.Fatal(err)
	}
	buy, err := f.p.BuyInSale(alice, eth(1))
	if err != nil {
		t.Fatalf("sale buy: %v", err)
	}
	checkBalance(t, buy.Tokens, num(t, "100000000000000000000000"), "tokens bought")
	checkBalance(t, buy.Refund, big.NewInt(0), "sale refund")

	// Referral payout on the sale path: 5% then 3% of the 1 ether cost.
	checkBalance(t, f.bank.BalanceOf(bob), num(t, "50000000000000000"), "bob sale commission")
	checkBalance(t, f.bank.BalanceOf(carol), num(t, "30000000000000000"), "carol sale commission")
	checkBalance(t, f.bank.BalanceOf(platformAddr), num(t, "920000000000000000"), "platform revenue")

	// Supply is exhausted, so the trade round opens without waiting.
	if _, err := f.p.StartTradeRound(); err != nil {
		t.Fatalf("start trade: %v", err)
	}

	// alice lists everything at double the sale price.
	f.token.Approve(alice, platformAddr, buy.Tokens)
	order, err := f.p.AddOrder(alice, orderbook.Sell, buy.Tokens, num(t, "20000000000000"))
	if err != nil {
		t.Fatalf("add order: %v", err)
	}
	checkBalance(t, f.token.BalanceOf(alice), big.NewInt(0), "escrowed everything")

	// dave redeems with 3 ether; the order only costs 2. dave is not
	// registered, so no trade commissions leave the seller's proceeds.
	if err := f.bank.Deposit(dave, eth(3)); err != nil {
		t.Fatal(err)
	}
	fill, err := f.p.RedeemOrder(dave, order.ID, eth(3))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	checkBalance(t, fill.Cost, eth(2), "fill cost")
	checkBalance(t, fill.Refund, eth(1), "fill refund")
	if !fill.Closed {
		t.Fatal("order should be fully filled")
	}
	checkBalance(t, f.token.BalanceOf(dave), num(t, "100000000000000000000000"), "dave tokens")
	checkBalance(t, f.bank.BalanceOf(dave), eth(1), "dave change")
	checkBalance(t, f.bank.BalanceOf(alice), eth(2), "alice proceeds")

	cur, ok := f.p.CurrentRound()
	if !ok {
		t.Fatal("no current round")
	}
	checkBalance(t, cur.TradedValue, eth(2), "traded value")

	// Round 2: the recurrence prices the next sale off the 2 ether traded.
	f.clock.Advance(day + time.Minute)
	r2, err := f.p.StartSaleRound()
	if err != nil {
		t.Fatalf("second sale: %v", err)
	}
	checkBalance(t, r2.UnitPrice, num(t, "14300000000000"), "second sale price")
	checkBalance(t, r2.Supplied, num(t, "139860139860139860139860"), "second sale supply")

	if len(f.p.Rounds()) != 3 {
		t.Fatalf("round history = %d, want 3", len(f.p.Rounds()))
	}
}

// TestRestartRecoversState persists a mid-trade-round platform, reopens the
// database, and verifies a rebuilt platform resumes with the same round,
// orders, and referral graph.
func TestRestartRecoversState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "platform.db")
	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))

	bank := ledger.NewBank()
	token := ledger.NewToken("Mintround Token", "MRT", platformAddr)

	store, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	p := platform.New(params.Default().Economics, platformAddr, bank, token, platform.Options{
		Clock: clock,
		Store: store,
	})

	if err := p.Register(bob, referral.NoReferrer); err != nil {
		t.Fatal(err)
	}
	if _, err := p.StartSaleRound(); err != nil {
		t.Fatal(err)
	}
	if err := bank.Deposit(alice, eth(1)); err != nil {
		t.Fatal(err)
	}
	buy, err := p.BuyInSale(alice, eth(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.StartTradeRound(); err != nil {
		t.Fatal(err)
	}
	token.Approve(alice, platformAddr, buy.Tokens)
	if _, err := p.AddOrder(alice, orderbook.Sell, buy.Tokens, num(t, "20000000000000")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Restart: same db file, fresh platform.
	store2, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := store2.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	rounds, err := store2.LoadRounds()
	if err != nil {
		t.Fatal(err)
	}
	orders, err := store2.LoadOrders()
	if err != nil {
		t.Fatal(err)
	}
	regs, err := store2.LoadRegistrations()
	if err != nil {
		t.Fatal(err)
	}

	p2 := platform.New(params.Default().Economics, platformAddr, bank, token, platform.Options{
		Clock: clock,
		Store: store2,
	})
	p2.Restore(rounds, orders, regs)

	cur, ok := p2.CurrentRound()
	if !ok || cur.Kind != platform.TradeRound {
		t.Fatalf("current round after restart: %+v ok=%v", cur, ok)
	}
	if !p2.Referrals().IsRegistered(bob) {
		t.Fatal("registration lost across restart")
	}
	active := p2.ActiveOrders()
	if len(active) != 1 {
		t.Fatalf("active orders after restart = %d, want 1", len(active))
	}

	// The restored order is still redeemable against the live escrow.
	if err := bank.Deposit(dave, eth(2)); err != nil {
		t.Fatal(err)
	}
	fill, err := p2.RedeemOrder(dave, active[0].ID, eth(2))
	if err != nil {
		t.Fatalf("redeem after restart: %v", err)
	}
	checkBalance(t, fill.Tokens, buy.Tokens, "redeemed after restart")
	checkBalance(t, token.BalanceOf(dave), buy.Tokens, "dave tokens after restart")
}
