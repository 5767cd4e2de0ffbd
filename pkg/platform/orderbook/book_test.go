package orderbook

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestAddAssignsMonotonicIDs(t *testing.T) {
	b := NewBook()
	o0 := b.Add(alice, Sell, bi(100), bi(20), 1000)
	o1 := b.Add(bob, Buy, bi(50), bi(25), 1001)

	if o0.ID != 0 || o1.ID != 1 {
		t.Fatalf("ids = %d, %d, want 0, 1", o0.ID, o1.ID)
	}
	if !o0.Active || o0.Side != Sell || o0.Remaining.Cmp(bi(100)) != 0 {
		t.Fatalf("unexpected order state: %+v", o0)
	}
}

func TestSnapshotsAreDetached(t *testing.T) {
	b := NewBook()
	o := b.Add(alice, Sell, bi(100), bi(20), 0)

	// Mutating a returned snapshot must not touch the book.
	o.Remaining.SetInt64(1)
	got, err := b.Get(o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining.Cmp(bi(100)) != 0 {
		t.Fatalf("remaining = %s, want 100", got.Remaining)
	}
}

func TestRemove(t *testing.T) {
	b := NewBook()
	o := b.Add(alice, Sell, bi(100), bi(20), 0)

	tests := []struct {
		name   string
		caller common.Address
		id     uint64
		err    error
	}{
		{"unknown id", alice, 99, ErrOrderNotFound},
		{"not the owner", bob, o.ID, ErrNotOrderOwner},
		{"owner cancels", alice, o.ID, nil},
		{"already closed", alice, o.ID, ErrOrderInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := b.Remove(tt.caller, tt.id)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if err == nil && snap.Remaining.Cmp(bi(100)) != 0 {
				t.Fatalf("cancel snapshot remaining = %s, want 100", snap.Remaining)
			}
		})
	}

	got, _ := b.Get(o.ID)
	if got.Active || got.Remaining.Sign() != 0 {
		t.Fatalf("cancelled order not zeroed: %+v", got)
	}
}

func TestApplyFill(t *testing.T) {
	b := NewBook()
	o := b.Add(alice, Sell, bi(100), bi(20), 0)

	got, err := b.ApplyFill(o.ID, bi(30))
	if err != nil {
		t.Fatal(err)
	}
	if got.Remaining.Cmp(bi(70)) != 0 || !got.Active {
		t.Fatalf("after partial fill: %+v", got)
	}

	if _, err := b.ApplyFill(o.ID, bi(71)); err == nil {
		t.Fatal("overfill accepted")
	}

	got, err = b.ApplyFill(o.ID, bi(70))
	if err != nil {
		t.Fatal(err)
	}
	if got.Active || got.Remaining.Sign() != 0 {
		t.Fatalf("exhausted order still open: %+v", got)
	}
	if _, err := b.ApplyFill(o.ID, bi(1)); !errors.Is(err, ErrOrderInactive) {
		t.Fatalf("err = %v, want %v", err, ErrOrderInactive)
	}
}

func TestListings(t *testing.T) {
	b := NewBook()
	s := b.Add(alice, Sell, bi(100), bi(20), 0)
	b.Add(bob, Buy, bi(50), bi(25), 1)
	if _, err := b.Remove(alice, s.ID); err != nil {
		t.Fatal(err)
	}

	if got := len(b.Orders()); got != 2 {
		t.Fatalf("Orders len = %d, want 2", got)
	}
	active := b.ActiveOrders()
	if len(active) != 1 || active[0].Side != Buy {
		t.Fatalf("ActiveOrders = %+v", active)
	}
}

func TestRestoreKeepsIDSequenceAhead(t *testing.T) {
	b := NewBook()
	b.Restore(Order{
		ID:        7,
		Side:      Sell,
		Owner:     alice,
		Remaining: bi(10),
		UnitPrice: bi(20),
		Active:    true,
	})

	o := b.Add(bob, Buy, bi(5), bi(30), 0)
	if o.ID != 8 {
		t.Fatalf("next id = %d, want 8", o.ID)
	}
	got, err := b.Get(7)
	if err != nil || got.Owner != alice {
		t.Fatalf("restored order lookup: %+v, %v", got, err)
	}
}
