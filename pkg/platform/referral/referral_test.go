package referral

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	carol = common.HexToAddress("0xCC00000000000000000000000000000000000000")
	dave  = common.HexToAddress("0xDD00000000000000000000000000000000000000")
)

func TestRegisterGuards(t *testing.T) {
	l := NewLedger()

	if err := l.Register(alice, alice); !errors.Is(err, ErrSelfReferral) {
		t.Errorf("self referral: got %v, want ErrSelfReferral", err)
	}
	if err := l.Register(alice, bob); !errors.Is(err, ErrUnknownReferrer) {
		t.Errorf("unknown referrer: got %v, want ErrUnknownReferrer", err)
	}

	if err := l.Register(alice, NoReferrer); err != nil {
		t.Fatalf("root registration failed: %v", err)
	}
	if err := l.Register(alice, NoReferrer); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("double registration: got %v, want ErrAlreadyRegistered", err)
	}
	// Registration is write-once even with a different referrer.
	if err := l.Register(alice, bob); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("re-register with referrer: got %v, want ErrAlreadyRegistered", err)
	}

	if !l.IsRegistered(alice) {
		t.Error("alice should be registered")
	}
	if l.IsRegistered(bob) {
		t.Error("bob should not be registered")
	}
}

func TestAncestorChain(t *testing.T) {
	l := NewLedger()
	if err := l.Register(alice, NoReferrer); err != nil {
		t.Fatal(err)
	}
	if err := l.Register(bob, alice); err != nil {
		t.Fatal(err)
	}
	if err := l.Register(carol, bob); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		addr    common.Address
		level   int
		want    common.Address
		wantErr error
	}{
		{"carol level 0 is bob", carol, 0, bob, nil},
		{"carol level 1 is alice", carol, 1, alice, nil},
		{"bob level 0 is alice", bob, 0, alice, nil},
		{"bob has no level 1", bob, 1, common.Address{}, ErrNoSuchAncestor},
		{"alice has no referrer", alice, 0, common.Address{}, ErrNoSuchAncestor},
		{"unregistered address", dave, 0, common.Address{}, ErrNoSuchAncestor},
		{"beyond max level", carol, 2, common.Address{}, ErrNoSuchAncestor},
		{"negative level", carol, -1, common.Address{}, ErrNoSuchAncestor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.AncestorAt(tt.addr, tt.level)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AncestorAt() err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("AncestorAt() = %s, want %s", got.Hex(), tt.want.Hex())
			}
		})
	}
}

func TestReferrerOf(t *testing.T) {
	l := NewLedger()
	l.Register(alice, NoReferrer)
	l.Register(bob, alice)

	if ref, ok := l.ReferrerOf(bob); !ok || ref != alice {
		t.Errorf("ReferrerOf(bob) = %s, %v; want alice, true", ref.Hex(), ok)
	}
	if _, ok := l.ReferrerOf(alice); ok {
		t.Error("alice has no referrer")
	}
	if _, ok := l.ReferrerOf(carol); ok {
		t.Error("unregistered address has no referrer")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Register(alice, NoReferrer)
	l.Register(bob, alice)

	restored := NewLedger()
	for _, reg := range l.Registered() {
		restored.Restore(reg)
	}

	if restored.Count() != 2 {
		t.Fatalf("count = %d, want 2", restored.Count())
	}
	if ref, ok := restored.ReferrerOf(bob); !ok || ref != alice {
		t.Errorf("restored ReferrerOf(bob) = %s, %v; want alice, true", ref.Hex(), ok)
	}
}
