package pricing

import (
	"math/big"
	"testing"

	"github.com/quantor-labs/mintround/params"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad literal " + s)
	}
	return v
}

func TestBootstrap(t *testing.T) {
	eco := params.Default().Economics
	terms := Bootstrap(eco)

	if terms.UnitPrice.Cmp(bi("10000000000000")) != 0 {
		t.Errorf("bootstrap price = %s, want 0.00001 ether", terms.UnitPrice)
	}
	if terms.Supply.Cmp(bi("100000000000000000000000")) != 0 {
		t.Errorf("bootstrap supply = %s, want 100000 tokens", terms.Supply)
	}

	// Bootstrap must hand out copies, not the config's own big.Ints.
	terms.UnitPrice.SetInt64(0)
	if eco.InitialPrice.Sign() == 0 {
		t.Error("Bootstrap aliased the config price")
	}
}

// The price compounds geometrically (×1.03) plus an additive floor so it
// never stalls near zero: 0.00001 → 0.0000143 → 0.000018729 ether.
func TestPriceRecurrence(t *testing.T) {
	eco := params.Default().Economics

	tests := []struct {
		name      string
		prevPrice string
		wantPrice string
	}{
		{"round 1 to 2", "10000000000000", "14300000000000"},
		{"round 2 to 3", "14300000000000", "18729000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := NextTerms(eco, bi(tt.prevPrice), big.NewInt(0))
			if terms.UnitPrice.Cmp(bi(tt.wantPrice)) != 0 {
				t.Errorf("price = %s, want %s", terms.UnitPrice, tt.wantPrice)
			}
		})
	}
}

func TestSupplyRecurrence(t *testing.T) {
	eco := params.Default().Economics

	tests := []struct {
		name        string
		prevPrice   string
		tradedValue string
		wantSupply  string
	}{
		// 2 ether traded at the round-2 price of 0.0000143 ether/token.
		{"two ether traded", "10000000000000", "2000000000000000000", "139860139860139860139860"},
		{"nothing traded", "10000000000000", "0", "0"},
		// Truncation toward zero at the smallest unit.
		{"sub-unit value", "10000000000000", "14299", "999930069"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := NextTerms(eco, bi(tt.prevPrice), bi(tt.tradedValue))
			if terms.Supply.Cmp(bi(tt.wantSupply)) != 0 {
				t.Errorf("supply = %s, want %s", terms.Supply, tt.wantSupply)
			}
		})
	}
}

func TestRecurrenceIsPure(t *testing.T) {
	eco := params.Default().Economics
	prev := bi("10000000000000")
	traded := bi("2000000000000000000")
	NextTerms(eco, prev, traded)

	if prev.Cmp(bi("10000000000000")) != 0 {
		t.Error("NextTerms mutated prevPrice")
	}
	if traded.Cmp(bi("2000000000000000000")) != 0 {
		t.Error("NextTerms mutated tradedValue")
	}
}
