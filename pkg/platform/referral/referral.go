// Package referral maintains the registration/ancestry graph behind the
// two-level commission program. Registration is write-once; lookups never
// mutate.
package referral

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrSelfReferral      = errors.New("cannot register oneself as referrer")
	ErrUnknownReferrer   = errors.New("referrer is not registered")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNoSuchAncestor    = errors.New("no ancestor at requested level")
)

// NoReferrer is the sentinel for registering without a referrer.
var NoReferrer = common.Address{}

// MaxLevel is the deepest ancestor the commission schedule ever consults:
// level 0 is the direct referrer, level 1 the referrer's referrer. Deeper
// queries are rejected rather than silently returning a sentinel so missing
// ancestors stay observable.
const MaxLevel = 1

type account struct {
	referrer    common.Address
	hasReferrer bool
}

// Ledger is the referral registry. One entry per registered address,
// created on Register and never destroyed.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[common.Address]account
}

func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[common.Address]account)}
}

// Register records caller with the given referrer. The referrer must be
// NoReferrer or an already-registered address, and caller can register
// exactly once.
func (l *Ledger) Register(caller, referrer common.Address) error {
	if referrer == caller {
		return ErrSelfReferral
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[caller]; ok {
		return ErrAlreadyRegistered
	}
	if referrer != NoReferrer {
		if _, ok := l.accounts[referrer]; !ok {
			return ErrUnknownReferrer
		}
	}

	l.accounts[caller] = account{
		referrer:    referrer,
		hasReferrer: referrer != NoReferrer,
	}
	return nil
}

// AncestorAt resolves the referral chain: level 0 is addr's direct
// referrer, level 1 the referrer-of-referrer. Fails if addr is not
// registered, the chain is shorter than requested, or level exceeds
// MaxLevel.
func (l *Ledger) AncestorAt(addr common.Address, level int) (common.Address, error) {
	if level < 0 || level > MaxLevel {
		return common.Address{}, ErrNoSuchAncestor
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	cur := addr
	for hop := 0; hop <= level; hop++ {
		acc, ok := l.accounts[cur]
		if !ok || !acc.hasReferrer {
			return common.Address{}, ErrNoSuchAncestor
		}
		cur = acc.referrer
	}
	return cur, nil
}

func (l *Ledger) IsRegistered(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[addr]
	return ok
}

// ReferrerOf returns the stored direct referrer and whether one exists.
// Unregistered addresses report no referrer.
func (l *Ledger) ReferrerOf(addr common.Address) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok || !acc.hasReferrer {
		return common.Address{}, false
	}
	return acc.referrer, true
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// Registered returns all registered addresses (unordered). Used when
// persisting state.
func (l *Ledger) Registered() []Registration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Registration, 0, len(l.accounts))
	for addr, acc := range l.accounts {
		out = append(out, Registration{
			Address:     addr,
			Referrer:    acc.referrer,
			HasReferrer: acc.hasReferrer,
		})
	}
	return out
}

// Restore re-inserts a persisted registration without re-running the
// registration-time checks (the checks held when it was first written).
func (l *Ledger) Restore(r Registration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[r.Address] = account{referrer: r.Referrer, hasReferrer: r.HasReferrer}
}

// Registration is the persisted form of one ledger entry.
type Registration struct {
	Address     common.Address `json:"address"`
	Referrer    common.Address `json:"referrer"`
	HasReferrer bool           `json:"hasReferrer"`
}
