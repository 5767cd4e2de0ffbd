// Package storage persists the platform's durable state — registrations,
// orders, and round history — in a Pebble database with JSON values.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/quantor-labs/mintround/pkg/platform"
	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
	"github.com/quantor-labs/mintround/pkg/platform/referral"
)

// Store is the canonical platform.Store implementation. Every Save is an
// upsert of the full entity; loads happen once at startup.
type Store struct {
	db *pebble.DB
}

func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SaveRegistration(r referral.Registration) error {
	return s.put(registrationKey(r.Address), r)
}

func (s *Store) SaveOrder(o orderbook.Order) error {
	return s.put(orderKey(o.ID), o)
}

func (s *Store) SaveRound(r platform.Round) error {
	return s.put(roundKey(r.Index), r)
}

// LoadRegistrations returns every persisted registration.
func (s *Store) LoadRegistrations() ([]referral.Registration, error) {
	var out []referral.Registration
	err := s.scan([]byte(prefixRegistration), func(val []byte) error {
		var r referral.Registration
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// LoadOrders returns every persisted order in id order.
func (s *Store) LoadOrders() ([]orderbook.Order, error) {
	var out []orderbook.Order
	err := s.scan([]byte(prefixOrder), func(val []byte) error {
		var o orderbook.Order
		if err := json.Unmarshal(val, &o); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, err
}

// LoadRounds returns the persisted round history in index order.
func (s *Store) LoadRounds() ([]platform.Round, error) {
	var out []platform.Round
	err := s.scan([]byte(prefixRound), func(val []byte) error {
		var r platform.Round
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) scan(prefix []byte, fn func(val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
	}
	return iter.Error()
}
