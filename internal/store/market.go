package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/agentmarket/agentmarket/internal/domain"
)

var marketKey = []byte("market/state")

// GetMarket reads the singleton market record. Returns
// domain.ErrMarketNotFound if it has not been seeded yet.
func (s *Store) GetMarket() (*domain.MarketState, error) {
	var m domain.MarketState
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, marketKey, &m)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get market: %w", err)
	}
	return &m, nil
}

// CreateMarket inserts the market record only if none exists.
// First writer wins: a losing concurrent creator gets
// domain.ErrMarketAlreadyExists and should re-read.
func (s *Store) CreateMarket(m *domain.MarketState) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(marketKey)
		if err == nil {
			return domain.ErrMarketAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, marketKey, m)
	})
	if errors.Is(err, domain.ErrMarketAlreadyExists) || errors.Is(err, badger.ErrConflict) {
		// A commit conflict here means another creator won the race.
		return domain.ErrMarketAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("store: create market: %w", err)
	}
	return nil
}

// PutMarket overwrites the market record unconditionally. The write
// transaction performs no reads, so Badger's conflict detection never
// fires: concurrent tick writers resolve last-writer-wins, which is the
// documented (and bounded) tick race.
func (s *Store) PutMarket(m *domain.MarketState) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, marketKey, m)
	})
	if err != nil {
		return fmt.Errorf("store: put market: %w", err)
	}
	return nil
}

// DeleteMarket removes the market record so the next read re-seeds it.
// Deleting an absent record is a no-op.
func (s *Store) DeleteMarket() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(marketKey)
	})
	if err != nil {
		return fmt.Errorf("store: delete market: %w", err)
	}
	return nil
}
