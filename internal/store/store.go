// Package store persists the singleton market record and the agent
// ledgers in a Badger key-value database. All multi-step operations run
// inside Badger transactions so precondition checks and mutations
// commit together or not at all.
package store

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Store wraps a Badger database holding two logical collections:
// the market singleton under marketKey and one record per agent under
// agent/<id>, with an apikey/<key> index for bearer-token lookup.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database in the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral database backed by memory only.
// Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// getJSON reads and decodes the record at key into v. Returns
// badger.ErrKeyNotFound untouched so callers can map it to a domain
// sentinel.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(b []byte) error {
		return json.Unmarshal(b, v)
	})
}

// setJSON encodes v and writes it at key within txn.
func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	return txn.Set(key, b)
}
