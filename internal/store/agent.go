package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/agentmarket/agentmarket/internal/domain"
)

const agentPrefix = "agent/"

// updateRetries bounds how often a conditional agent update is retried
// after a Badger commit conflict before giving up. Every conflict means
// some other writer committed, so a retry budget this size is only
// exhausted under pathological contention on a single agent.
const updateRetries = 64

func agentKey(id string) []byte {
	return []byte(agentPrefix + id)
}

func apiKeyKey(key string) []byte {
	return []byte("apikey/" + key)
}

// CreateAgent inserts a new agent record and its API-key index entry.
// Returns domain.ErrAgentAlreadyExists if the ID or API key is taken.
func (s *Store) CreateAgent(a *domain.Agent) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(agentKey(a.ID)); err == nil {
			return domain.ErrAgentAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := txn.Get(apiKeyKey(a.APIKey)); err == nil {
			return domain.ErrAgentAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, agentKey(a.ID), a); err != nil {
			return err
		}
		return txn.Set(apiKeyKey(a.APIKey), []byte(a.ID))
	})
	if errors.Is(err, domain.ErrAgentAlreadyExists) {
		return domain.ErrAgentAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("store: create agent: %w", err)
	}
	return nil
}

// GetAgent reads an agent by ID.
func (s *Store) GetAgent(id string) (*domain.Agent, error) {
	var a domain.Agent
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, agentKey(id), &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}
	return &a, nil
}

// GetAgentByAPIKey resolves a bearer token to its agent via the
// apikey index. Unknown tokens map to domain.ErrAgentNotFound.
func (s *Store) GetAgentByAPIKey(key string) (*domain.Agent, error) {
	var a domain.Agent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(apiKeyKey(key))
		if err != nil {
			return err
		}
		var id []byte
		if id, err = item.ValueCopy(nil); err != nil {
			return err
		}
		return getJSON(txn, agentKey(string(id)), &a)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent by api key: %w", err)
	}
	return &a, nil
}

// ListAgents returns every agent ordered by join time (ties broken by
// ID so the order is stable).
func (s *Store) ListAgents() ([]*domain.Agent, error) {
	var agents []*domain.Agent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(agentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var a domain.Agent
			err := it.Item().Value(func(b []byte) error {
				return json.Unmarshal(b, &a)
			})
			if err != nil {
				return err
			}
			agents = append(agents, &a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].JoinedAt.Equal(agents[j].JoinedAt) {
			return agents[i].JoinedAt.Before(agents[j].JoinedAt)
		}
		return agents[i].ID < agents[j].ID
	})
	return agents, nil
}

// UpdateAgent applies mutate to the agent's freshly read record inside
// a single transaction. The callback re-asserts its preconditions
// against that record and aborts the transaction by returning an error;
// no partial mutation is ever visible. Commit conflicts from concurrent
// updates are retried so the predicate is always evaluated against
// committed state. Returns the post-commit record.
func (s *Store) UpdateAgent(id string, mutate func(*domain.Agent) error) (*domain.Agent, error) {
	for i := 0; i < updateRetries; i++ {
		var updated domain.Agent
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := getJSON(txn, agentKey(id), &updated); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return domain.ErrAgentNotFound
				}
				return err
			}
			if err := mutate(&updated); err != nil {
				return err
			}
			return setJSON(txn, agentKey(id), &updated)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("store: update agent %s: %w", id, badger.ErrConflict)
}
