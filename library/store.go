package library

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Keys of the whole-collection snapshots kept in the Store.
const (
	KeyBooks       = "books"
	KeyBorrows     = "borrowedBooks"
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
)

// Entry is one key/value pair of a multi-key write.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a durable string-keyed map of JSON documents. Every value is a
// complete snapshot; there are no partial writes.
type Store interface {
	// Get returns ok=false when the key has never been written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all entries or none of them.
	SetMany(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, Entry{Key: key, Value: value})
}

func (s *MemoryStore) SetMany(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.data[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// loadJSON decodes key into dst. It reports false when the key is absent.
func loadJSON(ctx context.Context, st Store, key string, dst interface{}) (bool, error) {
	raw, ok, err := st.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func encode(key string, v interface{}) (Entry, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "encode %s", key)
	}
	return Entry{Key: key, Value: raw}, nil
}
