package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is a Store backed by cockroachdb/pebble, the production
// backend (config backend "pebble").
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) a pebble database at path.
func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// ReadValue implements Store.
func (p *PebbleStore) ReadValue(key []byte) ([]byte, bool, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: pebble get: %w", err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	if cerr := closer.Close(); cerr != nil {
		return nil, false, fmt.Errorf("storage: pebble close iterator: %w", cerr)
	}
	return out, true, nil
}

// StoreValue implements Store.
func (p *PebbleStore) StoreValue(key []byte, value []byte) error {
	if err := p.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("storage: pebble set: %w", err)
	}
	return nil
}

// Close implements Store.
func (p *PebbleStore) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("storage: pebble close: %w", err)
	}
	return nil
}

// Open builds the configured Store backend ("pebble" or "memory") at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "pebble":
		return OpenPebbleStore(path)
	case "memory":
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
