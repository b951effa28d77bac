package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "session:"

// BadgerStore persists sessions in a BadgerDB directory. Entries expire after
// the configured TTL unless refreshed by Save.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// TTL bounds how long an idle session survives. Zero keeps sessions
	// until they are removed.
	TTL time.Duration
}

type record struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	LastSeen time.Time `json:"last_seen"`
}

// OpenBadger opens (creating if needed) the session database.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store at %s: %w", cfg.Dir, err)
	}
	return &BadgerStore{db: db, ttl: cfg.TTL}, nil
}

func (b *BadgerStore) Save(s *ClientSession) error {
	data, err := json.Marshal(record{ID: s.ID, Created: s.Created, LastSeen: s.LastSeen()})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+s.ID), data)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (b *BadgerStore) Load(id string) (*ClientSession, bool, error) {
	var rec record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	s := &ClientSession{ID: rec.ID, Created: rec.Created}
	s.Touch(rec.LastSeen)
	return s, true, nil
}

func (b *BadgerStore) Delete(id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// Count returns the number of live persisted sessions.
func (b *BadgerStore) Count() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
