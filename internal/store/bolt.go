package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// defaultSessionKey is used when no account name is given; the tool drives
// a single user account per database.
const defaultSessionKey = "default"

// BoltStore persists MTProto session credentials in a local bbolt file and
// implements gotd's session.Storage. Check-in outcomes are never written
// here; the database holds login state only.
type BoltStore struct {
	db  *bolt.DB
	key []byte
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}

	return &BoltStore{db: db, key: []byte(defaultSessionKey)}, nil
}

// LoadSession returns the stored session blob, or session.ErrNotFound when
// the account has never logged in.
func (s *BoltStore) LoadSession(_ context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get(s.key)
		if v == nil {
			return nil
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *BoltStore) StoreSession(_ context.Context, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put(s.key, data)
	})
}

// HasSession reports whether a session blob exists without decoding it.
func (s *BoltStore) HasSession() (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(sessionsBucket).Get(s.key) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
