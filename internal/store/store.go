package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/aqlens/airsync/internal/sync"
)

var bucketSnapshots = []byte("snapshots")

// ErrNotFound is returned when no envelope has been stored for a location.
var ErrNotFound = errors.New("no stored snapshot for location")

// Store persists the last-known update envelope per location, so a
// restarted dashboard can show stale-but-real values while the live paths
// come up.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing snapshot bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores env as the last-known envelope for its location, replacing
// any previous one.
func (s *Store) Put(env sync.UpdateEnvelope) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshaling envelope: %w", err)
		}
		return tx.Bucket(bucketSnapshots).Put([]byte(env.Location), data)
	})
}

// Get returns the last-known envelope for location, or ErrNotFound.
func (s *Store) Get(location string) (sync.UpdateEnvelope, error) {
	var env sync.UpdateEnvelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(location))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &env)
	})
	return env, err
}

// Locations lists every location with a stored envelope.
func (s *Store) Locations() ([]string, error) {
	var locations []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			locations = append(locations, string(k))
			return nil
		})
	})
	return locations, err
}
