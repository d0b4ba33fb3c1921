// Package store persists per-device connection parameters in a bbolt
// database, keyed by registry name. labctl falls back to it when a
// subcommand is invoked without explicit address flags.
package store

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"labdevices/pkg/registry"
)

const bucket = "labdevices"

// Store is a map from device name to connection parameters, backed by a
// single bbolt bucket with JSON values.
type Store struct {
	db *bolt.DB
}

// NewStore wraps an open database. On first use the bucket is created
// and seeded with the example parameters of every registered device, so
// a fresh deployment starts from the family defaults.
func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) setDefaults() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		for _, def := range registry.Match("") {
			if b.Get([]byte(def.Name)) != nil {
				continue
			}
			log.Infof("Seeding default parameters for %s", def.Name)
			value, _ := json.Marshal(def.Example)
			if err := b.Put([]byte(def.Name), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetParams saves the connection parameters for a device name.
func (s *Store) SetParams(name string, p registry.Params) error {
	if name == "" {
		return fmt.Errorf("device name cannot be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(p)
		return b.Put([]byte(name), value)
	})
}

// GetParams retrieves the saved parameters for a device name.
func (s *Store) GetParams(name string) (registry.Params, error) {
	var p registry.Params

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(name))
		if value == nil {
			return fmt.Errorf("no saved parameters for %s", name)
		}

		return json.Unmarshal(value, &p)
	})

	return p, err
}

// Devices lists every device name with saved parameters, in key order.
func (s *Store) Devices() ([]string, error) {
	var names []string

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})

	return names, err
}
