package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "digitizer"

// BoltKV implements the KV interface using BoltDB
type BoltKV struct {
	db *bbolt.DB
}

// NewBoltKV opens (or creates) the database at path
func NewBoltKV(path string) (*BoltKV, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltKV{db: db}, nil
}

// Get retrieves the value for key
func (b *BoltKV) Get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// v is only valid for the life of the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores data under key
func (b *BoltKV) Put(key string, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// Close closes the database connection
func (b *BoltKV) Close() error {
	return b.db.Close()
}
