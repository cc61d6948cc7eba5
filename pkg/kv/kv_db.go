// Package kv holds the badger-backed stores: the discovery checkpoint and the
// exported routing graph.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/lintang-b-s/roadgraph/pkg/logging"
)

var (
	ErrNotFound = errors.New("key not found")
)

type KVDB struct {
	db *badger.DB
}

func NewKVDB(db *badger.DB) *KVDB {
	return &KVDB{db}
}

// OpenKVDB opens the database at dir, or an in-memory one when dir is empty.
func OpenKVDB(dir string) (*KVDB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return NewKVDB(db), nil
}

type batchData struct {
	key   []byte
	value []byte
}

func (k *KVDB) saveBatch(ctx context.Context, batchData []batchData) error {
	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, data := range batchData {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := batch.Set(data.key, data.value); err != nil {
			return err
		}
	}

	if err := batch.Flush(); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("kv batch saved", "keys", len(batchData))
	return nil
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

// keysWithPrefix calls fn with every key under prefix, without loading values.
func (k *KVDB) keysWithPrefix(ctx context.Context, prefix []byte, fn func(key []byte) error) error {
	return k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (k *KVDB) dropPrefix(prefix ...[]byte) error {
	return k.db.DropPrefix(prefix...)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
