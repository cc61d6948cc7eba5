package kv

import (
	"context"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
)

const addressedPrefix = "addressed:"

// BadgerProgress keeps the addressed-node checkpoint in badger, one key per node.
type BadgerProgress struct {
	kv *KVDB
}

func NewBadgerProgress(kv *KVDB) *BadgerProgress {
	return &BadgerProgress{kv: kv}
}

func addressedKey(nodeID int64) []byte {
	return []byte(addressedPrefix + strconv.FormatInt(nodeID, 10))
}

func (p *BadgerProgress) MarkAddressed(ctx context.Context, nodeID int64) error {
	err := p.kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(addressedKey(nodeID), []byte{1})
	})
	if err != nil {
		return errs.Transient(err, "mark %d addressed", nodeID)
	}
	return nil
}

func (p *BadgerProgress) IsAddressed(ctx context.Context, nodeID int64) (bool, error) {
	_, err := p.kv.get(addressedKey(nodeID))
	switch {
	case err == nil:
		return true, nil
	case err == ErrNotFound:
		return false, nil
	default:
		return false, errs.Transient(err, "read addressed %d", nodeID)
	}
}

func (p *BadgerProgress) Addressed(ctx context.Context) (datastructure.IntersectionSet, error) {
	set := datastructure.NewIntersectionSet()
	prefix := []byte(addressedPrefix)
	err := p.kv.keysWithPrefix(ctx, prefix, func(key []byte) error {
		id, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInternal, err, "bad checkpoint key %q", key)
		}
		set[id] = struct{}{}
		return nil
	})
	return set, err
}

func (p *BadgerProgress) Clear(ctx context.Context) error {
	return p.kv.dropPrefix([]byte(addressedPrefix))
}
