package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// Badger is an embedded LSM-tree backend for events where write volume makes
// sqlite's single file a bottleneck.
type Badger struct {
	dir string
	db  *badger.DB
}

func NewBadger(dir string) *Badger {
	return &Badger{dir: dir}
}

func (b *Badger) Init(context.Context) error {
	opts := badger.DefaultOptions(filepath.Join(b.dir, "badger"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger: %w", err)
	}
	b.db = db
	return nil
}

func (b *Badger) Save(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Load(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *Badger) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Badger) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *Badger) Values(_ context.Context, prefix string) ([][]byte, error) {
	var values [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	return values, err
}

func (b *Badger) Clear(context.Context) error {
	return b.db.DropAll()
}

func (b *Badger) Size(ctx context.Context) (int, error) {
	keys, err := b.Keys(ctx, "")
	return len(keys), err
}

func (b *Badger) Cleanup() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
