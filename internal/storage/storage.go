// Package storage is the durability layer: an opaque key/value Backend
// contract with memory, sqlite, and badger variants, and a Gateway with the
// domain helpers (session save/load, timestamped backups, archive-on-end,
// age-based backup cleanup) built on top of it.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when the key has no stored value.
var ErrNotFound = errors.New("not found")

// Backend is the capability set every storage variant implements. Values are
// opaque byte strings; the Gateway round-trips everything through JSON so
// stored values never alias caller-held state.
type Backend interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Values(ctx context.Context, prefix string) ([][]byte, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
	Cleanup() error
}

// Open selects a backend variant by name. The variant comes from explicit
// startup configuration, never environment sniffing.
func Open(ctx context.Context, variant, dataDir string) (Backend, error) {
	var b Backend
	switch variant {
	case "memory":
		b = NewMemory()
	case "sqlite":
		b = NewSQLite(dataDir)
	case "badger":
		b = NewBadger(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", variant)
	}
	if err := b.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", variant, err)
	}
	return b, nil
}
