package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"friend_reminder_bot/internal/domain/storage"
)

// document is one JSON value stored under a single key. Writes go through
// update, which holds the key's lock across the read-modify-write.
type document[T any] struct {
	kv    storage.KV
	key   string
	lock  *sync.Mutex
	empty func() *T
}

func (d *document[T]) load(ctx context.Context) (*T, error) {
	raw, err := d.kv.Get(ctx, d.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return d.empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.key, err)
	}

	v := d.empty()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.key, err)
	}
	return v, nil
}

func (d *document[T]) get(ctx context.Context) (*T, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.load(ctx)
}

func (d *document[T]) update(ctx context.Context, fn func(*T) error) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	v, err := d.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.key, err)
	}
	if err := d.kv.Set(ctx, d.key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.key, err)
	}
	return nil
}

func (d *document[T]) remove(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.kv.Delete(ctx, d.key)
}
