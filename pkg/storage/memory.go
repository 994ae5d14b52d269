package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MemoryDB is an in memory implementation of ServiceStorage that is safe for concurrent use.
type MemoryDB struct {
	mu   sync.RWMutex
	maps map[string]map[string][]byte
}

func newMemoryDB() *MemoryDB {
	return &MemoryDB{maps: make(map[string]map[string][]byte)}
}

func (f *MemoryDB) Type() Type {
	return Memory
}

func (f *MemoryDB) URI() string {
	return "memory"
}

func (f *MemoryDB) IsOpen() bool {
	return f.maps != nil
}

func (f *MemoryDB) Close() error {
	return nil
}

func (f *MemoryDB) Write(_ context.Context, namespace, key string, value []byte) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.maps[namespace]
	if !ok {
		ns = make(map[string][]byte)
		f.maps[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (f *MemoryDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key required")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	ns, ok := f.maps[namespace]
	if !ok {
		return nil, nil
	}
	return ns[key], nil
}

func (f *MemoryDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	v, err := f.Read(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (f *MemoryDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ns, ok := f.maps[namespace]
	if !ok {
		return nil, nil
	}
	result := make(map[string][]byte, len(ns))
	for k, v := range ns {
		result[k] = v
	}
	return result, nil
}

func (f *MemoryDB) Update(_ context.Context, namespace, key string, updater Updater) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.maps[namespace]
	if !ok {
		ns = make(map[string][]byte)
		f.maps[namespace] = ns
	}
	v := ns[key]
	if err := updater.Validate(v); err != nil {
		return nil, err
	}
	updated, err := updater.Update(v)
	if err != nil {
		return nil, err
	}
	ns[key] = updated
	return updated, nil
}

func (f *MemoryDB) Delete(_ context.Context, namespace, key string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.maps[namespace]
	if !ok {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	delete(ns, key)
	return nil
}

func (f *MemoryDB) DeleteNamespace(_ context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.maps[namespace]; !ok {
		return errors.Errorf("could not delete namespace<%s>", namespace)
	}
	delete(f.maps, namespace)
	return nil
}
