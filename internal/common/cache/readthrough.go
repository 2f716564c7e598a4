// Package cache holds the process-wide caches for agent configuration.
// Entries are loaded lazily and stay until Invalidate is called, either
// explicitly or by a Watcher reacting to file changes.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Loader produces the value for a key on a cache miss.
type Loader[K comparable, V any] func(key K) (V, error)

// ReadThrough caches successful loads. Failed loads are not cached.
type ReadThrough[K comparable, V any] struct {
	name   string
	load   Loader[K, V]
	mu     sync.Mutex
	values *lru.Cache[K, V]
}

func NewReadThrough[K comparable, V any](name string, size int, load Loader[K, V]) (*ReadThrough[K, V], error) {
	if size <= 0 {
		size = 64
	}
	values, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", name, err)
	}
	return &ReadThrough[K, V]{name: name, load: load, values: values}, nil
}

func (c *ReadThrough[K, V]) Get(key K) (V, error) {
	if v, ok := c.values.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values.Get(key); ok {
		return v, nil
	}
	v, err := c.load(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.values.Add(key, v)
	return v, nil
}

// Invalidate drops every entry; the next Get reloads.
func (c *ReadThrough[K, V]) Invalidate() {
	c.values.Purge()
}

func (c *ReadThrough[K, V]) Len() int {
	return c.values.Len()
}

func (c *ReadThrough[K, V]) Name() string {
	return c.name
}
