package cache

import (
	"context"
	"time"
)

// NullCache stores nothing: every lookup misses, so every render runs the
// layout engine. It backs --no-cache and the "none" backend.
type NullCache struct{}

// NewNullCache returns a cache that never holds a layout.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
