package in_memory

import (
	"context"
	"sync"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.Cache = (*MemoryCache)(nil)

type depthKey struct {
	asset string
	side  domain.Side
}

type MemoryCache struct {
	mu    sync.RWMutex
	depth map[depthKey]*domain.DepthSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{depth: make(map[depthKey]*domain.DepthSnapshot)}
}

func (c *MemoryCache) SetDepth(ctx context.Context, snap *domain.DepthSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depth[depthKey{snap.Asset, snap.Side}] = snap.DeepCopy()
	return nil
}

func (c *MemoryCache) GetDepth(ctx context.Context, asset string, side domain.Side) (*domain.DepthSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.depth[depthKey{asset, side}]
	if !ok {
		return nil, nil
	}
	return snap.DeepCopy(), nil
}
