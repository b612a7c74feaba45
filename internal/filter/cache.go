package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store provides read access to a guild's filter configuration and patterns.
type Store interface {
	Configs(ctx context.Context, guildID uuid.UUID) ([]FilterConfig, error)
	Patterns(ctx context.Context, guildID uuid.UUID) ([]FilterPattern, error)
}

type cacheEntry struct {
	engine     *Engine
	generation uint64
}

// Cache maps guild_id to a compiled Engine, guarded by a generation counter per spec §4.2. It is a
// process-local, process-wide singleton: callers construct one at startup and hold it for the life of the
// process. The lock only ever protects map access; building an engine (which does I/O through Store) happens
// outside any held lock, matching the "no locks span I/O" discipline.
type Cache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*cacheEntry
	generations map[uuid.UUID]uint64
	store       Store
	log         zerolog.Logger
}

// NewCache creates an empty filter cache.
func NewCache(store Store, logger zerolog.Logger) *Cache {
	return &Cache{
		entries:     make(map[uuid.UUID]*cacheEntry),
		generations: make(map[uuid.UUID]uint64),
		store:       store,
		log:         logger,
	}
}

// GetOrBuild returns the cached engine for guildID, building and inserting one if absent. A build that loses
// a race with a concurrent Invalidate (the generation advanced between snapshot and insertion) still returns
// its freshly compiled engine to the caller, but discards it rather than caching it — the next call rebuilds
// against current data.
func (c *Cache) GetOrBuild(ctx context.Context, guildID uuid.UUID) (*Engine, error) {
	c.mu.Lock()
	entry, ok := c.entries[guildID]
	gen := c.generations[guildID]
	c.mu.Unlock()
	if ok {
		return entry.engine, nil
	}

	engine, err := c.build(ctx, guildID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[guildID] != gen {
		c.log.Debug().Stringer("guild_id", guildID).Msg("Filter build discarded: generation changed during compile")
		return engine, nil
	}
	c.entries[guildID] = &cacheEntry{engine: engine, generation: gen}
	return engine, nil
}

// Invalidate bumps guildID's generation and drops its cached engine, if any. The next GetOrBuild recompiles.
func (c *Cache) Invalidate(guildID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[guildID]++
	delete(c.entries, guildID)
}

// BuildEphemeral compiles a one-off engine for guildID from the store's current configs and patterns without
// ever touching the cache, so building it never disturbs what other requests see.
func (c *Cache) BuildEphemeral(ctx context.Context, guildID uuid.UUID) (*Engine, error) {
	return c.build(ctx, guildID)
}

func (c *Cache) build(ctx context.Context, guildID uuid.UUID) (*Engine, error) {
	configs, err := c.store.Configs(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load filter configs: %w", err)
	}

	patterns, err := c.store.Patterns(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load filter patterns: %w", err)
	}

	return Compile(guildID, configs, patterns), nil
}
