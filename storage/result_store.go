package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tier identifies which layer answered a lookup
type Tier string

const (
	TierHot   Tier = "hot"
	TierRedis Tier = "redis"
)

// Config contains result store configuration
type Config struct {
	MaxEntries      int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// ResultStore coordinates the hot and Redis tiers
type ResultStore struct {
	hot    *HotCache
	warm   *RedisStore
	config Config
	logger *logrus.Logger

	cleanupWorker *CleanupWorker
}

// CleanupWorker periodically drops expired hot entries
type CleanupWorker struct {
	store    *ResultStore
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Stats summarizes tier usage
type Stats struct {
	Hot  HotStats  `json:"hot"`
	Warm WarmStats `json:"warm"`
}

// HotStats describes the in-memory tier
type HotStats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// WarmStats describes the Redis tier
type WarmStats struct {
	Enabled bool `json:"enabled"`
}

// NewResultStore creates a store. warm may be nil to run with the hot tier only.
func NewResultStore(config Config, warm *RedisStore, logger *logrus.Logger) *ResultStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}

	store := &ResultStore{
		hot:    NewHotCache(config.MaxEntries, config.TTL),
		warm:   warm,
		config: config,
		logger: logger,
	}
	store.cleanupWorker = &CleanupWorker{
		store:    store,
		interval: config.CleanupInterval,
		stopChan: make(chan struct{}),
	}
	return store
}

// Get checks the hot tier, then Redis. Redis failures are logged and treated as misses.
func (rs *ResultStore) Get(ctx context.Context, key string) ([]byte, Tier, bool) {
	if data, ok := rs.hot.Get(key); ok {
		return data, TierHot, true
	}

	if rs.warm == nil {
		return nil, "", false
	}

	data, ok, err := rs.warm.Get(ctx, key)
	if err != nil {
		rs.logger.WithError(err).WithField("key", key).Warn("Redis tier lookup failed")
		return nil, "", false
	}
	if !ok {
		return nil, "", false
	}
	return data, TierRedis, true
}

// Set writes to every enabled tier. The hot tier always succeeds.
func (rs *ResultStore) Set(ctx context.Context, key string, data []byte, labels map[string]string) error {
	rs.hot.Set(key, data, labels)

	if rs.warm != nil {
		if err := rs.warm.Set(ctx, key, data); err != nil {
			return fmt.Errorf("failed to write Redis tier: %w", err)
		}
	}
	return nil
}

// Invalidate removes key from every tier
func (rs *ResultStore) Invalidate(ctx context.Context, key string) error {
	rs.hot.Delete(key)
	if rs.warm != nil {
		return rs.warm.Delete(ctx, key)
	}
	return nil
}

// Clear empties every tier. The count is the larger of the per-tier counts.
func (rs *ResultStore) Clear(ctx context.Context) (int, error) {
	removed := rs.hot.Clear()
	if rs.warm == nil {
		return removed, nil
	}

	n, err := rs.warm.Clear(ctx)
	if err != nil {
		return removed, err
	}
	if n > removed {
		removed = n
	}
	return removed, nil
}

// Entries lists hot entries matching label filters
func (rs *ResultStore) Entries(filters map[string]string) []EntryInfo {
	return rs.hot.EntriesByLabels(filters)
}

// Stats returns tier statistics
func (rs *ResultStore) Stats() Stats {
	return Stats{
		Hot: HotStats{
			Entries:    rs.hot.Len(),
			TotalBytes: rs.hot.TotalBytes(),
		},
		Warm: WarmStats{Enabled: rs.warm != nil},
	}
}

// Ping reports whether the Redis tier, if enabled, is reachable
func (rs *ResultStore) Ping(ctx context.Context) error {
	if rs.warm == nil {
		return nil
	}
	return rs.warm.Ping(ctx)
}

// Start begins the background cleanup worker
func (rs *ResultStore) Start() {
	rs.cleanupWorker.Start()
}

// Stop shuts down the cleanup worker and closes the Redis tier
func (rs *ResultStore) Stop() error {
	rs.cleanupWorker.Stop()

	if rs.warm != nil {
		if err := rs.warm.Close(); err != nil {
			return fmt.Errorf("failed to close Redis tier: %w", err)
		}
	}
	return nil
}

// TriggerCleanup removes expired hot entries now
func (rs *ResultStore) TriggerCleanup() int {
	removed := rs.hot.CleanupStale()
	if removed > 0 {
		rs.logger.WithField("removed", removed).Debug("Cleaned up expired results")
	}
	return removed
}

func (cw *CleanupWorker) Start() {
	cw.wg.Add(1)
	go cw.run()
}

func (cw *CleanupWorker) Stop() {
	cw.stopOnce.Do(func() { close(cw.stopChan) })
	cw.wg.Wait()
}

func (cw *CleanupWorker) run() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cw.stopChan:
			return
		case <-ticker.C:
			cw.store.TriggerCleanup()
		}
	}
}
