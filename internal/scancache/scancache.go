package scancache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/kvstore"
)

// KeyPrefix is bumped whenever the stored shape of InstalledApp changes so
// old entries read as absent instead of half-decoding.
const KeyPrefix = "app_collection_scan_cache:v6:"

// Key returns the storage key for a platform bucket.
func Key(bucket apps.Bucket) string {
	return KeyPrefix + string(bucket)
}

// Snapshot captures the result of a scan at a point in time.
type Snapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Apps      []apps.InstalledApp `json:"apps"`
}

// DiffResult describes how the app set changed between two scans.
type DiffResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Cache persists the last discovery result per bucket as zstd-compressed
// JSON in a kvstore.Store.
type Cache struct {
	store   kvstore.Store
	logger  *zap.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// New creates a cache over store.
func New(store kvstore.Store, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Cache{store: store, logger: logger, encoder: enc, decoder: dec, now: time.Now}, nil
}

// Get returns the cached apps for bucket. Missing, corrupt, undecodable,
// and empty entries all report ok=false.
func (c *Cache) Get(ctx context.Context, bucket apps.Bucket) ([]apps.InstalledApp, bool) {
	snap, ok := c.Snapshot(ctx, bucket)
	if !ok {
		return nil, false
	}
	return snap.Apps, true
}

// Snapshot is Get with the time the entry was written.
func (c *Cache) Snapshot(ctx context.Context, bucket apps.Bucket) (Snapshot, bool) {
	key := Key(bucket)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn("scan cache read failed", zap.String("key", key), zap.Error(err))
		}
		return Snapshot{}, false
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		c.logger.Debug("scan cache entry is not valid zstd", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Debug("scan cache entry is not valid JSON", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}
	if len(snap.Apps) == 0 {
		return Snapshot{}, false
	}
	return snap, true
}

// Put replaces the cached apps for bucket.
func (c *Cache) Put(ctx context.Context, bucket apps.Bucket, items []apps.InstalledApp) error {
	data, err := json.Marshal(Snapshot{Timestamp: c.now().UTC(), Apps: items})
	if err != nil {
		return fmt.Errorf("failed to marshal scan cache: %w", err)
	}
	if err := c.store.Set(ctx, Key(bucket), c.encoder.EncodeAll(data, nil)); err != nil {
		return fmt.Errorf("failed to write scan cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry so the next discovery scans live.
func (c *Cache) Invalidate(ctx context.Context, bucket apps.Bucket) error {
	if err := c.store.Delete(ctx, Key(bucket)); err != nil {
		return fmt.Errorf("failed to invalidate scan cache: %w", err)
	}
	return nil
}

// Diff lists ids present only in curr (Added) and only in prev (Removed),
// each in the order of its source list.
func Diff(prev, curr []apps.InstalledApp) DiffResult {
	result := DiffResult{Added: []string{}, Removed: []string{}}

	prevIDs := make(map[string]bool, len(prev))
	for _, a := range prev {
		prevIDs[a.ID] = true
	}
	currIDs := make(map[string]bool, len(curr))
	for _, a := range curr {
		currIDs[a.ID] = true
		if !prevIDs[a.ID] {
			result.Added = append(result.Added, a.ID)
		}
	}
	for _, a := range prev {
		if !currIDs[a.ID] {
			result.Removed = append(result.Removed, a.ID)
		}
	}
	return result
}
