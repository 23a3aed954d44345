package exporter

import (
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheConfig configures the snapshot cache used by /metrics rendering.
type CacheConfig struct {
	RefreshInterval time.Duration
	Now             func() time.Time
}

type cachedSnapshotReader struct {
	source SnapshotReader

	refreshInterval time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	initialized bool
	lastRefresh time.Time
	series      map[string]MetricPoint
}

// NewCachedSnapshotReader wraps a snapshot reader so scrapes rebuild the
// snapshot at most once per refresh interval.
func NewCachedSnapshotReader(source SnapshotReader, cfg CacheConfig) SnapshotReader {
	if source == nil {
		return &cachedSnapshotReader{}
	}
	if _, alreadyCached := source.(*cachedSnapshotReader); alreadyCached {
		return source
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}

	return &cachedSnapshotReader{
		source:          source,
		refreshInterval: refreshInterval,
		now:             nowFn,
		series:          make(map[string]MetricPoint),
	}
}

func (c *cachedSnapshotReader) Snapshot() []MetricPoint {
	if c == nil || c.source == nil {
		return nil
	}
	c.refreshIfNeeded()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedSnapshotLocked()
}

func (c *cachedSnapshotReader) refreshIfNeeded() {
	now := c.now()

	c.mu.RLock()
	if c.initialized && now.Sub(c.lastRefresh) < c.refreshInterval {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized && now.Sub(c.lastRefresh) < c.refreshInterval {
		return
	}

	// Later points for the same series replace earlier ones.
	points := c.source.Snapshot()
	next := make(map[string]MetricPoint, len(points))
	for _, point := range points {
		next[seriesKey(point)] = clonePoint(point)
	}
	c.series = next
	c.lastRefresh = now
	c.initialized = true
}

func (c *cachedSnapshotReader) sortedSnapshotLocked() []MetricPoint {
	if len(c.series) == 0 {
		return nil
	}

	keys := make([]string, 0, len(c.series))
	for key := range c.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]MetricPoint, 0, len(keys))
	for _, key := range keys {
		result = append(result, clonePoint(c.series[key]))
	}
	return result
}

func clonePoint(point MetricPoint) MetricPoint {
	return MetricPoint{
		Name:   point.Name,
		Help:   point.Help,
		Labels: maps.Clone(point.Labels),
		Value:  point.Value,
	}
}

func seriesKey(point MetricPoint) string {
	labelKeys := make([]string, 0, len(point.Labels))
	for key := range point.Labels {
		labelKeys = append(labelKeys, key)
	}
	sort.Strings(labelKeys)

	builder := strings.Builder{}
	builder.WriteString(point.Name)
	builder.WriteString("|")
	for _, key := range labelKeys {
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(point.Labels[key])
		builder.WriteString(";")
	}
	return builder.String()
}
