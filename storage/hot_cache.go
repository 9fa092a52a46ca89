// Tiered result storage: an in-memory hot tier with a validity window and an
// optional Redis tier shared between engine processes
package storage

import (
	"sort"
	"sync"
	"time"
)

// Entry is one cached, already-encoded result
type Entry struct {
	Key        string
	Data       []byte
	Labels     map[string]string
	StoredAt   time.Time
	LastAccess time.Time
	Hits       int64
}

// EntryInfo describes an entry without its payload
type EntryInfo struct {
	Key      string            `json:"key"`
	Labels   map[string]string `json:"labels"`
	Size     int               `json:"size_bytes"`
	StoredAt time.Time         `json:"stored_at"`
	Hits     int64             `json:"hits"`
}

// HotCache is the in-memory tier. Entries are valid for ttl after they are stored.
type HotCache struct {
	entries    map[string]*Entry
	maxEntries int
	ttl        time.Duration
	totalBytes int64
	now        func() time.Time
	mu         sync.RWMutex
}

// NewHotCache creates an in-memory tier. maxEntries <= 0 means unbounded.
func NewHotCache(maxEntries int, ttl time.Duration) *HotCache {
	return &HotCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the payload stored under key if it is still within the validity window
func (hc *HotCache) Get(key string) ([]byte, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	entry, exists := hc.entries[key]
	if !exists {
		return nil, false
	}

	now := hc.now()
	if now.Sub(entry.StoredAt) >= hc.ttl {
		hc.removeLocked(key)
		return nil, false
	}

	entry.LastAccess = now
	entry.Hits++
	return entry.Data, true
}

// Set stores a payload, evicting the least recently used entry when full
func (hc *HotCache) Set(key string, data []byte, labels map[string]string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if _, exists := hc.entries[key]; exists {
		hc.removeLocked(key)
	} else if hc.maxEntries > 0 && len(hc.entries) >= hc.maxEntries {
		hc.evictLocked()
	}

	if labels == nil {
		labels = make(map[string]string)
	}
	now := hc.now()
	hc.entries[key] = &Entry{
		Key:        key,
		Data:       data,
		Labels:     labels,
		StoredAt:   now,
		LastAccess: now,
	}
	hc.totalBytes += int64(len(data))
}

// Delete removes a key and reports whether it was present
func (hc *HotCache) Delete(key string) bool {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if _, exists := hc.entries[key]; !exists {
		return false
	}
	hc.removeLocked(key)
	return true
}

// Clear removes every entry and returns how many were dropped
func (hc *HotCache) Clear() int {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	n := len(hc.entries)
	hc.entries = make(map[string]*Entry)
	hc.totalBytes = 0
	return n
}

// Len returns the number of entries, including expired ones not yet cleaned up
func (hc *HotCache) Len() int {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.entries)
}

// TotalBytes returns the summed payload size
func (hc *HotCache) TotalBytes() int64 {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.totalBytes
}

// CleanupStale removes entries stored longer than the validity window ago
func (hc *HotCache) CleanupStale() int {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	now := hc.now()
	var staleKeys []string
	for key, entry := range hc.entries {
		if now.Sub(entry.StoredAt) >= hc.ttl {
			staleKeys = append(staleKeys, key)
		}
	}

	for _, key := range staleKeys {
		hc.removeLocked(key)
	}
	return len(staleKeys)
}

// EntriesByLabels lists entries whose labels match every filter, newest first
func (hc *HotCache) EntriesByLabels(filters map[string]string) []EntryInfo {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var result []EntryInfo
	for _, entry := range hc.entries {
		if matchesLabels(entry.Labels, filters) {
			result = append(result, EntryInfo{
				Key:      entry.Key,
				Labels:   entry.Labels,
				Size:     len(entry.Data),
				StoredAt: entry.StoredAt,
				Hits:     entry.Hits,
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StoredAt.After(result[j].StoredAt)
	})
	return result
}

func (hc *HotCache) removeLocked(key string) {
	if entry, exists := hc.entries[key]; exists {
		hc.totalBytes -= int64(len(entry.Data))
		delete(hc.entries, key)
	}
}

func (hc *HotCache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range hc.entries {
		if oldestKey == "" || entry.LastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.LastAccess
		}
	}
	if oldestKey != "" {
		hc.removeLocked(oldestKey)
	}
}

func matchesLabels(labels, filters map[string]string) bool {
	for key, value := range filters {
		if labels[key] != value {
			return false
		}
	}
	return true
}
