package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/codeatlas/codeatlas-go/internal/models"
	"github.com/klauspost/compress/zstd"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrMiss is returned when no valid cache entry exists for a path
var ErrMiss = errors.New("cache miss")

const indexFileName = "index.json"

// Entry is one row of the persisted cache index
type Entry struct {
	SourcePath  string `json:"source_path"`
	BlobPath    string `json:"blob_path"`
	ContentHash string `json:"content_hash"`
	MTime       int64  `json:"mtime"` // unix nanoseconds
	CachedAt    int64  `json:"cached_at"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Stats exposes cache counters
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	MemoryEntries int     `json:"memory_entries"`
	DiskEntries   int     `json:"disk_entries"`
	TotalSize     int64   `json:"total_size_bytes"`
	HitRate       float64 `json:"hit_rate"`
}

// Manager caches per-file parse results in two tiers: an in-process memory
// tier and a persisted index plus per-entry compressed blobs.
//
// The disk layout is single-writer: only one process is expected to own the
// cache directory at a time.
type Manager struct {
	logger *logrus.Logger
	mem    *gocache.Cache
	dir    string
	ttl    time.Duration
	budget int64 // max persisted bytes, 0 = unlimited

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu        sync.Mutex // guards index and counters
	index     map[string]*Entry
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewManager opens (or creates) a cache directory, loads the index and purges
// entries older than ttl.
func NewManager(dir string, ttl time.Duration, maxSize int64, logger *logrus.Logger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	m := &Manager{
		logger: logger,
		mem:    gocache.New(ttl, 2*ttl),
		dir:    dir,
		ttl:    ttl,
		budget: maxSize,
		enc:    enc,
		dec:    dec,
		index:  make(map[string]*Entry),
	}

	if err := m.loadIndex(); err != nil {
		// A corrupt index is treated as an empty cache, not a failure
		logger.WithError(err).Warn("Failed to load cache index, starting empty")
		m.index = make(map[string]*Entry)
	}
	m.sweepExpired()

	return m, nil
}

// GetCachedParse returns the cached parse result for a path, or ErrMiss.
// A hit requires the entry to still be valid: the file exists, its mtime is
// not newer than recorded, its content hash matches, the entry is within TTL
// and the backing blob exists. Invalid entries are purged.
func (m *Manager) GetCachedParse(path string) (*models.FileEntity, error) {
	key := cacheKey(path)

	m.mu.Lock()
	entry, ok := m.index[key]
	m.mu.Unlock()

	if !ok {
		m.miss()
		return nil, ErrMiss
	}

	if !m.isValid(path, entry) {
		m.miss()
		m.Remove(path)
		return nil, ErrMiss
	}

	// Memory tier first
	if cached, found := m.mem.Get(key); found {
		m.hit()
		m.logger.WithField("path", path).Debug("Memory cache hit")
		return cached.(*models.FileEntity), nil
	}

	// Disk tier
	entity, err := m.loadBlob(entry.BlobPath)
	if err != nil {
		// Corrupt blob: purge and report a miss
		m.logger.WithError(err).WithField("path", path).Debug("Cache blob unreadable, purging entry")
		m.miss()
		m.Remove(path)
		return nil, ErrMiss
	}

	m.hit()
	m.mem.Set(key, entity, gocache.DefaultExpiration)
	m.logger.WithField("path", path).Debug("Disk cache hit")
	return entity, nil
}

// CacheParse stores a parse result in both tiers and records an index entry
func (m *Manager) CacheParse(path string, entity *models.FileEntity) error {
	key := cacheKey(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	hash, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("failed to hash source file: %w", err)
	}

	blobPath := m.blobPath(key)
	size, err := m.saveBlob(blobPath, entity)
	if err != nil {
		return fmt.Errorf("failed to write cache blob: %w", err)
	}

	m.mem.Set(key, entity, gocache.DefaultExpiration)

	m.mu.Lock()
	m.index[key] = &Entry{
		SourcePath:  path,
		BlobPath:    blobPath,
		ContentHash: hash,
		MTime:       info.ModTime().UnixNano(),
		CachedAt:    time.Now().UnixNano(),
		SizeBytes:   size,
	}
	m.saveIndexLocked()
	m.mu.Unlock()

	m.evictOverBudget()
	return nil
}

// Remove drops a path from both tiers
func (m *Manager) Remove(path string) {
	key := cacheKey(path)
	m.mem.Delete(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	m.saveIndexLocked()
}

// Clear wipes both tiers and resets counters
func (m *Manager) Clear() error {
	m.logger.Info("Clearing parse cache")
	m.mem.Flush()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(m.dir, "blobs")); err != nil {
		return fmt.Errorf("failed to clear cache blobs: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(m.dir, "blobs"), 0o755); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}

	m.index = make(map[string]*Entry)
	m.hits, m.misses, m.evictions = 0, 0, 0
	m.saveIndexLocked()
	return nil
}

// GetStats returns a snapshot of cache counters
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, e := range m.index {
		total += e.SizeBytes
	}

	s := Stats{
		Hits:          m.hits,
		Misses:        m.misses,
		Evictions:     m.evictions,
		MemoryEntries: m.mem.ItemCount(),
		DiskEntries:   len(m.index),
		TotalSize:     total,
	}
	if lookups := m.hits + m.misses; lookups > 0 {
		s.HitRate = float64(m.hits) / float64(lookups)
	}
	return s
}

func (m *Manager) hit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Manager) miss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

// isValid applies the full validity predicate. The content-hash check on top
// of mtime guards against clock skew and touch-without-modify, at the cost of
// re-reading the file on every lookup.
func (m *Manager) isValid(path string, entry *Entry) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.ModTime().UnixNano() > entry.MTime {
		return false
	}
	hash, err := hashFile(path)
	if err != nil || hash != entry.ContentHash {
		return false
	}
	if time.Since(time.Unix(0, entry.CachedAt)) > m.ttl {
		return false
	}
	if _, err := os.Stat(entry.BlobPath); err != nil {
		return false
	}
	return true
}

// sweepExpired purges all entries older than TTL. Called once on startup.
func (m *Manager) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl).UnixNano()
	var expired []string
	for key, entry := range m.index {
		if entry.CachedAt < cutoff {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		m.removeLocked(key)
	}
	if len(expired) > 0 {
		m.logger.WithField("count", len(expired)).Info("Purged expired cache entries")
		m.saveIndexLocked()
	}
}

// evictOverBudget removes oldest-cachedAt entries until total size fits the
// budget, counting each eviction.
func (m *Manager) evictOverBudget() {
	if m.budget <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, e := range m.index {
		total += e.SizeBytes
	}
	if total <= m.budget {
		return
	}

	type keyed struct {
		key   string
		entry *Entry
	}
	entries := make([]keyed, 0, len(m.index))
	for k, e := range m.index {
		entries = append(entries, keyed{k, e})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].entry.CachedAt < entries[j].entry.CachedAt
	})

	for _, ke := range entries {
		if total <= m.budget {
			break
		}
		total -= ke.entry.SizeBytes
		m.removeLocked(ke.key)
		m.evictions++
	}

	m.logger.WithFields(logrus.Fields{
		"total_bytes": total,
		"budget":      m.budget,
	}).Info("Cache evicted to size budget")
	m.saveIndexLocked()
}

// removeLocked deletes an index entry and its blob. Caller holds the lock.
func (m *Manager) removeLocked(key string) {
	entry, ok := m.index[key]
	if !ok {
		return
	}
	delete(m.index, key)
	m.mem.Delete(key)
	if err := os.Remove(entry.BlobPath); err != nil && !os.IsNotExist(err) {
		m.logger.WithError(err).Debug("Failed to remove cache blob")
	}
}

// blobPath places blobs under a two-level fan-out keyed by the hash prefix,
// bounding per-directory entry counts.
func (m *Manager) blobPath(key string) string {
	return filepath.Join(m.dir, "blobs", key[:2], key+".json.zst")
}

func (m *Manager) saveBlob(blobPath string, entity *models.FileEntity) (int64, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entity: %w", err)
	}
	compressed := m.enc.EncodeAll(data, nil)

	if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(blobPath, compressed, 0o644); err != nil {
		return 0, err
	}
	return int64(len(compressed)), nil
}

func (m *Manager) loadBlob(blobPath string) (*models.FileEntity, error) {
	compressed, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, err
	}
	data, err := m.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob: %w", err)
	}
	var entity models.FileEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blob: %w", err)
	}
	return &entity, nil
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, indexFileName)
}

func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(m.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &m.index)
}

// saveIndexLocked persists the index. Caller holds the lock. Write failures
// are logged, not fatal: the cache degrades to re-parsing.
func (m *Manager) saveIndexLocked() {
	data, err := json.MarshalIndent(m.index, "", "  ")
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal cache index")
		return
	}
	if err := os.WriteFile(m.indexPath(), data, 0o644); err != nil {
		m.logger.WithError(err).Error("Failed to write cache index")
	}
}

// cacheKey derives the index key for a source path
func cacheKey(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(path))
}

// hashFile returns the content hash of a file
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
