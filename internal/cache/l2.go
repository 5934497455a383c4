package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultL2MaxBytes and DefaultL2TTL are §4.7's documented L2 defaults.
const (
	DefaultL2MaxBytes = 1 << 30 // 1 GiB
	DefaultL2TTL      = time.Hour
)

// l2Record is the on-disk encoding of one L2 blob: a checksum over Value
// so a torn or corrupted write is detected on read and treated as a miss
// rather than returned, per §4.7's consistency note.
type l2Record struct {
	Checksum     uint64
	Value        []byte
	IndexVersion int64
	CreatedAt    time.Time
	TTL          time.Duration
}

// l2Tier is the on-disk blob tier: one file per entry under
// <dir>/<prefix>/<key>, prefix = two hex chars of a hash of key (directory
// fan-out so no single directory holds every entry). Size accounting is
// kept in memory and rebuilt on Open by walking the directory once.
type l2Tier struct {
	dir      string
	maxBytes int64
	ttl      time.Duration

	mu        sync.Mutex
	sizes     map[string]int64     // key -> file size
	lastAccess map[string]time.Time // key -> file mtime
	totalSize int64
}

func newL2Tier(dir string, maxBytes int64, ttl time.Duration) (*l2Tier, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultL2MaxBytes
	}
	if ttl <= 0 {
		ttl = DefaultL2TTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create l2 cache dir: %w", err)
	}

	t := &l2Tier{dir: dir, maxBytes: maxBytes, ttl: ttl, sizes: map[string]int64{}, lastAccess: map[string]time.Time{}}
	if err := t.rebuildIndex(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *l2Tier) rebuildIndex() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return fmt.Errorf("read l2 cache dir: %w", err)
	}
	for _, prefixEntry := range entries {
		if !prefixEntry.IsDir() {
			continue
		}
		prefixDir := filepath.Join(t.dir, prefixEntry.Name())
		files, err := os.ReadDir(prefixDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			t.sizes[f.Name()] = info.Size()
			t.lastAccess[f.Name()] = info.ModTime()
			t.totalSize += info.Size()
		}
	}
	return nil
}

func (t *l2Tier) pathFor(key string) string {
	prefix := fmt.Sprintf("%02x", xxhash.Sum64String(key)&0xff)
	return filepath.Join(t.dir, prefix, key)
}

func (t *l2Tier) get(key string) (entry, bool) {
	data, err := os.ReadFile(t.pathFor(key))
	if err != nil {
		return entry{}, false
	}

	var rec l2Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		_ = t.remove(key)
		return entry{}, false
	}
	if xxhash.Sum64(rec.Value) != rec.Checksum {
		_ = t.remove(key)
		return entry{}, false
	}

	now := time.Now()
	_ = os.Chtimes(t.pathFor(key), now, now)
	t.mu.Lock()
	t.lastAccess[key] = now
	t.mu.Unlock()

	return entry{Value: rec.Value, IndexVersion: rec.IndexVersion, CreatedAt: rec.CreatedAt, LastAccess: now, TTL: rec.TTL}, true
}

func (t *l2Tier) put(key string, e entry) error {
	rec := l2Record{Checksum: xxhash.Sum64(e.Value), Value: e.Value, IndexVersion: e.IndexVersion, CreatedAt: e.CreatedAt, TTL: e.TTL}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode l2 record: %w", err)
	}

	path := t.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create l2 prefix dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write l2 blob: %w", err)
	}

	now := time.Now()
	t.mu.Lock()
	if old, ok := t.sizes[key]; ok {
		t.totalSize -= old
	}
	t.sizes[key] = int64(buf.Len())
	t.lastAccess[key] = now
	t.totalSize += int64(buf.Len())
	t.mu.Unlock()

	return t.evictIfOverBudget()
}

func (t *l2Tier) remove(key string) error {
	path := t.pathFor(key)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	t.mu.Lock()
	if size, ok := t.sizes[key]; ok {
		t.totalSize -= size
		delete(t.sizes, key)
	}
	delete(t.lastAccess, key)
	t.mu.Unlock()
	return nil
}

func (t *l2Tier) clear() error {
	t.mu.Lock()
	keys := make([]string, 0, len(t.sizes))
	for k := range t.sizes {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	for _, k := range keys {
		if err := t.remove(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *l2Tier) pruneOlderThan(cutoff time.Time) error {
	t.mu.Lock()
	var stale []string
	for k, last := range t.lastAccess {
		if last.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	t.mu.Unlock()

	for _, k := range stale {
		if err := t.remove(k); err != nil {
			return err
		}
	}
	return nil
}

// evictIfOverBudget removes the least-recently-accessed entries until
// totalSize is back under maxBytes (§4.7's size-driven LRU eviction).
func (t *l2Tier) evictIfOverBudget() error {
	t.mu.Lock()
	if t.totalSize <= t.maxBytes {
		t.mu.Unlock()
		return nil
	}
	type candidate struct {
		key  string
		last time.Time
	}
	candidates := make([]candidate, 0, len(t.lastAccess))
	for k, last := range t.lastAccess {
		candidates = append(candidates, candidate{k, last})
	}
	t.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].last.Before(candidates[j].last) })
	for _, c := range candidates {
		t.mu.Lock()
		over := t.totalSize > t.maxBytes
		t.mu.Unlock()
		if !over {
			break
		}
		if err := t.remove(c.key); err != nil {
			return err
		}
	}
	return nil
}
