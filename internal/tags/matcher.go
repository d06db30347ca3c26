// Package tags implements TagsMatcher: a versioned path-string -> small
// integer tag registry used by the CJSON codec.
package tags

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

// Tag is the small integer assigned to a JSON path.
type Tag int32

const cacheSize = 4096

// Matcher maps path strings to tags with a monotonically increasing
// version. New tags may appear at item ingest (NewTag); a mismatched tag
// token presented by a caller is reported as tags-mismatch, not silently
// reconciled.
type Matcher struct {
	mu      sync.RWMutex
	version int64
	byPath  map[string]Tag
	byTag   []string // byTag[tag] == path, tag 0 is reserved/unused
	cache   *lru.Cache[string, Tag]
}

// New builds an empty matcher at version 0.
func New() *Matcher {
	c, _ := lru.New[string, Tag](cacheSize)
	return &Matcher{
		byPath: make(map[string]Tag),
		byTag:  []string{""},
		cache:  c,
	}
}

// Version returns the current registry version. Version increases by one
// each time a new path is registered.
func (m *Matcher) Version() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Resolve returns the tag for path without creating one, reporting
// ok=false if path is not yet registered.
func (m *Matcher) Resolve(path string) (Tag, bool) {
	if t, ok := m.cache.Get(path); ok {
		return t, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byPath[path]
	if ok {
		m.cache.Add(path, t)
	}
	return t, ok
}

// NewTag registers path if not already present, bumping the version, and
// returns its tag. Safe to call concurrently; duplicate registration of an
// existing path is a no-op that returns the existing tag.
func (m *Matcher) NewTag(path string) Tag {
	if t, ok := m.Resolve(path); ok {
		return t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byPath[path]; ok {
		return t
	}
	t := Tag(len(m.byTag))
	m.byTag = append(m.byTag, path)
	m.byPath[path] = t
	m.version++
	m.cache.Add(path, t)
	return t
}

// PathOf returns the path string registered to tag, or "" with ok=false.
func (m *Matcher) PathOf(t Tag) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(t) <= 0 || int(t) >= len(m.byTag) {
		return "", false
	}
	return m.byTag[t], true
}

// CheckToken validates that a state token a caller presents (the version
// it believes the matcher is at) still matches the current version.
// Mismatch is the recoverable tags-mismatch condition: one retry against
// a fresh item is expected of the caller, not reconciliation of the
// caller's own state.
func (m *Matcher) CheckToken(stateToken int64) error {
	if m.Version() != stateToken {
		return coreerrors.New(coreerrors.KindTagsMissmatch, "tags matcher version mismatch: token=%d current=%d", stateToken, m.Version())
	}
	return nil
}

// Snapshot returns the current version, usable as a fresh state token for
// subsequent CJSON encodes.
func (m *Matcher) Snapshot() int64 { return m.Version() }
