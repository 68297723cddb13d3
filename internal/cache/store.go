package cache

import (
	"sync"
	"time"

	"github.com/yegors/if-inbounds/internal/config"
)

// Kind names an independent cache namespace with its own expiration.
type Kind string

const (
	KindAirportCoordinates Kind = "airportCoordinates"
	KindInboundFlightIDs   Kind = "inboundFlightIds"
	KindATIS               Kind = "atis"
	KindControllers        Kind = "controllers"

	// KindShared holds un-keyed session-wide resources (world, atc, flights)
	// keyed by resource name.
	KindShared Kind = "shared"
)

// DefaultExpirations are the TTLs used when no configuration is supplied.
var DefaultExpirations = map[Kind]time.Duration{
	KindAirportCoordinates: 90 * 24 * time.Hour,
	KindInboundFlightIDs:   5 * time.Minute,
	KindATIS:               30 * time.Minute,
	KindControllers:        10 * time.Minute,
	KindShared:             15 * time.Second,
}

// Entry is a cached value and the time it was stored.
type Entry struct {
	Value     any
	Timestamp time.Time
}

// Store is a keyed cache partitioned by Kind. An entry is valid while
// now - timestamp <= expiration[kind]; expired entries are evicted on read.
type Store struct {
	mu          sync.Mutex
	expirations map[Kind]time.Duration
	entries     map[Kind]map[string]Entry
	now         func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store with the given per-kind expirations. Kinds not
// present in the map never hold entries.
func NewStore(expirations map[Kind]time.Duration, opts ...Option) *Store {
	s := &Store{
		expirations: make(map[Kind]time.Duration, len(expirations)),
		entries:     make(map[Kind]map[string]Entry, len(expirations)),
		now:         time.Now,
	}
	for kind, ttl := range expirations {
		s.expirations[kind] = ttl
		s.entries[kind] = make(map[string]Entry)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Expiration returns the TTL configured for kind.
func (s *Store) Expiration(kind Kind) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expirations[kind]
}

// Get returns the live value for key, evicting it if it has expired.
func (s *Store) Get(kind Kind, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(kind, key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

func (s *Store) lookupLocked(kind Kind, key string) (Entry, bool) {
	ns, ok := s.entries[kind]
	if !ok {
		return Entry{}, false
	}
	e, ok := ns[key]
	if !ok {
		return Entry{}, false
	}
	if s.now().Sub(e.Timestamp) > s.expirations[kind] {
		delete(ns, key)
		return Entry{}, false
	}
	return e, true
}

// Set stores value under key with the current timestamp.
func (s *Store) Set(kind Kind, key string, value any) {
	s.SetAt(kind, key, value, s.now())
}

// SetAt stores value with an explicit timestamp, used when restoring entries
// from durable storage.
func (s *Store) SetAt(kind Kind, key string, value any, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.entries[kind]
	if !ok {
		return
	}
	ns[key] = Entry{Value: value, Timestamp: ts}
}

// IsStale reports whether key is absent or expired. It does not evict.
func (s *Store) IsStale(kind Kind, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.entries[kind]
	if !ok {
		return true
	}
	e, ok := ns[key]
	if !ok {
		return true
	}
	return s.now().Sub(e.Timestamp) > s.expirations[kind]
}

// Delete removes key from kind.
func (s *Store) Delete(kind Kind, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.entries[kind]; ok {
		delete(ns, key)
	}
}

// Invalidate drops every entry of kind.
func (s *Store) Invalidate(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[kind]; ok {
		s.entries[kind] = make(map[string]Entry)
	}
}

// Uncached returns the ids that have no live entry in kind, preserving order.
func (s *Store) Uncached(kind Kind, ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	for _, id := range ids {
		if _, ok := s.lookupLocked(kind, id); !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Len returns the number of entries held for kind, expired or not.
func (s *Store) Len(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[kind])
}

// Typed is a view over one kind of a Store with a concrete value type.
type Typed[V any] struct {
	store *Store
	kind  Kind
}

// For returns a typed view over kind.
func For[V any](store *Store, kind Kind) Typed[V] {
	return Typed[V]{store: store, kind: kind}
}

// Get returns the live value for key. Values of another type read as absent.
func (t Typed[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := t.store.Get(t.kind, key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value under key.
func (t Typed[V]) Set(key string, value V) {
	t.store.Set(t.kind, key, value)
}

// Delete removes key.
func (t Typed[V]) Delete(key string) {
	t.store.Delete(t.kind, key)
}

// IsStale reports whether key is absent or expired.
func (t Typed[V]) IsStale(key string) bool {
	return t.store.IsStale(t.kind, key)
}

// ExpirationsFrom builds the per-kind TTLs from configuration
func ExpirationsFrom(cfg config.CacheConfig) map[Kind]time.Duration {
	return map[Kind]time.Duration{
		KindAirportCoordinates: time.Duration(cfg.AirportCoordinatesDays) * 24 * time.Hour,
		KindInboundFlightIDs:   time.Duration(cfg.InboundFlightIDsMins) * time.Minute,
		KindATIS:               time.Duration(cfg.ATISMinutes) * time.Minute,
		KindControllers:        time.Duration(cfg.ControllersMinutes) * time.Minute,
		KindShared:             time.Duration(cfg.SharedSeconds) * time.Second,
	}
}
