// Package query is the client-side cache behind every remote read: entries
// carry a retention (CacheTime) and freshness (StaleTime) policy, concurrent
// readers of one key share a single in-flight fetch, and the whole cache can
// be persisted and restored through a Store.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// Infinity disables expiry for CacheTime or StaleTime
	Infinity time.Duration = math.MaxInt64
	// DefaultFlightTimeout bounds a shared fetch
	DefaultFlightTimeout = time.Minute
)

// Policy controls how long an entry is kept and when it must be refetched
type Policy struct {
	// CacheTime is how long an entry is retained after its last use
	CacheTime time.Duration
	// StaleTime is how long a fetched value is served without refetching
	StaleTime time.Duration
}

// Key identifies a cache entry. The first element is the entry kind.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// Kind returns the first element of the key
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Entry is an immutable snapshot of a cached value
type Entry struct {
	Key         string          `json:"key"`
	Kind        string          `json:"kind"`
	Data        json.RawMessage `json:"data"`
	UpdatedAt   time.Time       `json:"updated_at"`
	AccessedAt  time.Time       `json:"accessed_at"`
	CacheTime   time.Duration   `json:"cache_time"`
	StaleTime   time.Duration   `json:"stale_time"`
	Invalidated bool            `json:"invalidated,omitempty"`
}

// Stale reports whether the entry must be refetched before it is served
func (e Entry) Stale(now time.Time) bool {
	if e.Invalidated {
		return true
	}
	if e.StaleTime == Infinity {
		return false
	}
	return !now.Before(e.UpdatedAt.Add(e.StaleTime))
}

// Expired reports whether the entry may be dropped from the cache
func (e Entry) Expired(now time.Time) bool {
	if e.CacheTime == Infinity {
		return false
	}
	return !now.Before(e.AccessedAt.Add(e.CacheTime))
}

// Store persists cache entries
type Store interface {
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
	LoadAll(ctx context.Context) ([]Entry, error)
}

// Listener is notified after an entry is written
type Listener func(Entry)

// Option configures the cache
type Option func(*Client)

// WithStore persists every write to store
func WithStore(store Store) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets a custom logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithFlightTimeout bounds a shared fetch once it no longer follows the
// cancellation of the caller that started it
func WithFlightTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.flightTimeout = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is the query cache
type Client struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	listeners map[int]Listener
	nextID    int

	group         singleflight.Group
	flightTimeout time.Duration
	store         Store
	logger        *zap.Logger
	now           func() time.Time
}

// New creates an empty cache
func New(opts ...Option) *Client {
	c := &Client{
		entries:       make(map[string]Entry),
		listeners:     make(map[int]Listener),
		flightTimeout: DefaultFlightTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Restore loads every persisted entry. It must run before the first fetch.
func (c *Client) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore query cache: %w", err)
	}
	c.Load(entries)
	c.logger.Info("Query cache restored", zap.Int("entries", len(entries)))
	return nil
}

// Load replaces the in-memory entries with the given snapshot
func (c *Client) Load(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		c.entries[e.Key] = e
	}
}

// Snapshot returns all entries ordered by key
func (c *Client) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the entry for key and records the access
func (c *Client) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, false
	}
	e.AccessedAt = c.now()
	c.entries[e.Key] = e
	return e, true
}

// Set stores value under key and persists it
func (c *Client) Set(ctx context.Context, key Key, policy Policy, value any) (Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}

	now := c.now()
	entry := Entry{
		Key:        key.String(),
		Kind:       key.Kind(),
		Data:       data,
		UpdatedAt:  now,
		AccessedAt: now,
		CacheTime:  policy.CacheTime,
		StaleTime:  policy.StaleTime,
	}

	c.mu.Lock()
	c.entries[entry.Key] = entry
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	c.persist(ctx, entry)
	for _, l := range listeners {
		l(entry)
	}
	return entry, nil
}

// Invalidate marks key stale so the next read refetches it
func (c *Client) Invalidate(ctx context.Context, key Key) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if ok {
		e.Invalidated = true
		c.entries[e.Key] = e
	}
	c.mu.Unlock()

	if ok {
		c.persist(ctx, e)
	}
}

// Remove drops key from the cache and the store
func (c *Client) Remove(ctx context.Context, key Key) {
	c.mu.Lock()
	delete(c.entries, key.String())
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx, key.String()); err != nil {
			c.logger.Warn("Failed to delete cache entry", zap.String("key", key.String()), zap.Error(err))
		}
	}
}

// Sweep drops entries whose retention elapsed and returns how many were removed
func (c *Client) Sweep(ctx context.Context) int {
	now := c.now()

	c.mu.Lock()
	var expired []string
	for k, e := range c.entries {
		if e.Expired(now) {
			expired = append(expired, k)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		for _, k := range expired {
			if err := c.store.Delete(ctx, k); err != nil {
				c.logger.Warn("Failed to delete expired cache entry", zap.String("key", k), zap.Error(err))
			}
		}
	}
	return len(expired)
}

// Subscribe registers a write listener. The returned func unregisters it.
func (c *Client) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}

func (c *Client) persist(ctx context.Context, e Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, e); err != nil {
		c.logger.Warn("Failed to persist cache entry", zap.String("key", e.Key), zap.Error(err))
	}
}

// Peek decodes the cached value for key without fetching
func Peek[T any](c *Client, key Key) (T, bool, error) {
	var out T
	e, ok := c.Get(key)
	if !ok {
		return out, false, nil
	}
	if err := json.Unmarshal(e.Data, &out); err != nil {
		return out, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return out, true, nil
}

// Fetch serves key from the cache while it is fresh and otherwise runs fn.
// Concurrent callers for the same key share one fn call. When fn fails the
// last known value, if any, is returned along with the error.
func Fetch[T any](ctx context.Context, c *Client, key Key, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	if e, ok := c.Get(key); ok && !e.Stale(c.now()) {
		var out T
		if err := json.Unmarshal(e.Data, &out); err == nil {
			return out, nil
		}
	}
	return Refetch(ctx, c, key, policy, fn)
}

// Refetch runs fn regardless of staleness and stores the result.
//
// The shared fn call is detached from the caller's cancellation and bounded
// by the flight timeout instead: a caller whose ctx ends stops waiting and
// gets the last known value with ctx.Err(), while the other callers of the
// same key still receive the result.
func Refetch[T any](ctx context.Context, c *Client, key Key, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	ch := c.group.DoChan(key.String(), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()

		v, err := fn(flightCtx)
		if err != nil {
			return v, err
		}
		if _, err := c.Set(flightCtx, key, policy, v); err != nil {
			return v, err
		}
		return v, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(T), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	last, ok, _ := Peek[T](c, key)
	if ok {
		return last, err
	}
	var zero T
	return zero, err
}
