package deposits

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

const (
	// DefaultInterval is the polling cadence of each aggregated subscription
	DefaultInterval = 12 * time.Second
	// DefaultLimit is the deposit history window fetched per poll
	DefaultLimit = 500
)

// ErrNotStarted is returned by Sync before Start
var ErrNotStarted = errors.New("deposit engine not started")

// Source fetches the deposit history of one request key. A key without an
// asset id covers every asset received at its address.
type Source interface {
	Deposits(ctx context.Context, key RequestKey, limit int) ([]mixin.Deposit, error)
}

// LastKnownSource is a Source that can serve the history it last stored for
// a key without a network call. The engine seeds new subscriptions from it.
type LastKnownSource interface {
	Source
	LastDeposits(key RequestKey, limit int) ([]mixin.Deposit, bool)
}

// AssetLister fetches the asset list of the registered identity
type AssetLister interface {
	AssetsOfIdentity(ctx context.Context) ([]mixin.Asset, error)
}

// FeedListener receives every new aggregated feed
type FeedListener func([]mixin.Deposit)

// Option configures the Engine
type Option func(*Engine)

// WithInterval overrides the polling interval
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLimit overrides the per poll history window
func WithLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.limit = limit
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

type subscription struct {
	key    RequestKey
	cancel context.CancelFunc
}

// Engine keeps one polling subscription per distinct deposit address and
// publishes the merged feed whenever any of them changes.
type Engine struct {
	source   Source
	lister   AssetLister
	index    *AssetIndex
	interval time.Duration
	limit    int
	logger   *zap.Logger

	// publishMu orders feed publication so listeners never see an older
	// feed after a newer one. Listeners must not call Sync.
	publishMu sync.Mutex

	mu             sync.Mutex
	ctx            context.Context
	stopIndex      func()
	enabled        bool
	identityAssets []mixin.Asset
	subs           map[RequestKey]*subscription
	results        map[RequestKey][]mixin.Deposit
	feed           []mixin.Deposit
	listeners      map[int]FeedListener
	nextListener   int
	wg             sync.WaitGroup
}

// NewEngine creates a deposit aggregation engine reading the shared index
func NewEngine(source Source, lister AssetLister, index *AssetIndex, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		lister:    lister,
		index:     index,
		interval:  DefaultInterval,
		limit:     DefaultLimit,
		logger:    zap.NewNop(),
		subs:      make(map[RequestKey]*subscription),
		results:   make(map[RequestKey][]mixin.Deposit),
		feed:      []mixin.Deposit{},
		listeners: make(map[int]FeedListener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start binds the engine to ctx and follows the asset index.
// Polling only begins once an identity is set.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	stop := e.index.Subscribe(func() {
		if err := e.Sync(); err != nil {
			e.logger.Debug("Deposit sync skipped", zap.Error(err))
		}
	})

	e.mu.Lock()
	e.stopIndex = stop
	e.mu.Unlock()

	_ = e.Sync()
}

// SetIdentity enables or disables polling. Enabling refreshes the identity's
// asset list in the background; disabling cancels every subscription and
// drops their results.
func (e *Engine) SetIdentity(registered bool) {
	e.mu.Lock()
	e.enabled = registered
	if !registered {
		e.identityAssets = nil
	}
	ctx := e.ctx
	e.mu.Unlock()

	if registered && ctx != nil && e.lister != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.refreshIdentityAssets(ctx)
		}()
	}
	_ = e.Sync()
}

// RefreshAssets refetches the identity's asset list and resyncs
func (e *Engine) RefreshAssets(ctx context.Context) error {
	if e.lister == nil {
		return e.Sync()
	}
	assets, err := e.lister.AssetsOfIdentity(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.enabled {
		e.identityAssets = assets
	}
	e.mu.Unlock()
	return e.Sync()
}

func (e *Engine) refreshIdentityAssets(ctx context.Context) {
	if err := e.RefreshAssets(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warn("Failed to load identity assets", zap.Error(err))
	}
}

// Sync recomputes the request set from the identity assets and the index,
// starting and cancelling subscriptions as needed. A new subscription starts
// from the last known history of its address when the source keeps one.
func (e *Engine) Sync() error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	if e.ctx == nil {
		e.mu.Unlock()
		return ErrNotStarted
	}

	desired := make(map[RequestKey]struct{})
	if e.enabled && e.ctx.Err() == nil {
		for _, k := range Dedup(Union(e.identityAssets, e.index.All())) {
			if k.Enabled() {
				desired[k] = struct{}{}
			}
		}
	}

	changed := false
	for k, sub := range e.subs {
		if _, ok := desired[k]; ok {
			continue
		}
		sub.cancel()
		delete(e.subs, k)
		if _, had := e.results[k]; had {
			delete(e.results, k)
			changed = true
		}
	}

	lastKnown, _ := e.source.(LastKnownSource)
	for k := range desired {
		if _, ok := e.subs[k]; ok {
			continue
		}
		if lastKnown != nil {
			if records, ok := lastKnown.LastDeposits(k.Address(), e.limit); ok {
				if records == nil {
					records = []mixin.Deposit{}
				}
				e.results[k] = records
				changed = true
			}
		}
		ctx, cancel := context.WithCancel(e.ctx)
		sub := &subscription{key: k, cancel: cancel}
		e.subs[k] = sub
		e.wg.Add(1)
		go e.poll(ctx, sub)
	}
	metrics.ActiveSubscriptions.Set(float64(len(e.subs)))

	var listeners []FeedListener
	var feed []mixin.Deposit
	if changed {
		feed, listeners = e.republishLocked()
	}
	e.mu.Unlock()

	notify(listeners, feed)
	return nil
}

func (e *Engine) poll(ctx context.Context, sub *subscription) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.pollOnce(ctx, sub)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context, sub *subscription) {
	records, err := e.source.Deposits(ctx, sub.key.Address(), e.limit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.DepositPolls.WithLabelValues("bulk", "error").Inc()
		e.logger.Debug("Deposit poll failed",
			zap.String("asset_id", sub.key.AssetID),
			zap.String("destination", sub.key.Destination),
			zap.Error(err))
		return
	}
	metrics.DepositPolls.WithLabelValues("bulk", "ok").Inc()

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	e.mu.Lock()
	// a cancelled or replaced subscription never contributes
	if ctx.Err() != nil || e.subs[sub.key] != sub {
		e.mu.Unlock()
		return
	}
	if prev, ok := e.results[sub.key]; ok && slices.Equal(prev, records) {
		e.mu.Unlock()
		return
	}
	if records == nil {
		records = []mixin.Deposit{}
	}
	e.results[sub.key] = records
	feed, listeners := e.republishLocked()
	e.mu.Unlock()

	notify(listeners, feed)
}

func (e *Engine) republishLocked() ([]mixin.Deposit, []FeedListener) {
	feed := Merge(e.results)
	if slices.Equal(feed, e.feed) {
		return nil, nil
	}
	e.feed = feed
	metrics.FeedSize.Set(float64(len(feed)))

	listeners := make([]FeedListener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	return feed, listeners
}

func notify(listeners []FeedListener, feed []mixin.Deposit) {
	for _, l := range listeners {
		l(feed)
	}
}

// Feed returns the current aggregated feed. The slice is never mutated.
func (e *Engine) Feed() []mixin.Deposit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed
}

// Subscribe registers l for feed updates. The returned func unsubscribes.
func (e *Engine) Subscribe(l FeedListener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// ActiveKeys returns the request keys currently being polled
func (e *Engine) ActiveKeys() []RequestKey {
	e.mu.Lock()
	keys := make([]RequestKey, 0, len(e.subs))
	for k := range e.subs {
		keys = append(keys, k)
	}
	e.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Destination != keys[j].Destination {
			return keys[i].Destination < keys[j].Destination
		}
		return keys[i].Tag < keys[j].Tag
	})
	return keys
}

// Stop cancels every subscription and waits for pollers to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopIndex != nil {
		e.stopIndex()
		e.stopIndex = nil
	}
	for k, sub := range e.subs {
		sub.cancel()
		delete(e.subs, k)
	}
	e.enabled = false
	metrics.ActiveSubscriptions.Set(0)
	e.mu.Unlock()

	e.wg.Wait()
}
