// Package deposits derives one live, duplicate-free deposit feed across every
// asset the user has touched.
package deposits

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/chainsafe/mvm-bridge/internal/metrics"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// AssetIndex is the shared asset_id -> descriptor registry. Writers add or
// refresh descriptors; readers always see a complete map because every write
// publishes a new copy.
type AssetIndex struct {
	assets atomic.Pointer[map[string]mixin.Asset]

	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
}

// NewAssetIndex creates an empty index
func NewAssetIndex() *AssetIndex {
	idx := &AssetIndex{listeners: make(map[int]func())}
	empty := map[string]mixin.Asset{}
	idx.assets.Store(&empty)
	return idx
}

// Put adds or refreshes descriptors. Listeners are notified once if anything changed.
func (i *AssetIndex) Put(assets ...mixin.Asset) {
	i.mu.Lock()
	current := *i.assets.Load()

	var next map[string]mixin.Asset
	for _, a := range assets {
		if a.AssetID == "" {
			continue
		}
		if old, ok := current[a.AssetID]; ok && old == a {
			continue
		}
		if next == nil {
			next = make(map[string]mixin.Asset, len(current)+len(assets))
			for k, v := range current {
				next[k] = v
			}
		}
		next[a.AssetID] = a
	}
	if next == nil {
		i.mu.Unlock()
		return
	}

	i.assets.Store(&next)
	metrics.IndexedAssets.Set(float64(len(next)))
	listeners := make([]func(), 0, len(i.listeners))
	for _, l := range i.listeners {
		listeners = append(listeners, l)
	}
	i.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

// Get returns the descriptor of assetID
func (i *AssetIndex) Get(assetID string) (mixin.Asset, bool) {
	a, ok := (*i.assets.Load())[assetID]
	return a, ok
}

// All returns every descriptor ordered by asset_id
func (i *AssetIndex) All() []mixin.Asset {
	m := *i.assets.Load()
	out := make([]mixin.Asset, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].AssetID < out[b].AssetID })
	return out
}

// Len returns the number of indexed descriptors
func (i *AssetIndex) Len() int {
	return len(*i.assets.Load())
}

// Subscribe registers fn to be called after every change. The returned func unsubscribes.
func (i *AssetIndex) Subscribe(fn func()) func() {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := i.nextID
	i.nextID++
	i.listeners[id] = fn

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.listeners, id)
	}
}
