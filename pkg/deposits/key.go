package deposits

import (
	"sort"

	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// RequestKey is the unit of deposit polling
type RequestKey struct {
	AssetID     string `json:"asset_id"`
	Destination string `json:"destination"`
	Tag         string `json:"tag"`
}

// KeyOf projects an asset descriptor to its request key
func KeyOf(a mixin.Asset) RequestKey {
	return RequestKey{AssetID: a.AssetID, Destination: a.Destination, Tag: a.Tag}
}

// Address drops the asset from k so a poll covers every asset sent to the
// deposit address
func (k RequestKey) Address() RequestKey {
	return RequestKey{Destination: k.Destination, Tag: k.Tag}
}

// Enabled reports whether the key has a resolved deposit address
func (k RequestKey) Enabled() bool {
	return k.Destination != ""
}

type address struct {
	destination string
	tag         string
}

// Union merges descriptor sets by asset_id. Later sets refresh earlier ones.
func Union(sets ...[]mixin.Asset) []mixin.Asset {
	byID := make(map[string]mixin.Asset)
	for _, set := range sets {
		for _, a := range set {
			if a.AssetID == "" {
				continue
			}
			byID[a.AssetID] = a
		}
	}
	out := make([]mixin.Asset, 0, len(byID))
	for _, a := range byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Dedup projects assets to request keys and keeps one key per
// (destination, tag). The smallest asset_id represents each address.
// The result is ordered by destination then tag.
func Dedup(assets []mixin.Asset) []RequestKey {
	winners := make(map[address]RequestKey, len(assets))
	for _, a := range assets {
		k := KeyOf(a)
		addr := address{destination: k.Destination, tag: k.Tag}
		if cur, ok := winners[addr]; ok && cur.AssetID <= k.AssetID {
			continue
		}
		winners[addr] = k
	}

	out := make([]RequestKey, 0, len(winners))
	for _, k := range winners {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Destination != out[j].Destination {
			return out[i].Destination < out[j].Destination
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
