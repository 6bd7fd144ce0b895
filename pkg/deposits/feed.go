package deposits

import (
	"sort"

	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

// Merge flattens per-key results into one feed: nil results are skipped,
// records are deduplicated by transaction_id and the feed is sorted newest
// first. The output depends only on the set of inputs, never on their order,
// and is always a new slice.
func Merge(results map[RequestKey][]mixin.Deposit) []mixin.Deposit {
	byID := make(map[string]mixin.Deposit)
	for _, records := range results {
		for _, d := range records {
			if d.TransactionID == "" {
				continue
			}
			if cur, ok := byID[d.TransactionID]; ok && !supersedes(d, cur) {
				continue
			}
			byID[d.TransactionID] = d
		}
	}

	feed := make([]mixin.Deposit, 0, len(byID))
	for _, d := range byID {
		feed = append(feed, d)
	}
	sort.Slice(feed, func(i, j int) bool {
		if !feed[i].CreatedAt.Equal(feed[j].CreatedAt) {
			return feed[i].CreatedAt.After(feed[j].CreatedAt)
		}
		return feed[i].TransactionID < feed[j].TransactionID
	})
	return feed
}

// supersedes reports whether a should replace b for the same transaction.
// More confirmations win; the remaining comparisons only make the choice
// total so that merge order never matters.
func supersedes(a, b mixin.Deposit) bool {
	if a.Confirmations != b.Confirmations {
		return a.Confirmations > b.Confirmations
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.State != b.State {
		return a.State > b.State
	}
	if a.AssetID != b.AssetID {
		return a.AssetID < b.AssetID
	}
	if a.Amount != b.Amount {
		return a.Amount < b.Amount
	}
	if a.Threshold != b.Threshold {
		return a.Threshold < b.Threshold
	}
	if a.TransactionHash != b.TransactionHash {
		return a.TransactionHash < b.TransactionHash
	}
	if a.Destination != b.Destination {
		return a.Destination < b.Destination
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	if a.ChainID != b.ChainID {
		return a.ChainID < b.ChainID
	}
	return a.Sender < b.Sender
}
