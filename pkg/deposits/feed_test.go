package deposits

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

var base = time.Date(2022, 5, 1, 10, 0, 0, 0, time.UTC)

func deposit(id, asset string, minutes, confirmations int) mixin.Deposit {
	return mixin.Deposit{
		TransactionID: id,
		AssetID:       asset,
		Amount:        "0.5",
		Confirmations: confirmations,
		Threshold:     12,
		CreatedAt:     base.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestDedup_CollapsesSharedAddresses(t *testing.T) {
	assets := []mixin.Asset{
		{AssetID: "b-eth", Destination: "0xabc"},
		{AssetID: "a-usdt", Destination: "0xabc"},
		{AssetID: "c-eos", Destination: "eoswallet", Tag: "memo-1"},
		{AssetID: "d-eos-token", Destination: "eoswallet", Tag: "memo-1"},
		{AssetID: "e-other", Destination: "eoswallet", Tag: "memo-2"},
	}

	keys := Dedup(assets)
	require.Len(t, keys, 3)
	assert.Equal(t, []RequestKey{
		{AssetID: "a-usdt", Destination: "0xabc"},
		{AssetID: "c-eos", Destination: "eoswallet", Tag: "memo-1"},
		{AssetID: "e-other", Destination: "eoswallet", Tag: "memo-2"},
	}, keys)

	// input order never changes the winner
	reversed := []mixin.Asset{assets[4], assets[3], assets[2], assets[1], assets[0]}
	assert.Equal(t, keys, Dedup(reversed))
}

func TestDedup_PropertyDistinctAddresses(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	destinations := []string{"0xa", "0xb", "0xc"}
	tags := []string{"", "t1"}

	for round := 0; round < 50; round++ {
		var assets []mixin.Asset
		distinct := map[[2]string]bool{}
		for i := 0; i < rng.Intn(20)+1; i++ {
			d := destinations[rng.Intn(len(destinations))]
			tag := tags[rng.Intn(len(tags))]
			distinct[[2]string{d, tag}] = true
			assets = append(assets, mixin.Asset{AssetID: string(rune('a'+i)) + "-asset", Destination: d, Tag: tag})
		}
		assert.Len(t, Dedup(assets), len(distinct))
	}
}

func TestUnion_ByAssetID(t *testing.T) {
	identity := []mixin.Asset{{AssetID: "a", Symbol: "A"}, {AssetID: "b", Symbol: "B"}}
	ambient := []mixin.Asset{{AssetID: "b", Symbol: "B2"}, {AssetID: "c", Symbol: "C"}, {}}

	got := Union(identity, ambient)
	require.Len(t, got, 3)
	assert.Equal(t, "B2", got[1].Symbol)
	assert.Empty(t, Union())
}

func TestMerge_SortedNewestFirstWithoutDuplicates(t *testing.T) {
	results := map[RequestKey][]mixin.Deposit{
		{AssetID: "a", Destination: "0xa"}: {deposit("tx-1", "a", 1, 3), deposit("tx-2", "a", 5, 1)},
		{AssetID: "b", Destination: "0xb"}: {deposit("tx-3", "b", 3, 12), deposit("tx-1", "a", 1, 7)},
		{AssetID: "c", Destination: "0xc"}: nil,
	}

	feed := Merge(results)
	require.Len(t, feed, 3)
	assert.Equal(t, []string{"tx-2", "tx-3", "tx-1"}, ids(feed))
	assert.Equal(t, 7, feed[2].Confirmations, "higher confirmation count wins")

	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}
}

func TestMerge_IdempotentAndOrderIndependent(t *testing.T) {
	records := []mixin.Deposit{
		deposit("tx-1", "a", 1, 1),
		deposit("tx-1", "a", 1, 2),
		deposit("tx-2", "a", 1, 2),
		deposit("tx-3", "b", 9, 0),
		deposit("tx-4", "b", 4, 12),
	}

	rng := rand.New(rand.NewSource(42))
	var want []mixin.Deposit
	for round := 0; round < 25; round++ {
		shuffled := append([]mixin.Deposit(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		results := map[RequestKey][]mixin.Deposit{
			{AssetID: "a", Destination: "0xa"}: shuffled[:2],
			{AssetID: "b", Destination: "0xb"}: shuffled[2:],
			// the same records fed twice
			{AssetID: "c", Destination: "0xc"}: shuffled,
		}
		got := Merge(results)
		if want == nil {
			want = got
			continue
		}
		assert.Equal(t, want, got)
	}

	// tx-1 and tx-2 share created_at, transaction_id breaks the tie
	assert.Equal(t, []string{"tx-3", "tx-4", "tx-1", "tx-2"}, ids(want))
}

func TestMerge_EmptyInputsYieldEmptyFeed(t *testing.T) {
	feed := Merge(nil)
	require.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestMerge_ReturnsFreshSlice(t *testing.T) {
	results := map[RequestKey][]mixin.Deposit{{AssetID: "a"}: {deposit("tx-1", "a", 1, 1)}}
	first := Merge(results)
	second := Merge(results)
	first[0].Amount = "mutated"
	assert.Equal(t, "0.5", second[0].Amount)
	assert.Equal(t, "0.5", results[RequestKey{AssetID: "a"}][0].Amount)
}

func ids(feed []mixin.Deposit) []string {
	out := make([]string, 0, len(feed))
	for _, d := range feed {
		out = append(out, d.TransactionID)
	}
	return out
}
