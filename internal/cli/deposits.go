package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/mvm-bridge/pkg/app/bridge"
	"github.com/chainsafe/mvm-bridge/pkg/deposits"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

func newDepositsCommand(opts *options) *cobra.Command {
	var (
		assetID string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "deposits",
		Short: "Show pending deposits",
		Long: `Show the aggregated deposit feed of every known asset, or the deposits of one asset with --asset.
With --watch the feed is printed again whenever it changes until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, cleanup, err := opts.openBridge(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if assetID != "" {
				return assetDeposits(cmd.Context(), b, out, assetID, watch)
			}
			if watch {
				return watchFeed(cmd.Context(), b, out)
			}
			return aggregateOnce(cmd.Context(), b, out)
		},
	}

	cmd.Flags().StringVar(&assetID, "asset", "", "Only show deposits of this asset")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling and print every change")
	return cmd
}

func assetDeposits(ctx context.Context, b *bridge.Bridge, out io.Writer, assetID string, watch bool) error {
	asset, err := b.Gateway.Asset(ctx, assetID)
	if err != nil {
		return err
	}
	key := deposits.KeyOf(asset)

	if !watch {
		records, err := b.Gateway.Deposits(ctx, key, b.Config.Deposits.Limit)
		if err != nil {
			return err
		}
		return printJSON(out, records)
	}

	err = b.Gateway.WatchDeposits(ctx, key, b.Config.Deposits.PollInterval, func(records []mixin.Deposit, err error) {
		if err != nil {
			b.Logger.Warn("Deposit poll failed", zap.String("asset_id", assetID), zap.Error(err))
			return
		}
		_ = printJSON(out, records)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// aggregateOnce polls every distinct deposit address once and prints the merged feed
func aggregateOnce(ctx context.Context, b *bridge.Bridge, out io.Writer) error {
	assets, err := b.Gateway.AssetsOfIdentity(ctx)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		results = make(map[deposits.RequestKey][]mixin.Deposit)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range deposits.Dedup(deposits.Union(b.Index.All(), assets)) {
		if !key.Enabled() {
			continue
		}
		g.Go(func() error {
			records, err := b.Gateway.Deposits(gctx, key.Address(), b.Config.Deposits.Limit)
			if err != nil {
				return fmt.Errorf("deposits of %s: %w", key.Destination, err)
			}
			mu.Lock()
			results[key] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return printJSON(out, deposits.Merge(results))
}

func watchFeed(ctx context.Context, b *bridge.Bridge, out io.Writer) error {
	unsubscribe := b.Deposits.Subscribe(func(feed []mixin.Deposit) {
		_ = printJSON(out, feed)
	})
	defer unsubscribe()

	b.Start(ctx)
	if err := b.Deposits.RefreshAssets(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
