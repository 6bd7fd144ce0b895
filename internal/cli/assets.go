package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

func newAssetsCommand(opts *options) *cobra.Command {
	var (
		top       bool
		whitelist bool
		refetch   bool
	)

	cmd := &cobra.Command{
		Use:   "assets [asset-id]",
		Short: "List custodial assets",
		Long:  `List the assets of the registered identity, the network's top assets, or a single asset descriptor.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := opts.openBridge(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if len(args) == 1 {
				asset, err := b.Gateway.Asset(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), asset)
			}

			var assets []mixin.Asset
			switch {
			case top && whitelist:
				assets, err = b.Gateway.WhitelistedTopAssets(ctx)
			case top:
				assets, err = b.Gateway.TopAssets(ctx)
			case refetch:
				assets, err = b.Gateway.RefetchAssets(ctx)
			default:
				assets, err = b.Gateway.AssetsOfIdentity(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), assets)
		},
	}

	cmd.Flags().BoolVar(&top, "top", false, "List the network's top assets")
	cmd.Flags().BoolVar(&whitelist, "whitelist", false, "With --top, keep only whitelisted assets")
	cmd.Flags().BoolVar(&refetch, "refetch", false, "Refetch the identity's asset list")
	return cmd
}
