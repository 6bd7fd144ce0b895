package cli

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/auth"
)

func newBalanceCommand(opts *options) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "balance <asset-id>",
		Short: "Show the on-chain balance of an asset",
		Long:  `Read the MVM balance of an asset for the wallet, through the native balance or the asset contract.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := opts.openBridge(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			wallet := b.Wallet.Address()
			if address != "" {
				if !auth.ValidateEVMAddress(address) {
					return apperrors.ValidationError("address", "invalid wallet address")
				}
				wallet = common.HexToAddress(address)
			}

			balance, err := b.Resolver.BalanceOf(cmd.Context(), args[0], wallet)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Account to read (defaults to the configured wallet)")
	return cmd
}
