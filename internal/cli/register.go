package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/mvm-bridge/pkg/identity"
)

func newRegisterCommand(opts *options) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the wallet with the bridge",
		Long:  `Sign the bridge registration challenge with the wallet and store the issued custodial identity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, cleanup, err := opts.openBridge(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id, err := b.Identity.Register(cmd.Context(), address)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), identity.Response{
				RegisteredIdentity: id.Public(),
				TransferURL:        id.TransferURL(),
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Wallet address to register (defaults to the configured wallet)")
	return cmd
}
