package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/chainsafe/mvm-bridge/pkg/transfer"
)

func newTransferCommand(opts *options) *cobra.Command {
	var intent transfer.Intent

	cmd := &cobra.Command{
		Use:   "transfer <asset-id>",
		Short: "Transfer an asset to a custodial user",
		Long: `Resolve the recipient and dispatch a single contract write moving the amount of the asset.
The command waits until the wallet accepted or rejected the transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cleanup, err := opts.openBridge(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			o, err := b.Transfer.For(args[0])
			if err != nil {
				return err
			}
			if _, err := o.Submit(cmd.Context(), intent); err != nil {
				return err
			}

			snap, err := o.Wait(cmd.Context())
			if err != nil {
				_, _ = o.Dismiss()
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), snap); perr != nil {
				return perr
			}

			if lastErr := o.LastError(); lastErr != nil {
				return lastErr
			}
			if snap.State != transfer.Succeeded {
				return errors.New("transfer did not complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&intent.RecipientUserID, "to", "", "Recipient custodial user id")
	cmd.Flags().StringVar(&intent.Amount, "amount", "", "Amount to transfer")
	cmd.Flags().StringVar(&intent.Memo, "memo", "", "Memo carried with the transfer")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
