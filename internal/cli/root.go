// Package cli implements the mvm-bridge command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/pkg/app/bridge"
	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
)

type options struct {
	configPath string
	yes        bool
}

// NewRootCommand returns the mvm-bridge root command with every subcommand attached
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "mvm-bridge",
		Short:         "MVM asset bridge client",
		Long:          `mvm-bridge registers an EVM wallet with the bridge, follows custodial deposits and moves assets on MVM.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (defaults and MVM_BRIDGE_* env only when empty)")
	cmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "Approve every wallet request without prompting")

	cmd.AddCommand(
		newServeCommand(opts),
		newRegisterCommand(opts),
		newAssetsCommand(opts),
		newDepositsCommand(opts),
		newBalanceCommand(opts),
		newTransferCommand(opts),
		newConfigCommand(),
	)

	return cmd
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (o *options) approver(cfg *config.Config) keys.Approver {
	if o.yes || !cfg.Wallet.RequireConfirmation {
		return keys.AutoApprove
	}
	return PromptApprover(os.Stdin, os.Stderr)
}

// openBridge builds the client for a one-shot command. The returned func
// releases every resource.
func (o *options) openBridge(ctx context.Context) (*bridge.Bridge, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	b, err := bridge.Build(ctx, cfg, logger, o.approver(cfg))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close bridge client", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return b, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
