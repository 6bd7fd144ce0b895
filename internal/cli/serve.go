package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/mvm-bridge/pkg/app"
	"github.com/chainsafe/mvm-bridge/pkg/app/bridge"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		Long:  `Start deposit aggregation and serve the registrar, gateway, resolver and transfer endpoints over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			var runner app.Runner = bridge.NewServer(cfg, opts.approver(cfg))
			return runner.Run()
		},
	}
}
