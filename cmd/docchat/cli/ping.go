package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"doc-chat/cmd/docchat/clients/ingestclient"
)

const pingTimeout = 5 * time.Second

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the doc-chat server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
			defer cancel()

			baseURL := opts.cfg.Client.BaseURL
			if err := ingestclient.New(baseURL, pingTimeout).Health(ctx); err != nil {
				return fmt.Errorf("server %s is not reachable: %w", baseURL, err)
			}
			newRenderer(cmd.OutOrStdout(), opts.plain).status("Server %s is up", baseURL)
			return nil
		},
	}
}
