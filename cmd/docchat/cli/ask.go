package cli

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var errTurnFailed = errors.New("the question could not be answered")

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Upload a document, ask one question and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := opts.newApp(ctx, cmd.OutOrStdout())
			defer a.ws.Abandon()

			cs, err := a.open(ctx, args[:1])
			if err != nil {
				return err
			}

			msg, err := cs.Ask(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			a.out.message(msg)
			if msg.Failed {
				return errTurnFailed
			}
			return nil
		},
	}
}
