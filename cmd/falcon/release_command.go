package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"falcon/internal/dispatch"
)

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <workflow-id>...",
		Short: "Release specific held workflows immediately",
		Long: "Release calls the engine's hold release for each id in order, bypassing the\n" +
			"work queue and the start interval. Rejected ids are reported but do not fail\n" +
			"the command; engine errors do.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := ctx.engineClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failed := 0
			for _, id := range args {
				err := client.Start(cmd.Context(), id)
				switch dispatch.OutcomeOf(err) {
				case dispatch.OutcomeStarted:
					fmt.Fprintln(out, renderStatusLine(id, statusOK, "released", colorize))
				case dispatch.OutcomeRejected:
					fmt.Fprintln(out, renderStatusLine(id, statusWarn, "not startable: "+err.Error(), colorize))
				default:
					failed++
					fmt.Fprintln(out, renderStatusLine(id, statusError, err.Error(), colorize))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d release(s) failed", failed, len(args))
			}
			return nil
		},
	}
}
