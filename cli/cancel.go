package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <download-id>",
		Short: "Cancel a running download",
		Long: `Ask the server to cancel a download started earlier.

The download ID is printed by 'lmo download' once the server accepts the
request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			app.Logger.Debug("requesting cancellation", zap.String("download_id", id))

			if err := app.Client.Cancel(cmd.Context(), id); err != nil {
				reportError(app.Out, "Failed to cancel download", err)
				return reported(err)
			}
			app.Out.Success(fmt.Sprintf("Cancellation requested for download %s", id))
			return nil
		},
	}
}
