package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(app *App) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status and model counts",
		Long: `Summarize the server's health together with the models it offers.

Examples:
  lmo status               # One-line summary
  lmo status --detailed    # Version, uptime and model counts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), app, detailed)
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show version, uptime and model counts")
	return cmd
}

func runStatus(ctx context.Context, app *App, detailed bool) error {
	out := app.Out

	health, err := checkServerHealth(ctx, app)
	if err != nil {
		reportError(out, "Server health check failed", err)
		return reported(err)
	}

	models, err := app.Client.Models(ctx)
	if err != nil {
		reportError(out, "Failed to list models", err)
		return reported(err)
	}
	available := uint64(len(models.Models))
	total := available
	if models.Total != nil {
		total = *models.Total
	}

	if !detailed {
		out.Success(fmt.Sprintf("Server is %s • %s models available • Uptime: %s",
			health.Status, formatCount(available), formatUptime(health.UptimeSeconds)))
		return nil
	}

	out.Blank()
	out.Header("Server Status")
	out.KeyValue("Status", health.Status)
	out.KeyValue("Version", health.ServerVersion)
	out.KeyValue("Uptime", formatUptime(health.UptimeSeconds))
	out.KeyValue("Server URL", app.Config.ServerURL)
	out.Blank()
	out.Subheader("Models")
	out.KeyValue("Available", formatCount(available))
	out.KeyValue("Total in Registry", formatCount(total))
	return nil
}
