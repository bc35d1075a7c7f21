package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lmo-cli/client"
)

// errUnhealthy is returned when the server answers but reports a bad status
var errUnhealthy = errors.New("server reported an unhealthy status")

func newHealthCmd(app *App) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the lmo server is up",
		Long: `Query the server's health endpoint.

Examples:
  lmo health               # One-line status
  lmo health --detailed    # Version, uptime and server time`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd.Context(), app, detailed)
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show version, uptime and server time")
	return cmd
}

func runHealth(ctx context.Context, app *App, detailed bool) error {
	out := app.Out

	health, err := app.Client.Health(ctx)
	if err != nil {
		reportError(out, "Server is not reachable", err)
		return reported(err)
	}

	if !health.Healthy() {
		out.Warning(fmt.Sprintf("Server status: %s", health.Status))
		if detailed {
			printHealthDetails(out, health)
		}
		return reported(errUnhealthy)
	}

	if !detailed {
		out.Success(fmt.Sprintf("Server is healthy (version %s)", health.ServerVersion))
		return nil
	}

	out.Header("Server Health")
	printHealthDetails(out, health)
	return nil
}

func printHealthDetails(out *Output, health *client.HealthResponse) {
	out.KeyValue("Status", health.Status)
	out.KeyValue("Version", health.ServerVersion)
	out.KeyValue("Uptime", formatUptime(health.UptimeSeconds))
	if health.Timestamp != "" {
		out.KeyValue("Server Time", health.Timestamp)
	}
}

func formatUptime(seconds uint64) string {
	return (time.Duration(seconds) * time.Second).String()
}

// checkServerHealth is the pre-flight check run before commands that
// change or query server state
func checkServerHealth(ctx context.Context, app *App) (*client.HealthResponse, error) {
	app.Out.Progress("Checking server health")
	health, err := app.Client.Health(ctx)
	if err != nil {
		app.Out.ProgressFailed()
		return nil, err
	}
	if !health.Healthy() {
		app.Out.ProgressFailed()
		return health, fmt.Errorf("%w: %s", errUnhealthy, health.Status)
	}
	app.Out.ProgressDone()
	app.Logger.Debug("server is healthy", zap.String("server_version", health.ServerVersion))
	return health, nil
}
