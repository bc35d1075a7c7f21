package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"lmo-cli/downloader"
)

type downloadOptions struct {
	format     string
	force      bool
	directory  string
	noProgress bool
}

func newDownloadCmd(app *App) *cobra.Command {
	opts := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model and follow its progress",
		Long: `Ask the server to download a model and follow the download until it
completes, fails or is cancelled.

Press Ctrl-C once to request cancellation; the command then waits for the
server to confirm. A second Ctrl-C exits immediately.

Examples:
  lmo download microsoft/DialoGPT-small
  lmo download TheBloke/Llama-2-7B-GGUF --format gguf
  lmo download microsoft/phi-2 --force --directory /models/phi`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, app, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "", "preferred model format (e.g. gguf, safetensors)")
	f.BoolVar(&opts.force, "force", false, "download again even if the model is present")
	f.StringVar(&opts.directory, "directory", "", "directory on the server to download into")
	f.BoolVar(&opts.noProgress, "no-progress", false, "print status changes only, without a progress bar")
	return cmd
}

func runDownload(cmd *cobra.Command, app *App, model string, opts *downloadOptions) error {
	ctx := cmd.Context()
	out := app.Out

	if _, err := checkServerHealth(ctx, app); err != nil {
		reportError(out, "Server health check failed", err)
		return reported(err)
	}
	out.Blank()

	out.Header("Downloading Model: " + model)
	out.Blank()

	if !strings.Contains(model, "/") {
		out.Warning("Model name should include organization/repository (e.g., 'microsoft/DialoGPT-small')")
		out.Info("Attempting to download anyway...")
	}

	req := downloader.DownloadRequest{
		ModelName:       model,
		ForceRedownload: opts.force,
	}

	out.Subheader("Download Configuration")
	out.KeyValue("Model Name", model)
	if opts.format != "" {
		req.FormatHint = &opts.format
		out.KeyValue("Format Hint", opts.format)
	}
	if opts.force {
		out.KeyValue("Force Re-download", "Yes")
	}
	if opts.directory != "" {
		req.CustomDirectory = &opts.directory
		out.KeyValue("Custom Directory", opts.directory)
	}
	out.Blank()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	release := sync.OnceFunc(func() { signal.Stop(interrupts) })
	defer release()

	w := cmd.OutOrStdout()
	renderer := downloader.NewTerminalRenderer(downloader.TerminalOptions{
		Output:  w,
		Quiet:   opts.noProgress || !isTerminal(w),
		NoColor: app.Config.NoColor,
	})

	session := downloader.NewSession(downloader.SessionConfig{
		Service:    app.Client,
		Renderer:   renderer,
		Logger:     app.Logger,
		Interrupts: interrupts,
		Release:    release,
		Consumer: []downloader.ConsumerOption{
			downloader.WithWaitTimeout(app.Config.StreamWaitTimeout),
			downloader.WithMaxTimeouts(app.Config.MaxStreamTimeouts),
		},
		OnStarted: func(handle downloader.DownloadHandle) {
			out.KeyValue("Download ID", handle.ID)
			if handle.EstimatedSizeBytes != nil {
				out.KeyValue("Estimated Size", downloader.FormatBytes(*handle.EstimatedSizeBytes))
			}
			out.Blank()
		},
	})

	outcome, err := session.Run(ctx, req)
	if err != nil {
		what := "Failed to communicate with server"
		if downloader.IsDownloadError(err, downloader.ErrorInvalidRequest) {
			what = "Server rejected the download request"
		}
		reportError(out, what, err)
		return reported(err)
	}

	out.Blank()
	if outcome.Success() {
		out.Success("Model is now available for loading with 'lmo load'")
		return nil
	}

	_, hint := downloader.OutcomeMessage(outcome)
	if hint != "" {
		out.Info(hint)
	}
	if outcome.Kind == downloader.OutcomeFailed {
		out.Blank()
		out.Subheader("Attempted Download Operation")
		out.KeyValue("Model Name", model)
		if opts.format != "" {
			out.KeyValue("Format Hint", opts.format)
		}
		if opts.force {
			out.KeyValue("Force Re-download", "Yes")
		}
	}
	return reported(fmt.Errorf("%w: %s", ErrNotCompleted, outcome.Kind))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
