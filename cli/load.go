package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lmo-cli/client"
)

// errModelNotFound is returned by load when the registry has no such model
var errModelNotFound = errors.New("model not found in registry")

func newLoadCmd(app *App) *cobra.Command {
	var (
		filename string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "load <model-id>",
		Short: "Load a downloaded model for inference",
		Long: `Ask the server to load a model into memory.

The model id is checked against the registry before the request is sent.

Examples:
  lmo load microsoft/phi-2
  lmo load microsoft/phi-2 --filename phi-2.Q4_K_M.gguf
  lmo load microsoft/phi-2 --force    # Reload even if already loaded`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), app, args[0], filename, force)
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "specific model file to load")
	cmd.Flags().BoolVar(&force, "force", false, "reload the model even if it is already loaded")
	return cmd
}

func runLoad(ctx context.Context, app *App, modelID, filename string, force bool) error {
	out := app.Out

	if _, err := checkServerHealth(ctx, app); err != nil {
		reportError(out, "Server health check failed", err)
		return reported(err)
	}
	out.Blank()

	out.Header("Loading Model: " + modelID)
	out.Blank()

	out.Progress("Verifying model exists")
	list, err := app.Client.Models(ctx)
	if err != nil {
		out.ProgressFailed()
		reportError(out, "Failed to list models", err)
		return reported(err)
	}
	if !inRegistry(list.Models, modelID) {
		out.ProgressFailed()
		out.Warning(fmt.Sprintf("Model '%s' not found in available models registry.", modelID))
		out.Info("Use 'lmo models --search <term>' to find available models.")
		return reported(errModelNotFound)
	}
	out.ProgressDone()
	out.Success(fmt.Sprintf("Model '%s' found in registry", modelID))
	out.Blank()

	req := client.LoadRequest{ModelID: modelID}
	if filename != "" {
		req.Filename = &filename
	}
	if force {
		req.Config = &client.LoadConfig{ForceReload: true}
	}

	out.Progress("Sending load request to server")
	resp, err := app.Client.Load(ctx, req)
	if err != nil {
		out.ProgressFailed()
		if errors.Is(err, client.ErrLoadRejected) {
			out.Warning("Model load request failed: " + resp.Message)
			printSuggestions(out, err)
		} else {
			reportError(out, "Load request failed", err)
		}
		out.Blank()
		out.Subheader("Attempted Load Operation")
		out.KeyValue("Model ID", modelID)
		if filename != "" {
			out.KeyValue("Filename", filename)
		}
		out.KeyValue("Force Reload", fmt.Sprintf("%t", force))
		return reported(err)
	}
	out.ProgressDone()

	app.Logger.Info("model load initiated",
		zap.String("model_id", resp.ModelID),
		zap.Stringp("instance_id", resp.InstanceID))

	out.Success("Model load initiated: " + resp.ModelID)
	if resp.InstanceID != nil {
		out.KeyValue("Instance ID", *resp.InstanceID)
	}
	if resp.Message != "" {
		out.KeyValue("Message", resp.Message)
	}
	if resp.DurationMs != nil {
		out.KeyValue("Response Time", fmt.Sprintf("%dms", *resp.DurationMs))
	}
	if resp.InstanceID != nil {
		out.Blank()
		out.Info("Unload it later with: lmo unload " + *resp.InstanceID)
	}
	return nil
}

// inRegistry matches exact ids first, then ids that contain the query
func inRegistry(models []client.ModelInfo, modelID string) bool {
	for _, m := range models {
		if m.ID == modelID {
			return true
		}
	}
	for _, m := range models {
		if strings.Contains(m.ID, modelID) {
			return true
		}
	}
	return false
}

func newUnloadCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload <instance-id>",
		Short: "Unload a running model instance",
		Long: `Ask the server to release a loaded model instance and its memory.

Examples:
  lmo unload 3f2a9c1e-7b44-4d0e-9a51-2c8e6d1f0b7a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnload(cmd.Context(), app, args[0])
		},
	}
	return cmd
}

func runUnload(ctx context.Context, app *App, instanceID string) error {
	out := app.Out

	if _, err := checkServerHealth(ctx, app); err != nil {
		reportError(out, "Server health check failed", err)
		return reported(err)
	}
	out.Blank()

	out.Header("Unloading Model Instance: " + instanceID)
	out.Blank()

	out.Progress("Sending unload request to server")
	resp, err := app.Client.Unload(ctx, instanceID)
	if err != nil {
		out.ProgressFailed()
		if errors.Is(err, client.ErrUnloadRejected) {
			out.Warning("Model unload failed: " + resp.Message)
		} else {
			reportError(out, "Unload request failed", err)
		}
		out.Blank()
		out.Subheader("Attempted Unload Operation")
		out.KeyValue("Instance ID", instanceID)
		return reported(err)
	}
	out.ProgressDone()

	app.Logger.Info("model unloaded",
		zap.String("model_id", resp.ModelID),
		zap.String("instance_id", instanceID),
		zap.Uint64("memory_freed_bytes", resp.MemoryFreedBytes))

	out.Success("Model unloaded: " + resp.ModelID)
	out.KeyValue("Instance ID", instanceID)
	out.KeyValue("Memory Freed", fmt.Sprintf("%.1f MB", float64(resp.MemoryFreedBytes)/(1024*1024)))
	out.KeyValue("Duration", fmt.Sprintf("%dms", resp.DurationMs))
	return nil
}
