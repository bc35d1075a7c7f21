package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lmo-cli/client"
	"lmo-cli/downloader"
)

type modelsOptions struct {
	local     bool
	search    string
	author    string
	tags      string
	pipeline  string
	sort      string
	direction string
	limit     int
}

func newModelsCmd(app *App) *cobra.Command {
	opts := &modelsOptions{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models in the registry or on the server",
		Long: `List models known to the lmo server.

Without --local the remote registry is listed; filters apply on the CLI side.

Examples:
  lmo models                              # Most downloaded models
  lmo models --search phi --limit 5       # Search by id
  lmo models --author microsoft --tags text-generation
  lmo models --local                      # Models already on the server`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd.Context(), app, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.local, "local", false, "list models already downloaded to the server")
	f.StringVar(&opts.search, "search", "", "only show models whose id contains this text")
	f.StringVar(&opts.author, "author", "", "only show models by this author")
	f.StringVar(&opts.tags, "tags", "", "comma-separated tags a model must all carry")
	f.StringVar(&opts.pipeline, "pipeline", "", "only show models with this pipeline tag")
	f.StringVar(&opts.sort, "sort", "downloads", "sort by downloads, id or updated")
	f.StringVar(&opts.direction, "direction", "desc", "sort direction: asc or desc")
	f.IntVar(&opts.limit, "limit", 20, "maximum number of models to show (0 for all)")
	return cmd
}

func (o *modelsOptions) validate() error {
	switch o.sort {
	case "downloads", "id", "updated":
	default:
		return fmt.Errorf("invalid --sort %q: use downloads, id or updated", o.sort)
	}
	switch o.direction {
	case "asc", "desc":
	default:
		return fmt.Errorf("invalid --direction %q: use asc or desc", o.direction)
	}
	if o.limit < 0 {
		return fmt.Errorf("invalid --limit %d: must not be negative", o.limit)
	}
	return nil
}

func runModels(ctx context.Context, app *App, opts *modelsOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	out := app.Out

	if _, err := checkServerHealth(ctx, app); err != nil {
		reportError(out, "Server health check failed", err)
		return reported(err)
	}

	if opts.local {
		return listLocalModels(ctx, app, opts)
	}

	out.Progress("Fetching models")
	list, err := app.Client.Models(ctx)
	if err != nil {
		out.ProgressFailed()
		reportError(out, "Failed to list models", err)
		return reported(err)
	}
	out.ProgressDone()
	out.Blank()

	models := filterModels(list.Models, opts)
	app.Logger.Debug("models fetched",
		zap.Int("received", len(list.Models)),
		zap.Int("matching", len(models)))

	if len(models) == 0 {
		out.Warning("No models found matching the criteria")
		return nil
	}

	shown := models
	if opts.limit > 0 && len(shown) > opts.limit {
		shown = shown[:opts.limit]
	}

	out.Header(fmt.Sprintf("Available Models (%d found)", len(models)))
	rows := make([][]string, 0, len(shown))
	for _, m := range shown {
		rows = append(rows, []string{
			truncate(m.ID, 48),
			truncate(deref(m.Author, "-"), 20),
			formatCount(m.Downloads),
			deref(m.PipelineTag, "-"),
			truncate(strings.Join(m.Tags, ", "), 32),
		})
	}
	out.Table([]string{"Model", "Author", "Downloads", "Pipeline", "Tags"}, rows)

	total := uint64(len(list.Models))
	if list.Total != nil {
		total = *list.Total
	}
	out.Info(fmt.Sprintf("Showing %d of %d total models", len(shown), total))
	return nil
}

func listLocalModels(ctx context.Context, app *App, opts *modelsOptions) error {
	out := app.Out

	out.Progress("Fetching local models")
	list, err := app.Client.LocalModels(ctx)
	if err != nil {
		out.ProgressFailed()
		reportError(out, "Failed to list local models", err)
		return reported(err)
	}
	out.ProgressDone()
	out.Blank()

	var models []client.LocalModel
	for _, m := range list.Models {
		if opts.search != "" && !containsFold(m.Filename, opts.search) {
			continue
		}
		models = append(models, m)
	}

	if len(models) == 0 {
		out.Warning("No local models found")
		out.Info("Download one with: lmo download <organization/model-name>")
		return nil
	}

	out.Header(fmt.Sprintf("Local Models (%d found)", len(models)))
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		state := "Available"
		if m.IsLoaded {
			state = "Loaded"
		}
		rows = append(rows, []string{
			truncate(m.Filename, 48),
			localFormat(m),
			downloader.FormatBytes(m.SizeBytes),
			state,
		})
	}
	out.Table([]string{"Filename", "Format", "Size", "Status"}, rows)
	return nil
}

func filterModels(models []client.ModelInfo, opts *modelsOptions) []client.ModelInfo {
	var wantTags []string
	for _, t := range strings.Split(opts.tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wantTags = append(wantTags, t)
		}
	}

	var matched []client.ModelInfo
	for _, m := range models {
		if opts.search != "" && !containsFold(m.ID, opts.search) {
			continue
		}
		if opts.author != "" && !strings.EqualFold(deref(m.Author, ""), opts.author) {
			continue
		}
		if opts.pipeline != "" && !strings.EqualFold(deref(m.PipelineTag, ""), opts.pipeline) {
			continue
		}
		if !hasAllTags(m.Tags, wantTags) {
			continue
		}
		matched = append(matched, m)
	}

	slices.SortStableFunc(matched, func(a, b client.ModelInfo) int {
		var c int
		switch opts.sort {
		case "id":
			c = strings.Compare(a.ID, b.ID)
		case "updated":
			c = strings.Compare(a.UpdatedAt, b.UpdatedAt)
		default:
			c = cmp.Compare(a.Downloads, b.Downloads)
		}
		if opts.direction == "desc" {
			return -c
		}
		return c
	})
	return matched
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		if !slices.ContainsFunc(have, func(h string) bool { return strings.EqualFold(h, w) }) {
			return false
		}
	}
	return true
}

func localFormat(m client.LocalModel) string {
	if f, ok := m.Metadata["format"].(string); ok && f != "" {
		return f
	}
	if i := strings.LastIndex(m.Filename, "."); i >= 0 && i < len(m.Filename)-1 {
		return m.Filename[i+1:]
	}
	return "Unknown"
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// truncate shortens s to n runes, ending with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// formatCount renders n with thousands separators
func formatCount(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
