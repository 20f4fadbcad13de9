package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"ArticlesClassifier/internal/app"
	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/logging"
	"ArticlesClassifier/internal/usecase"
)

type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "articlesclassifier",
		Short:         "Classify biomedical articles into medical-domain labels",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (defaults to $"+config.ConfigPathEnv+")")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(opts),
		newBatchCmd(opts),
		newMetricsCmd(opts),
		newWarmupCmd(opts),
		newScanCmd(opts),
	)
	return root
}

// withApp loads configuration, builds the application and hands it to fn.
func withApp(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()
	return fn(ctx, application)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return withApp(ctx, opts, func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var title, abstract string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				result, err := a.Classification.ClassifyOne(ctx, domain.Article{Title: title, Abstract: abstract})
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(result)
				}
				return renderClassification(result)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVar(&abstract, "abstract", "", "article abstract")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("abstract")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.csv>",
		Short: "Classify every row of a CSV file with title and abstract columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer file.Close()

			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				outcome, err := a.Batch.Process(ctx, usecase.BatchInput{Name: filepath.Base(path), Reader: file})
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(outcome)
				}
				pterm.Success.Printf("processed %d rows (%d ok, %d failed) in %s\n",
					outcome.TotalRows, outcome.SucceededRows, len(outcome.FailedRows), outcome.Duration.Round(time.Millisecond))
				pterm.Info.Println("output:", filepath.Join(a.Artifacts.Root(), outcome.ArtifactName))
				for _, f := range outcome.FailedRows {
					pterm.Warning.Printf("row %d: %s\n", f.Row, f.Reason)
				}
				return nil
			})
		},
	}
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show quality metrics over the prediction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				snapshot, err := loadSnapshot(ctx, a.Metrics, refresh)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(snapshot)
				}
				return renderMetrics(snapshot)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "also persist the recomputed snapshot")
	return cmd
}

type snapshotSource interface {
	ComputeSnapshot(ctx context.Context) (domain.MetricsSnapshot, error)
	Refresh(ctx context.Context) (domain.MetricsSnapshot, error)
}

// loadSnapshot always recomputes from history; persist additionally saves the result.
func loadSnapshot(ctx context.Context, m snapshotSource, persist bool) (domain.MetricsSnapshot, error) {
	if persist {
		return m.Refresh(ctx)
	}
	return m.ComputeSnapshot(ctx)
}

func newWarmupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Load the configured classifier and probe its backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				if err := a.Classification.Warmup(ctx); err != nil {
					return err
				}
				health := a.Classification.Health(ctx)
				if !health.Ready {
					return errors.Mark(errors.Newf("%s not ready: %s", health.Backend, health.Detail), domain.ErrModelUnavailable)
				}
				pterm.Success.Printf("%s classifier ready\n", health.Backend)
				return nil
			})
		},
	}
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Fetch the day's listings from configured sites and classify them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				target := time.Now()
				if day != "" {
					parsed, err := time.Parse(time.DateOnly, day)
					if err != nil {
						return domain.NewValidationError("invalid --day %q, want YYYY-MM-DD", day)
					}
					target = parsed
				}
				outcome, err := a.Scan.ProcessDay(ctx, target)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(outcome)
				}
				pterm.Success.Printf("classified %d articles, output %s\n", outcome.SucceededRows, outcome.ArtifactName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "listing day as YYYY-MM-DD (default today)")
	return cmd
}

func renderClassification(result domain.ClassificationResult) error {
	pterm.Info.Printf("backend: %s\n", result.Backend)
	if len(result.Labels) == 0 {
		pterm.Warning.Println("no label passed the threshold")
		return nil
	}
	data := pterm.TableData{{"Label", "Score"}}
	for _, l := range result.Labels {
		data = append(data, []string{l.Label, strconv.FormatFloat(l.Score, 'f', 3, 64)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderMetrics(s domain.MetricsSnapshot) error {
	if !s.HasData {
		pterm.Warning.Println("no predictions recorded yet")
		return nil
	}
	pct := func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) }
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Micro F1", pct(s.Overall.MicroF1)},
		{"Precision", pct(s.Overall.Precision)},
		{"Recall", pct(s.Overall.Recall)},
		{"Accuracy", pct(s.Overall.OverallAccuracy)},
		{"Samples", strconv.Itoa(s.Overall.TotalSamples)},
		{"Correct", strconv.Itoa(s.Overall.CorrectPredictions)},
		{"False positives", strconv.Itoa(s.Confusion.FalsePositives)},
		{"False negatives", strconv.Itoa(s.Confusion.FalseNegatives)},
		{"Last updated", s.LastUpdated.Format(time.RFC3339)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
