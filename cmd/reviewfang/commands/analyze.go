// Package commands implements CLI command handlers for reviewfang.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reviewfang/internal/framework"
	"github.com/Sumatoshi-tech/reviewfang/internal/report"
	"github.com/Sumatoshi-tech/reviewfang/pkg/config"
	"github.com/Sumatoshi-tech/reviewfang/pkg/observability"
	"github.com/Sumatoshi-tech/reviewfang/pkg/version"
)

// AnalyzeCommand holds the analyze command flags.
type AnalyzeCommand struct {
	configPath  string
	repoPath    string
	prFile      string
	eventFile   string
	outputDir   string
	windowStart string
	windowEnd   string
	metricsAddr string
	workers     int
	compress    bool
	noColor     bool
	silent      bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	ac := &AnalyzeCommand{}

	cmd := &cobra.Command{
		Use:   "analyze [repository]",
		Short: "Run the full analysis pipeline over a repository window",
		Args:  cobra.MaximumNArgs(1),
		RunE:  ac.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&ac.configPath, "config", "c", "", "config file (default: ./reviewfang.yaml)")
	flags.StringVar(&ac.prFile, "pr-file", "", "pull request metadata stream (JSONL)")
	flags.StringVar(&ac.eventFile, "event-file", "", "PR timeline event stream (JSONL)")
	flags.StringVarP(&ac.outputDir, "output", "o", "", "output directory")
	flags.StringVar(&ac.windowStart, "window-start", "", "analysis window start (RFC 3339)")
	flags.StringVar(&ac.windowEnd, "window-end", "", "analysis window end (RFC 3339)")
	flags.StringVar(&ac.metricsAddr, "metrics-listen", "", "serve /metrics and /healthz at this address for the duration of the run")
	flags.IntVarP(&ac.workers, "workers", "w", 0, "diff worker count (default: NumCPU)")
	flags.BoolVar(&ac.compress, "compress", false, "LZ4-compress the output streams")
	flags.BoolVar(&ac.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&ac.silent, "silent", "s", false, "suppress the summary tables")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	if ac.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(ac.configPath)
	if err != nil {
		return err
	}

	ac.applyOverrides(cfg, args)

	if err := config.Validate(cfg); err != nil {
		return err
	}

	providers, err := observability.Init(observabilityConfig(cfg))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx := cmd.Context()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			providers.Logger.Error("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	meter := providers.Meter

	if ac.metricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(ac.metricsAddr)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}

		defer func() {
			if closeErr := diag.Close(); closeErr != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		providers.Logger.Info("diagnostics server listening", "addr", diag.Addr())
		meter = diag.Meter()
	}

	metrics, err := observability.NewRunMetrics(meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	result, err := framework.NewRunner(cfg, providers, metrics).Run(ctx)
	if err != nil {
		return err
	}

	if !ac.silent {
		report.RenderSummary(os.Stdout, result.Summary, result.Statistics)
	}

	return nil
}

const shutdownTimeout = 10 * time.Second

// applyOverrides lets flags win over the config file.
func (ac *AnalyzeCommand) applyOverrides(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Repository.Path = args[0]
	}

	if ac.prFile != "" {
		cfg.Repository.PRFile = ac.prFile
	}

	if ac.eventFile != "" {
		cfg.Repository.EventFile = ac.eventFile
	}

	if ac.outputDir != "" {
		cfg.Output.Directory = ac.outputDir
	}

	if ac.windowStart != "" {
		cfg.Repository.WindowStart = ac.windowStart
	}

	if ac.windowEnd != "" {
		cfg.Repository.WindowEnd = ac.windowEnd
	}

	if ac.workers > 0 {
		cfg.Analysis.DiffWorkers = ac.workers
	}

	if ac.compress {
		cfg.Output.Compress = true
	}
}

// observabilityConfig maps the run configuration onto the telemetry stack.
func observabilityConfig(cfg *config.Config) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.Environment = cfg.Telemetry.Environment
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = cfg.Telemetry.Insecure
	obs.LogJSON = strings.EqualFold(cfg.Logging.Format, "json")

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		obs.LogLevel = slog.LevelDebug
	case "warn":
		obs.LogLevel = slog.LevelWarn
	case "error":
		obs.LogLevel = slog.LevelError
	default:
		obs.LogLevel = slog.LevelInfo
	}

	return obs
}
