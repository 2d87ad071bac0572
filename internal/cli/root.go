package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/entreaty/entreaty/internal/observability"
	"github.com/entreaty/entreaty/internal/observability/logging"
	otelobs "github.com/entreaty/entreaty/internal/observability/otel"
	"github.com/entreaty/entreaty/internal/observability/receipt"
	"github.com/entreaty/entreaty/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "entreaty",
	Short: "Grievance adjudication engine for academic institutions",
	Long: `entreaty: rule-based grievance adjudication.
Evaluates student grievances against regulatory rulesets, resolves conflicts
between rules by authority, salience, and effective date, and produces an
auditable decision trace with a consistency check against prior cases.`,
	Version:           version.BuildVersion(),
	PersistentPreRunE: setupObservability,
	PersistentPostRun: teardownObservability,
}

var (
	logFormatFlag string
	logLevelFlag  string
	logOutputFlag string

	receiptFlag     string
	receiptModeFlag string

	otelFlag            bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelSampleRatioFlag float64
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormatFlag, "log-format", "pretty", "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", "info", "Minimum log level: debug, info, warn, or error")
	pf.StringVar(&logOutputFlag, "log-output", "stderr", "Log destination: stderr or a file path")
	pf.StringVar(&receiptFlag, "receipt", "", "Write an audit receipt to this path")
	pf.StringVar(&receiptModeFlag, "receipt-mode", "append", "Receipt write mode: append (JSONL ledger) or overwrite")
	pf.BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
	pf.StringVar(&otelEndpointFlag, "otel-endpoint", "", "OTLP endpoint (defaults per protocol)")
	pf.StringVar(&otelProtocolFlag, "otel-protocol", otelobs.ProtocolHTTP, "OTLP protocol: otlphttp or otlpgrpc")
	pf.BoolVar(&otelInsecureFlag, "otel-insecure", false, "Allow insecure OTLP connections")
	pf.Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0, "Trace sample ratio (0..1)")

	rootCmd.AddCommand(GetEvaluateCmd())
	rootCmd.AddCommand(GetRulesCmd())
}

// setupObservability builds the per-invocation context: op_id, logger,
// receipt writer, and optional tracer. Commands read all of these back out
// of cmd.Context().
func setupObservability(cmd *cobra.Command, args []string) error {
	ctx := observability.WithOpID(cmd.Context())

	log, err := logging.NewLogger(logging.Config{
		Format: logFormatFlag,
		Level:  logLevelFlag,
		Output: logOutputFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	ctx = logging.WithLogger(ctx, log)

	if receiptFlag != "" {
		w, err := receipt.NewWriter(receiptFlag, receiptModeFlag)
		if err != nil {
			return fmt.Errorf("failed to open receipt: %w", err)
		}
		ctx = receipt.WithWriter(ctx, w)
	}

	if otelFlag {
		h, err := otelobs.Init(ctx, otelobs.Config{
			Enabled:     true,
			Endpoint:    otelEndpointFlag,
			Protocol:    otelProtocolFlag,
			Insecure:    otelInsecureFlag,
			ServiceName: "entreaty",
			SampleRatio: otelSampleRatioFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		ctx = otelobs.WithHandle(ctx, h)
	}

	cmd.SetContext(ctx)
	return nil
}

func teardownObservability(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if h := otelobs.From(ctx); h != nil {
		_ = h.Shutdown(context.Background())
	}
	if w := receipt.From(ctx); w != nil {
		_ = w.Close()
	}
	_ = logging.From(ctx).Close()
}
