package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/clmn/internal/pipeline"
	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/config"
	"github.com/ajitpratap0/clmn/pkg/logger"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/observability"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{}
	root := a.rootCommand()

	err := root.ExecuteContext(ctx)
	a.finish()
	stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

// app carries the global flags and the components built from them.
type app struct {
	configFile string
	logLevel   string
	logFormat  string
	metrics    bool
	trace      bool
	types      []string
	workers    int
	mmap       bool

	config   *config.Config
	logger   *zap.Logger
	codec    *metrics.CodecMetrics
	shutdown observability.ShutdownFunc
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "clmn",
		Short: "clmn - CSV to columnar binary converter",
		Long: `clmn converts CSV files into the CLMN columnar format and back.
Each column is stored as its own compressed block, so single columns can be
read without touching the rest of the file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log encoding (console, json)")
	flags.BoolVar(&a.metrics, "metrics", false, "Print collected metrics to stderr on exit")
	flags.BoolVar(&a.trace, "trace", false, "Export trace spans to stderr")
	flags.StringArrayVar(&a.types, "type", nil, "Declare a column type as name=type (int32, int64, float64, string); repeatable")
	flags.IntVar(&a.workers, "workers", 0, "Number of columns processed in parallel (0 uses all CPUs)")
	flags.BoolVar(&a.mmap, "mmap", false, "Memory-map CLMN files when reading")

	root.AddCommand(
		a.encodeCommand(),
		a.decodeCommand(),
		a.readCommand(),
		a.inspectCommand(),
		versionCommand(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger, metrics and tracer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Encoding = a.logFormat
	}
	if flags.Changed("workers") {
		cfg.Performance.Workers = a.workers
	}
	if flags.Changed("mmap") {
		cfg.Performance.Mmap = a.mmap
	}
	if flags.Changed("metrics") {
		cfg.Observability.EnableMetrics = a.metrics
	}
	if flags.Changed("trace") {
		cfg.Observability.EnableTracing = a.trace
	}
	for _, decl := range a.types {
		name, typ, ok := strings.Cut(decl, "=")
		if !ok || name == "" {
			return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "invalid --type %q, expected name=type", decl)
		}
		if cfg.Types == nil {
			cfg.Types = make(map[string]string)
		}
		cfg.Types[name] = typ
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.config = cfg

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return err
	}
	ctx := context.WithValue(cmd.Context(), logger.CommandKey, cmd.Name())
	a.logger = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	if cfg.Observability.EnableMetrics {
		a.codec = metrics.NewCodecMetrics()
	}
	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		tc.Output = os.Stderr
		shutdown, err := observability.InitTracing(ctx, tc)
		if err != nil {
			return clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to initialize tracing")
		}
		a.shutdown = shutdown
	}
	return nil
}

// finish flushes metrics, spans and logs. It runs whether or not the command
// succeeded.
func (a *app) finish() {
	if a.codec != nil {
		if err := a.codec.WriteText(os.Stderr); err != nil && a.logger != nil {
			a.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(a.config, a.codec, a.logger)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clmn v%s\n", version)
			fmt.Printf("File format version: %d\n", columnar.Version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// printError writes err and its details to stderr.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	details := clmnerrors.Details(err)
	if len(details) == 0 {
		return
	}
	for _, k := range slices.Sorted(maps.Keys(details)) {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", k, details[k])
	}
}
