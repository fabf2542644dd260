package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/parallel"
	"github.com/wesleyorama2/perfkit/internal/perftest"
	"github.com/wesleyorama2/perfkit/internal/report"
	"github.com/wesleyorama2/perfkit/internal/stats"
	"github.com/wesleyorama2/perfkit/internal/workload"
)

// quickTestName is the test id used in quick mode.
const quickTestName = "quick"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run performance tests from a suite file or a single URL",
	Long: `Run the tests of a suite file and check them against their requirements.

Suite file mode:
  perfkit run --config suite.yaml
  perfkit run --config suite.yaml --test ListOrders --properties perfkit.properties

Quick mode (single HTTP test):
  perfkit run --url https://api.example.com/health \
    --invocations 100 --threads 4 \
    --timer constant --timer-params 10 \
    --max 200 --percentiles 90:150,95:180`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		suite, err := loadSuite(cmd, opts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
		return runSuite(ctx, suite, opts, cmd.OutOrStdout(), logger)
	},
}

// runOptions holds the flags of the run command that apply in both modes.
type runOptions struct {
	configFile  string
	tests       []string
	properties  string
	logFile     string
	metricsAddr string
	htmlPath    string
	percentiles []int
	noColor     bool
	verbose     bool
	parallel    bool
}

func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	var opts runOptions
	opts.configFile, _ = cmd.Flags().GetString("config")
	opts.tests, _ = cmd.Flags().GetStringSlice("test")
	opts.properties, _ = cmd.Flags().GetString("properties")
	opts.logFile, _ = cmd.Flags().GetString("log")
	opts.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	opts.htmlPath, _ = cmd.Flags().GetString("html")
	opts.percentiles, _ = cmd.Flags().GetIntSlice("show-percentiles")
	opts.noColor, _ = cmd.Flags().GetBool("no-color")
	opts.verbose, _ = cmd.Flags().GetBool("verbose")
	opts.parallel, _ = cmd.Flags().GetBool("parallel")

	url, _ := cmd.Flags().GetString("url")
	if opts.configFile == "" && url == "" {
		return opts, errors.New("either --config or --url is required")
	}
	if opts.configFile != "" && url != "" {
		return opts, errors.New("--config and --url cannot be combined")
	}
	return opts, nil
}

// loadSuite reads the suite file or builds the quick mode suite.
func loadSuite(cmd *cobra.Command, opts runOptions) (*config.SuiteFile, error) {
	if opts.configFile != "" {
		suite, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		return suite, nil
	}

	return buildQuickSuite(quickOptionsFromFlags(cmd))
}

// testID is the identifier used for counters, reports and overrides.
func testID(suite *config.SuiteFile, name string) string {
	if suite.Name == "" {
		return name
	}
	return suite.Name + "." + name
}

// runSuite executes the selected tests of the suite and writes the reports.
// It returns an error when any test was aborted or failed its requirement.
func runSuite(ctx context.Context, suite *config.SuiteFile, opts runOptions, stdout io.Writer, logger *slog.Logger) error {
	names := opts.tests
	if len(names) == 0 {
		names = suite.TestNames()
	}
	for _, name := range names {
		if _, ok := suite.Tests[name]; !ok {
			return fmt.Errorf("test %q not found", name)
		}
	}

	overrides, err := config.NewPropertiesSource(opts.properties)
	if err != nil {
		return err
	}

	reports := report.NewContext(
		report.NewConsoleModule(stdout, report.WithNoColor(opts.noColor), report.WithPercentiles(opts.percentiles...)),
		report.NewSlogModule(logger),
	)

	if opts.logFile != "" {
		fileLogger, err := report.NewFileLogger(opts.logFile)
		if err != nil {
			return err
		}
		defer fileLogger.Close()
		reports.Add(report.NewLoggerAdapter(fileLogger))
	}

	var htmlReport *report.HTMLModule
	if opts.htmlPath != "" {
		htmlReport = report.NewHTMLModule(suite.Name)
		reports.Add(htmlReport)
	}

	var histograms *report.HistogramModule
	if opts.verbose {
		histograms = report.NewHistogramModule(report.DefaultHistogramConfig())
		reports.Add(histograms)
	}

	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr, reports, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	repo := stats.NewRepository()
	statements := make([]perftest.Statement, 0, len(names))
	invokers := make([]workload.Invoker, 0, len(names))
	for _, name := range names {
		wf, cfg, req, err := suite.Resolve(name)
		if err != nil {
			return err
		}
		inv, err := workload.FromFile(wf)
		if err != nil {
			return fmt.Errorf("test %q: %w", name, err)
		}
		statements = append(statements, perftest.Statement{
			ID:          testID(suite, name),
			Config:      cfg,
			Requirement: req,
			Repository:  repo,
			Reports:     reports,
			Overrides:   overrides,
			Logger:      logger,
		})
		invokers = append(invokers, inv)
	}

	var runErr error
	if opts.parallel {
		runErr = runParallel(ctx, statements, invokers, logger)
	} else {
		var errs []error
		for i, s := range statements {
			if _, err := s.Execute(ctx, workload.Func(invokers[i])); err != nil {
				errs = append(errs, err)
			}
			if ctx.Err() != nil {
				break
			}
		}
		runErr = errors.Join(errs...)
	}

	if histograms != nil {
		fmt.Fprintln(stdout)
		histograms.WriteSummaries(stdout)
	}

	if htmlReport != nil {
		if err := htmlReport.WriteFile(opts.htmlPath); err != nil {
			return errors.Join(runErr, fmt.Errorf("failed to write HTML report: %w", err))
		}
		fmt.Fprintf(stdout, "Report: %s\n", opts.htmlPath)
	}

	return runErr
}

// runParallel executes every statement at the same time.
func runParallel(ctx context.Context, statements []perftest.Statement, invokers []workload.Invoker, logger *slog.Logger) error {
	coordinator := parallel.NewCoordinator(parallel.WithLogger(logger))
	tasks := make([]parallel.Task, len(statements))
	for i, s := range statements {
		s := s
		inv := invokers[i]
		tasks[i] = parallel.Task{
			Name:        s.ID,
			Concurrency: 1,
			Run: func(ctx context.Context) error {
				_, err := s.Execute(ctx, workload.Func(inv))
				return err
			},
		}
	}
	return coordinator.Run(ctx, tasks...)
}

// serveMetrics registers the Prometheus module and serves /metrics on addr
// until the returned function is called.
func serveMetrics(addr string, reports *report.Context, logger *slog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	module, err := report.NewPrometheusModule(reg)
	if err != nil {
		return nil, err
	}
	reports.Add(module)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func init() {
	// Suite flags
	runCmd.Flags().StringP("config", "c", "", "Suite file (YAML or JSON)")
	runCmd.Flags().StringSlice("test", nil, "Run only the named tests (default: all)")
	runCmd.Flags().String("properties", "", "Invocation count overrides (properties, YAML or JSON)")
	runCmd.Flags().Bool("parallel", false, "Run the selected tests concurrently")

	// Reporting flags
	runCmd.Flags().String("log", "", "Append invocation and summary lines to this file")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	runCmd.Flags().String("html", "", "Write an HTML report to this file")
	runCmd.Flags().IntSlice("show-percentiles", nil, "Additional percentiles to print")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging and latency histograms")

	addQuickFlags(runCmd)
}
