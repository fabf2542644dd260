package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perfkit/internal/config"
)

// quickOptions describes the single HTTP test of quick mode. Pointer
// fields are only set when the flag was given.
type quickOptions struct {
	url         string
	method      string
	invocations *int
	duration    string
	threads     int
	timer       string
	timerParams []float64
	rampup      string
	timeout     string
	cancel      bool

	max         *int
	average     *float64
	median      *int
	percentiles string
	throughput  *float64
	errorsRate  *float64
}

func addQuickFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "URL to test (alternative to --config)")
	cmd.Flags().String("method", "GET", "HTTP method")
	cmd.Flags().Int("invocations", 1, "Number of invocations")
	cmd.Flags().String("duration", "", "Run for this long instead of a fixed count (e.g. 30s)")
	cmd.Flags().Int("threads", 1, "Number of concurrent workers")
	cmd.Flags().String("timer", "none", "Wait timer: none, constant, random, cumulated")
	cmd.Flags().Float64Slice("timer-params", nil, "Wait timer parameters in milliseconds")
	cmd.Flags().String("rampup", "", "Delay between starting consecutive workers")
	cmd.Flags().String("timeout", "", "Abort the run after this long")
	cmd.Flags().Bool("cancel-on-violation", false, "Stop as soon as the max latency bound is broken")

	// Requirement flags
	cmd.Flags().Int("max", 0, "Maximum latency in milliseconds")
	cmd.Flags().Float64("average", 0, "Maximum average latency in milliseconds")
	cmd.Flags().Int("median", 0, "Maximum median latency in milliseconds")
	cmd.Flags().String("percentiles", "", "Percentile bounds, e.g. 90:150,99:300")
	cmd.Flags().Float64("throughput", 0, "Minimum invocations per second")
	cmd.Flags().Float64("errors-rate", 0, "Maximum share of failed invocations (0..1)")
}

func quickOptionsFromFlags(cmd *cobra.Command) quickOptions {
	flags := cmd.Flags()

	var q quickOptions
	q.url, _ = flags.GetString("url")
	q.method, _ = flags.GetString("method")
	q.duration, _ = flags.GetString("duration")
	q.threads, _ = flags.GetInt("threads")
	q.timer, _ = flags.GetString("timer")
	q.timerParams, _ = flags.GetFloat64Slice("timer-params")
	q.rampup, _ = flags.GetString("rampup")
	q.timeout, _ = flags.GetString("timeout")
	q.cancel, _ = flags.GetBool("cancel-on-violation")
	q.percentiles, _ = flags.GetString("percentiles")

	// an explicit count wins over --duration, the default does not
	if flags.Changed("invocations") || q.duration == "" {
		n, _ := flags.GetInt("invocations")
		q.invocations = &n
	}
	if flags.Changed("max") {
		v, _ := flags.GetInt("max")
		q.max = &v
	}
	if flags.Changed("average") {
		v, _ := flags.GetFloat64("average")
		q.average = &v
	}
	if flags.Changed("median") {
		v, _ := flags.GetInt("median")
		q.median = &v
	}
	if flags.Changed("throughput") {
		v, _ := flags.GetFloat64("throughput")
		q.throughput = &v
	}
	if flags.Changed("errors-rate") {
		v, _ := flags.GetFloat64("errors-rate")
		q.errorsRate = &v
	}
	return q
}

// buildQuickSuite turns the quick mode flags into a one-test suite so both
// modes share resolution and validation.
func buildQuickSuite(q quickOptions) (*config.SuiteFile, error) {
	test := &config.TestFile{
		Workload: &config.WorkloadFile{
			Type:   "http",
			URL:    q.url,
			Method: q.method,
		},
		Execution: &config.ExecutionFile{
			Invocations: q.invocations,
			Duration:    q.duration,
			Threads:     q.threads,
			Timer:       q.timer,
			TimerParams: q.timerParams,
			Rampup:      q.rampup,
			Timeout:     q.timeout,

			CancelOnViolation: q.cancel,
		},
	}

	req := &config.RequirementFile{
		Max:         q.max,
		Average:     q.average,
		Median:      q.median,
		Percentiles: q.percentiles,
		Throughput:  q.throughput,
		ErrorsRate:  q.errorsRate,
	}
	if req.Max != nil || req.Average != nil || req.Median != nil || req.Percentiles != "" ||
		req.Throughput != nil || req.ErrorsRate != nil {
		test.Required = req
	}

	suite := &config.SuiteFile{
		Tests: map[string]*config.TestFile{quickTestName: test},
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}
