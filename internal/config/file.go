package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/perfkit/internal/timer"
)

// SuiteFile is the root of a perfkit configuration file.
//
// Example YAML:
//
//	name: "API checks"
//	defaults:
//	  execution:
//	    threads: 2
//	tests:
//	  health:
//	    workload:
//	      type: http
//	      url: "http://localhost:8080/health"
//	    execution:
//	      invocations: 200
//	      timer: random
//	      timerParams: [5, 20]
//	    required:
//	      max: 250
//	      percentiles: "90:100,99:200"
type SuiteFile struct {
	// Name of the suite (for reporting)
	Name string `json:"name" yaml:"name"`

	// Defaults apply to every test that does not override them
	Defaults *TestFile `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Tests maps a test identifier to its definition
	Tests map[string]*TestFile `json:"tests" yaml:"tests"`
}

// TestFile defines one measured workload.
type TestFile struct {
	Workload  *WorkloadFile    `json:"workload,omitempty" yaml:"workload,omitempty"`
	Execution *ExecutionFile   `json:"execution,omitempty" yaml:"execution,omitempty"`
	Required  *RequirementFile `json:"required,omitempty" yaml:"required,omitempty"`
}

// WorkloadFile selects the work to invoke.
type WorkloadFile struct {
	// Type is one of "http", "command", "sleep"
	Type string `json:"type" yaml:"type"`

	// HTTP workloads
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Command workloads
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Sleep workloads
	Sleep string `json:"sleep,omitempty" yaml:"sleep,omitempty"`
}

// ExecutionFile is the file form of ExecutionConfig. Durations are strings
// such as "2s" or "500ms".
type ExecutionFile struct {
	Invocations       *int      `json:"invocations,omitempty" yaml:"invocations,omitempty"`
	Duration          string    `json:"duration,omitempty" yaml:"duration,omitempty"`
	DurationBound     bool      `json:"durationBound,omitempty" yaml:"durationBound,omitempty"`
	Threads           int       `json:"threads,omitempty" yaml:"threads,omitempty"`
	Timer             string    `json:"timer,omitempty" yaml:"timer,omitempty"`
	TimerParams       []float64 `json:"timerParams,omitempty" yaml:"timerParams,omitempty"`
	Rampup            string    `json:"rampup,omitempty" yaml:"rampup,omitempty"`
	Timeout           string    `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	SkipUnrepeatable  bool      `json:"skipUnrepeatable,omitempty" yaml:"skipUnrepeatable,omitempty"`
	CancelOnViolation bool      `json:"cancelOnViolation,omitempty" yaml:"cancelOnViolation,omitempty"`
	Clocks            []string  `json:"clocks,omitempty" yaml:"clocks,omitempty"`
}

// RequirementFile is the file form of PerformanceRequirement.
type RequirementFile struct {
	Max          *int     `json:"max,omitempty" yaml:"max,omitempty"`
	Average      *float64 `json:"average,omitempty" yaml:"average,omitempty"`
	Median       *int     `json:"median,omitempty" yaml:"median,omitempty"`
	Percentiles  string   `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	Percentile90 *int     `json:"percentile90,omitempty" yaml:"percentile90,omitempty"`
	Percentile95 *int     `json:"percentile95,omitempty" yaml:"percentile95,omitempty"`
	Percentile99 *int     `json:"percentile99,omitempty" yaml:"percentile99,omitempty"`
	Throughput   *float64 `json:"throughput,omitempty" yaml:"throughput,omitempty"`
	TotalTime    *int64   `json:"totalTime,omitempty" yaml:"totalTime,omitempty"`
	ErrorsRate   *float64 `json:"errorsRate,omitempty" yaml:"errorsRate,omitempty"`
}

// LoadFile reads and parses a suite file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadFile(path string) (*SuiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data, path)
}

// ParseFile validates data against the suite schema and decodes it. The
// format is taken from the extension of path, YAML when unknown.
func ParseFile(data []byte, path string) (*SuiteFile, error) {
	var suite SuiteFile
	var raw interface{}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		if err := validateSchema(raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if err := validateSchema(raw); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// TestNames returns the test identifiers in sorted order.
func (s *SuiteFile) TestNames() []string {
	names := make([]string, 0, len(s.Tests))
	for name := range s.Tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve merges the defaults into the named test and builds its execution
// configuration and requirement.
func (s *SuiteFile) Resolve(name string) (*WorkloadFile, ExecutionConfig, *PerformanceRequirement, error) {
	test, ok := s.Tests[name]
	if !ok {
		return nil, ExecutionConfig{}, nil, fmt.Errorf("test %q not found", name)
	}

	var defaults TestFile
	if s.Defaults != nil {
		defaults = *s.Defaults
	}

	workload := test.Workload
	if workload == nil {
		workload = defaults.Workload
	}

	execFile := test.Execution
	if execFile == nil {
		execFile = defaults.Execution
	}
	exec, err := execFile.Build()
	if err != nil {
		return nil, ExecutionConfig{}, nil, fmt.Errorf("test %q: %w", name, err)
	}

	reqFile := test.Required
	if reqFile == nil {
		reqFile = defaults.Required
	}
	req, err := reqFile.Build()
	if err != nil {
		return nil, ExecutionConfig{}, nil, fmt.Errorf("test %q: %w", name, err)
	}

	return workload, exec, req, nil
}

// Build converts the file form into an ExecutionConfig. A nil receiver
// yields the default configuration.
func (f *ExecutionFile) Build() (ExecutionConfig, error) {
	if f == nil {
		return NewExecutionConfig(), nil
	}

	var opts []Option
	if f.Invocations != nil {
		opts = append(opts, WithInvocations(*f.Invocations))
	} else if f.Duration != "" {
		opts = append(opts, WithInvocations(0))
	}
	if f.Duration != "" {
		d, err := ParseDurationString(f.Duration)
		if err != nil {
			return ExecutionConfig{}, fmt.Errorf("invalid duration: %w", err)
		}
		opts = append(opts, WithDuration(d))
	}
	if f.DurationBound {
		opts = append(opts, WithDurationBound())
	}
	if f.Threads > 0 {
		opts = append(opts, WithThreads(f.Threads))
	}
	if f.Timer != "" {
		opts = append(opts, WithTimer(timer.Kind(f.Timer), f.TimerParams...))
	}
	if f.Rampup != "" {
		d, err := ParseDurationString(f.Rampup)
		if err != nil {
			return ExecutionConfig{}, fmt.Errorf("invalid rampup: %w", err)
		}
		opts = append(opts, WithRampup(d))
	}
	if f.Timeout != "" {
		d, err := ParseDurationString(f.Timeout)
		if err != nil {
			return ExecutionConfig{}, fmt.Errorf("invalid timeout: %w", err)
		}
		opts = append(opts, WithTimeout(d))
	}
	opts = append(opts, WithSkipUnrepeatable(f.SkipUnrepeatable),
		WithCancelOnViolation(f.CancelOnViolation), WithClocks(f.Clocks...))

	cfg := NewExecutionConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return ExecutionConfig{}, err
	}
	return cfg, nil
}

// Build converts the file form into a PerformanceRequirement. A nil
// receiver yields nil, meaning nothing is checked.
func (f *RequirementFile) Build() (*PerformanceRequirement, error) {
	if f == nil {
		return nil, nil
	}

	percentiles, err := ParsePercentiles(f.Percentiles)
	if err != nil {
		return nil, err
	}

	req := &PerformanceRequirement{
		Max:          f.Max,
		Average:      f.Average,
		Median:       f.Median,
		Percentiles:  percentiles,
		Percentile90: f.Percentile90,
		Percentile95: f.Percentile95,
		Percentile99: f.Percentile99,
		Throughput:   f.Throughput,
		TotalTime:    f.TotalTime,
		ErrorsRate:   f.ErrorsRate,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the structure that the schema cannot express.
func (s *SuiteFile) Validate() error {
	errs := &ValidationErrors{}

	if len(s.Tests) == 0 {
		errs.Add("tests", "at least one test is required")
	}

	for _, name := range s.TestNames() {
		test := s.Tests[name]
		prefix := "tests." + name
		if test == nil {
			errs.Add(prefix, "test definition is empty")
			continue
		}

		workload := test.Workload
		if workload == nil && s.Defaults != nil {
			workload = s.Defaults.Workload
		}
		if workload == nil {
			errs.Add(prefix+".workload", "workload is required")
		} else {
			validateWorkload(prefix+".workload", workload, errs)
		}

		if _, _, _, err := s.Resolve(name); err != nil {
			errs.Merge(prefix, unwrapValidation(err))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateWorkload(prefix string, w *WorkloadFile, errs *ValidationErrors) {
	switch w.Type {
	case "http":
		if w.URL == "" {
			errs.Add(prefix+".url", "url is required for http workloads")
		}
		if w.Timeout != "" {
			if _, err := ParseDurationString(w.Timeout); err != nil {
				errs.Add(prefix+".timeout", fmt.Sprintf("invalid timeout: %v", err))
			}
		}
	case "command":
		if len(w.Command) == 0 {
			errs.Add(prefix+".command", "command is required for command workloads")
		}
	case "sleep":
		if _, err := ParseDurationString(w.Sleep); err != nil || w.Sleep == "" {
			errs.Add(prefix+".sleep", "a valid sleep duration is required for sleep workloads")
		}
	default:
		errs.Add(prefix+".type", fmt.Sprintf("unknown workload type: %s", w.Type))
	}
}

// unwrapValidation strips the "test %q:" prefix added by Resolve so that
// validation errors are merged with their own field names.
func unwrapValidation(err error) error {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if _, ok := err.(*ValidationErrors); ok {
			return err
		}
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		if inner := u.Unwrap(); inner != nil {
			err = inner
		} else {
			return err
		}
	}
	return err
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Integer milliseconds: "250"
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var millis int64
	if _, scanErr := fmt.Sscanf(s, "%d", &millis); scanErr == nil && fmt.Sprint(millis) == s {
		return time.Duration(millis) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
