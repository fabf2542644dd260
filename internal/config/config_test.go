package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/perfkit/internal/timer"
)

func TestExecutionConfig_Defaults(t *testing.T) {
	cfg := NewExecutionConfig()

	assert.Equal(t, 1, cfg.Invocations())
	assert.Equal(t, 1, cfg.Threads())
	assert.Equal(t, timer.KindNone, cfg.TimerKind())
	assert.Equal(t, []string{"system"}, cfg.Clocks())
	assert.Equal(t, ModeCount, cfg.Mode())
	assert.NoError(t, cfg.Validate())
}

func TestExecutionConfig_Mode(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want Mode
	}{
		{"count only", []Option{WithInvocations(10)}, ModeCount},
		{"duration only", []Option{WithInvocations(0), WithDuration(time.Second)}, ModeDuration},
		{"both, count authoritative", []Option{WithInvocations(10), WithDuration(time.Second)}, ModeCount},
		{"both, explicit duration", []Option{WithInvocations(10), WithDuration(time.Second), WithDurationBound()}, ModeDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewExecutionConfig(tt.opts...).Mode())
		})
	}
}

func TestExecutionConfig_Immutable(t *testing.T) {
	params := []float64{10, 20}
	cfg := NewExecutionConfig(WithTimer(timer.KindRandom, params...), WithInvocations(5))
	params[0] = 99

	assert.Equal(t, []float64{10, 20}, cfg.TimerParams())

	got := cfg.TimerParams()
	got[1] = 77
	assert.Equal(t, []float64{10, 20}, cfg.TimerParams())

	derived := cfg.WithInvocationCount(42)
	assert.Equal(t, 42, derived.Invocations())
	assert.Equal(t, 5, cfg.Invocations())
}

func TestExecutionConfig_Validate(t *testing.T) {
	cfg := NewExecutionConfig(
		WithInvocations(-1),
		WithTimer("gaussian"),
		WithClocks("sundial"),
		WithDurationBound(),
	)

	err := cfg.Validate()
	require.Error(t, err)

	verrs, ok := err.(*ValidationErrors)
	require.True(t, ok)
	assert.Len(t, verrs.Errors, 4)
}

func TestExecutionConfig_ValidateZeroInvocations(t *testing.T) {
	err := NewExecutionConfig(WithInvocations(0)).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invocations: must be > 0 without a duration")

	err = NewExecutionConfig(WithInvocations(5)).WithInvocationCount(0).Validate()
	assert.Error(t, err, "an override of zero leaves nothing to measure")

	assert.NoError(t, NewExecutionConfig(WithInvocations(0), WithDuration(time.Second)).Validate())
}

func TestParsePercentiles(t *testing.T) {
	bounds, err := ParsePercentiles("55:302, 77:303")
	require.NoError(t, err)
	assert.Equal(t, []PercentileBound{{55, 302}, {77, 303}}, bounds)

	bounds, err = ParsePercentiles("")
	require.NoError(t, err)
	assert.Nil(t, bounds)

	_, err = ParsePercentiles("90")
	assert.Error(t, err)

	_, err = ParsePercentiles("x:1")
	assert.Error(t, err)

	assert.Equal(t, "55:302,77:303", FormatPercentiles([]PercentileBound{{77, 303}, {55, 302}}))
}

func TestRequirement_IsEmptyAndValidate(t *testing.T) {
	var nilReq *PerformanceRequirement
	assert.True(t, nilReq.IsEmpty())
	assert.True(t, NewRequirement().IsEmpty())

	req := NewRequirement(RequireMax(100), RequirePercentile(90, 80))
	assert.False(t, req.IsEmpty())
	assert.NoError(t, req.Validate())

	bad := NewRequirement(RequirePercentile(120, 5), RequireErrorsRate(2))
	err := bad.Validate()
	require.Error(t, err)
	assert.Len(t, err.(*ValidationErrors).Errors, 2)
}

const suiteYAML = `
name: "checkout"
defaults:
  execution:
    threads: 2
    invocations: 10
tests:
  ListOrders:
    workload:
      type: sleep
      sleep: 5ms
    execution:
      invocations: 200
      threads: 4
      timer: random
      timerParams: [5, 20]
      rampup: 100ms
      timeout: 1m
      clocks: [system, cpu]
    required:
      max: 250
      average: 20.5
      percentiles: "90:100,99:200"
      percentile90: 150
      throughput: 10
      totalTime: 60000
  Soak:
    workload:
      type: command
      command: ["true"]
    execution:
      duration: 2s
`

func TestParseFile_YAML(t *testing.T) {
	suite, err := ParseFile([]byte(suiteYAML), "suite.yaml")
	require.NoError(t, err)

	assert.Equal(t, "checkout", suite.Name)
	assert.Equal(t, []string{"ListOrders", "Soak"}, suite.TestNames())

	workload, exec, req, err := suite.Resolve("ListOrders")
	require.NoError(t, err)
	assert.Equal(t, "sleep", workload.Type)
	assert.Equal(t, 200, exec.Invocations())
	assert.Equal(t, 4, exec.Threads())
	assert.Equal(t, timer.KindRandom, exec.TimerKind())
	assert.Equal(t, []float64{5, 20}, exec.TimerParams())
	assert.Equal(t, 100*time.Millisecond, exec.Rampup())
	assert.Equal(t, time.Minute, exec.Timeout())
	assert.Equal(t, []string{"system", "cpu"}, exec.Clocks())

	require.NotNil(t, req)
	assert.Equal(t, 250, *req.Max)
	assert.Equal(t, 20.5, *req.Average)
	assert.Equal(t, []PercentileBound{{90, 100}, {99, 200}}, req.Percentiles)
	assert.Equal(t, 150, *req.Percentile90)
	assert.Equal(t, 10.0, *req.Throughput)
	assert.Equal(t, int64(60000), *req.TotalTime)
	assert.Nil(t, req.Median)

	_, soak, soakReq, err := suite.Resolve("Soak")
	require.NoError(t, err)
	assert.Equal(t, ModeDuration, soak.Mode())
	assert.Equal(t, 2*time.Second, soak.Duration())
	assert.Nil(t, soakReq)

	_, _, _, err = suite.Resolve("Missing")
	assert.Error(t, err)
}

func TestParseFile_JSON(t *testing.T) {
	data := `{
  "tests": {
    "ping": {
      "workload": {"type": "http", "url": "http://localhost:1/ping"},
      "execution": {"invocations": 3},
      "required": {"median": 10}
    }
  }
}`
	suite, err := ParseFile([]byte(data), "suite.json")
	require.NoError(t, err)

	workload, exec, req, err := suite.Resolve("ping")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1/ping", workload.URL)
	assert.Equal(t, 3, exec.Invocations())
	assert.Equal(t, 10, *req.Median)
}

func TestParseFile_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown timer",
			yaml: "tests:\n  a:\n    workload: {type: sleep, sleep: 1ms}\n    execution: {timer: gaussian}\n",
		},
		{
			name: "unknown field",
			yaml: "tests:\n  a:\n    workload: {type: sleep, sleep: 1ms}\n    execution: {iterations: 3}\n",
		},
		{
			name: "bad percentile syntax",
			yaml: "tests:\n  a:\n    workload: {type: sleep, sleep: 1ms}\n    required: {percentiles: \"90-100\"}\n",
		},
		{
			name: "no tests",
			yaml: "name: empty\n",
		},
		{
			name: "errors rate above one",
			yaml: "tests:\n  a:\n    workload: {type: sleep, sleep: 1ms}\n    required: {errorsRate: 1.5}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.yaml), "suite.yaml")
			require.Error(t, err)
			_, ok := err.(*ValidationErrors)
			assert.True(t, ok, "expected *ValidationErrors, got %T: %v", err, err)
		})
	}
}

func TestParseFile_SemanticViolations(t *testing.T) {
	yaml := `
tests:
  a:
    workload:
      type: http
  b:
    workload:
      type: sleep
      sleep: 1ms
    execution:
      durationBound: true
`
	_, err := ParseFile([]byte(yaml), "suite.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tests.a.workload.url")
	assert.Contains(t, err.Error(), "tests.b.duration")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o644))

	suite, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, suite.Tests, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"500ms", 500 * time.Millisecond, false},
		{"250", 250 * time.Millisecond, false},
		{"", 0, false},
		{"abc", 0, true},
		{"12abc", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDurationString(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
