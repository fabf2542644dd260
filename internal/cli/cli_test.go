package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/perftest"
)

const cliSuite = `
name: svc
defaults:
  workload:
    type: sleep
    sleep: 2ms
tests:
  Fast:
    execution:
      invocations: 5
      threads: 2
    required:
      max: 5000
  Strict:
    execution:
      invocations: 3
    required:
      max: 0
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRunSuite_SelectedTestPasses(t *testing.T) {
	suite, err := config.LoadFile(writeSuite(t, cliSuite))
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "perfkit.log")
	htmlPath := filepath.Join(t.TempDir(), "report.html")

	var out bytes.Buffer
	err = runSuite(context.Background(), suite, runOptions{
		tests:    []string{"Fast"},
		logFile:  logPath,
		htmlPath: htmlPath,
		noColor:  true,
		verbose:  true,
	}, &out, discardLogger())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "✓ svc.Fast")
	assert.NotContains(t, out.String(), "svc.Strict")
	assert.Contains(t, out.String(), "svc.Fast: count=5")
	assert.Contains(t, out.String(), "Report: "+htmlPath)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 6, "five invocation lines and one summary")

	_, err = os.Stat(htmlPath)
	assert.NoError(t, err)
}

func TestRunSuite_FailingRequirement(t *testing.T) {
	suite, err := config.LoadFile(writeSuite(t, cliSuite))
	require.NoError(t, err)

	var out bytes.Buffer
	err = runSuite(context.Background(), suite, runOptions{noColor: true}, &out, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, perftest.ErrRequirementFailed)
	assert.Contains(t, err.Error(), "svc.Strict")

	assert.Contains(t, out.String(), "✓ svc.Fast")
	assert.Contains(t, out.String(), "✗ svc.Strict")
}

func TestRunSuite_Parallel(t *testing.T) {
	suite, err := config.LoadFile(writeSuite(t, cliSuite))
	require.NoError(t, err)

	var out bytes.Buffer
	err = runSuite(context.Background(), suite, runOptions{noColor: true, parallel: true}, &out, discardLogger())
	assert.ErrorIs(t, err, perftest.ErrRequirementFailed)
	assert.Contains(t, out.String(), "✓ svc.Fast")
	assert.Contains(t, out.String(), "✗ svc.Strict")
}

func TestRunSuite_Overrides(t *testing.T) {
	suite, err := config.LoadFile(writeSuite(t, cliSuite))
	require.NoError(t, err)

	props := filepath.Join(t.TempDir(), "perfkit.properties")
	require.NoError(t, os.WriteFile(props, []byte("svc.Fast.invocations=2\n"), 0o644))
	logPath := filepath.Join(t.TempDir(), "perfkit.log")

	err = runSuite(context.Background(), suite, runOptions{
		tests:      []string{"Fast"},
		properties: props,
		logFile:    logPath,
		noColor:    true,
	}, io.Discard, discardLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
}

func TestRunSuite_UnknownTest(t *testing.T) {
	suite, err := config.LoadFile(writeSuite(t, cliSuite))
	require.NoError(t, err)

	err = runSuite(context.Background(), suite, runOptions{tests: []string{"Missing"}}, io.Discard, discardLogger())
	assert.EqualError(t, err, `test "Missing" not found`)
}

func TestBuildQuickSuite(t *testing.T) {
	n := 50
	limit := 200
	suite, err := buildQuickSuite(quickOptions{
		url:         "http://localhost:8080/health",
		method:      "GET",
		invocations: &n,
		threads:     4,
		timer:       "constant",
		timerParams: []float64{10},
		max:         &limit,
		percentiles: "90:150",
	})
	require.NoError(t, err)

	wf, cfg, req, err := suite.Resolve(quickTestName)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/health", wf.URL)
	assert.Equal(t, 50, cfg.Invocations())
	assert.Equal(t, 4, cfg.Threads())
	require.NotNil(t, req)
	assert.Equal(t, 200, *req.Max)
	assert.Equal(t, []config.PercentileBound{{Percentile: 90, Bound: 150}}, req.Percentiles)
	assert.Equal(t, quickTestName, testID(suite, quickTestName))
}

func TestBuildQuickSuite_Invalid(t *testing.T) {
	tests := []struct {
		name string
		q    quickOptions
	}{
		{"unknown timer", quickOptions{url: "http://x", timer: "sometimes"}},
		{"bad percentiles", quickOptions{url: "http://x", timer: "none", percentiles: "150:1"}},
		{"bad duration", quickOptions{url: "http://x", timer: "none", duration: "later"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildQuickSuite(tt.q)
			assert.Error(t, err)
		})
	}

	suite, err := buildQuickSuite(quickOptions{url: "http://x", timer: "none"})
	require.NoError(t, err)
	_, _, req, err := suite.Resolve(quickTestName)
	require.NoError(t, err)
	assert.Nil(t, req, "no requirement flags means nothing is checked")
}

func TestValidateSuite(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateSuite(writeSuite(t, cliSuite), &out))
	assert.Contains(t, out.String(), "✓ svc.Fast  (invocations=5 threads=2 timer=none)")
	assert.Contains(t, out.String(), "✓ svc.Strict")

	out.Reset()
	bad := writeSuite(t, "tests:\n  a:\n    workload:\n      type: http\n")
	require.Error(t, validateSuite(bad, &out))
	assert.Contains(t, out.String(), "Configuration validation errors:")
	assert.Contains(t, out.String(), "tests.a.workload.url")
}

func TestRootCmd_QuickRun(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs([]string{"run", "--url", server.URL, "--invocations", "5", "--threads", "2", "--max", "5000", "--no-color"})
	defer RootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Equal(t, int64(5), hits.Load())
	assert.Contains(t, out.String(), "✓ quick")
	assert.Contains(t, out.String(), "samples: 5")
}

func TestRunOptionsFromFlags_RequiresSource(t *testing.T) {
	var errOut bytes.Buffer
	RootCmd.SetOut(io.Discard)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs([]string{"validate"})
	defer RootCmd.SetArgs(nil)

	assert.Error(t, Execute())
}
