// Package cucumber runs godog scenarios against the chat history HTTP API.
//
// Step modules append themselves to StepModules from init(). Every scenario
// gets a fresh TestScenario that remembers the last HTTP response, so the
// response steps can inspect it.
package cucumber

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

// StepModules register step definitions for one scenario.
var StepModules []func(ctx *godog.ScenarioContext, s *TestScenario)

// TestSuite is shared by every scenario of one godog run.
type TestSuite struct {
	Mu       sync.Mutex
	TestingT *testing.T
	// Extra carries runner settings (backends, config tweaks) to step modules.
	Extra map[string]any
}

func NewTestSuite() *TestSuite {
	return &TestSuite{Extra: map[string]any{}}
}

// DefaultOptions prints progress to stdout and runs scenarios one at a time,
// in random order. Scenarios share the process-wide readiness flag.
func DefaultOptions() godog.Options {
	return godog.Options{
		Output:      colors.Colored(os.Stdout),
		Format:      "progress",
		Paths:       []string{"features"},
		Randomize:   time.Now().UTC().UnixNano(),
		Concurrency: 1,
	}
}

// ApplyReportOptions switches opts to a junit report file named after
// testName when GODOG_REPORT_DIR is set. The returned func closes the file.
func ApplyReportOptions(opts *godog.Options, testName string) func() {
	dir := os.Getenv("GODOG_REPORT_DIR")
	if dir == "" {
		return func() {}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return func() {}
	}
	f, err := os.Create(filepath.Join(dir, strings.ReplaceAll(testName, "/", "-")+".xml"))
	if err != nil {
		return func() {}
	}
	opts.Output, opts.Format = f, "junit"
	return func() { _ = f.Close() }
}

// InitializeScenario is the godog ScenarioInitializer of the suite.
func (suite *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	s := &TestScenario{
		Suite:  suite,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, module := range StepModules {
		module(ctx, s)
	}
}

// TestScenario is the state of one scenario. Steps of a scenario run
// sequentially, so it needs no locking.
type TestScenario struct {
	Suite *TestSuite
	// APIURL is the base URL of the server under test, set once it starts.
	APIURL string

	client *http.Client
	last   *response
}

// response is the last HTTP exchange of a scenario.
type response struct {
	status int
	body   []byte
	doc    any
	docErr error
	parsed bool
}

// decoded decodes the body as json once and caches the result.
func (r *response) decoded() (any, error) {
	if !r.parsed {
		r.parsed = true
		if r.docErr = json.Unmarshal(r.body, &r.doc); r.docErr != nil {
			r.docErr = fmt.Errorf("response is not json: %w\n%s", r.docErr, r.body)
		}
	}
	return r.doc, r.docErr
}

func (s *TestScenario) Logf(format string, args ...any) {
	s.Suite.TestingT.Logf(format, args...)
}

// SuiteExtra reads a runner-supplied value under the suite lock.
func (s *TestScenario) SuiteExtra(key string) (any, bool) {
	s.Suite.Mu.Lock()
	defer s.Suite.Mu.Unlock()
	v, ok := s.Suite.Extra[key]
	return v, ok
}

func (s *TestScenario) lastResponse() (*response, error) {
	if s.last == nil {
		return nil, fmt.Errorf("no HTTP request has been sent yet")
	}
	return s.last, nil
}
