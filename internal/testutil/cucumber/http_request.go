package cucumber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^I (GET|POST) path "([^"]*)"$`, s.iSendRequest)
		ctx.Step(`^I (GET|POST) path "([^"]*)" with json body:$`, s.iSendRequestWithJSONBody)
	})
}

func (s *TestScenario) iSendRequest(method, path string) error {
	return s.send(method, path, "")
}

func (s *TestScenario) iSendRequestWithJSONBody(method, path string, doc *godog.DocString) error {
	return s.send(method, path, doc.Content)
}

// send issues one request against APIURL and records the response.
func (s *TestScenario) send(method, path, body string) error {
	if s.APIURL == "" {
		return fmt.Errorf("the service under test has not been started")
	}
	s.last = nil

	req, err := http.NewRequestWithContext(context.Background(), method, s.APIURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	s.last = &response{status: resp.StatusCode, body: data}
	return nil
}
