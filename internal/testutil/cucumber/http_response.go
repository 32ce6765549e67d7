package cucumber

import (
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/itchyny/gojq"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the response code should be (\d+)$`, s.theResponseCodeShouldBe)
		ctx.Step(`^the response should match json:$`, s.theResponseShouldMatchJSON)
		ctx.Step(`^the response should contain json:$`, s.theResponseShouldContainJSON)
		// The selector is a jq expression and may itself contain quotes.
		ctx.Step(`^the "(.*)" selection from the response should match "([^"]*)"$`, s.theSelectionShouldMatch)
		ctx.Step(`^the "(.*)" selection from the response should match json:$`, s.theSelectionShouldMatchJSON)
	})
}

func (s *TestScenario) theResponseCodeShouldBe(expected int) error {
	r, err := s.lastResponse()
	if err != nil {
		return err
	}
	if r.status != expected {
		return fmt.Errorf("want response code %d, got %d: %s", expected, r.status, r.body)
	}
	return nil
}

func (s *TestScenario) theResponseShouldMatchJSON(expected *godog.DocString) error {
	r, err := s.lastResponse()
	if err != nil {
		return err
	}
	return s.JSONMustMatch(string(r.body), expected.Content)
}

func (s *TestScenario) theResponseShouldContainJSON(expected *godog.DocString) error {
	r, err := s.lastResponse()
	if err != nil {
		return err
	}
	return s.JSONMustContain(string(r.body), expected.Content)
}

// selection runs a jq expression against the last response body and returns
// its first result.
func (s *TestScenario) selection(expr string) (any, error) {
	r, err := s.lastResponse()
	if err != nil {
		return nil, err
	}
	doc, err := r.decoded()
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("bad selector %q: %w", expr, err)
	}
	v, ok := query.Run(doc).Next()
	if !ok {
		return nil, fmt.Errorf("selector %q matched nothing in:\n%s", expr, r.body)
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("selector %q: %w", expr, err)
	}
	return v, nil
}

func (s *TestScenario) theSelectionShouldMatch(expr, expected string) error {
	v, err := s.selection(expr)
	if err != nil {
		return err
	}
	actual, ok := v.(string)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		actual = string(data)
	}
	if actual != expected {
		return fmt.Errorf("selection %q: want %q, got %q", expr, expected, actual)
	}
	return nil
}

func (s *TestScenario) theSelectionShouldMatchJSON(expr string, expected *godog.DocString) error {
	v, err := s.selection(expr)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.JSONMustMatch(string(data), expected.Content)
}
