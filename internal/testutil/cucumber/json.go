package cucumber

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// JSONMustMatch fails unless actual and expected decode to equal values.
func (s *TestScenario) JSONMustMatch(actual, expected string) error {
	act, exp, err := decodePair(actual, expected)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(exp, act) {
		return fmt.Errorf("json mismatch:\n%s", unifiedDiff(indent(exp), indent(act)))
	}
	return nil
}

// JSONMustContain fails unless every field of expected is present in actual
// with the same value. Objects in actual may carry extra keys; arrays must
// match in length.
func (s *TestScenario) JSONMustContain(actual, expected string) error {
	act, exp, err := decodePair(actual, expected)
	if err != nil {
		return err
	}
	if err := jsonSubset(exp, act, "$"); err != nil {
		return fmt.Errorf("%w\nexpected subset:\n%s\nactual:\n%s", err, indent(exp), indent(act))
	}
	return nil
}

func decodePair(actual, expected string) (act, exp any, err error) {
	if err := json.Unmarshal([]byte(actual), &act); err != nil {
		return nil, nil, fmt.Errorf("actual is not json: %w\n%s", err, actual)
	}
	if strings.TrimSpace(expected) == "" {
		return nil, nil, fmt.Errorf("no expected json given; actual was:\n%s", indent(act))
	}
	if err := json.Unmarshal([]byte(expected), &exp); err != nil {
		return nil, nil, fmt.Errorf("expected is not json: %w\n%s", err, expected)
	}
	return act, exp, nil
}

func jsonSubset(expected, actual any, path string) error {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: want an object, got %T", path, actual)
		}
		for k, v := range exp {
			av, ok := act[k]
			if !ok {
				return fmt.Errorf("%s: missing key %q", path, k)
			}
			if err := jsonSubset(v, av, path+"."+k); err != nil {
				return err
			}
		}
		return nil
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return fmt.Errorf("%s: want an array, got %T", path, actual)
		}
		if len(exp) != len(act) {
			return fmt.Errorf("%s: want %d elements, got %d", path, len(exp), len(act))
		}
		for i := range exp {
			if err := jsonSubset(exp[i], act[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		if !reflect.DeepEqual(expected, actual) {
			return fmt.Errorf("%s: want %v, got %v", path, expected, actual)
		}
		return nil
	}
}

func indent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func unifiedDiff(expected, actual string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	return diff
}
