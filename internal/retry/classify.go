package retry

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// patternRule is one compiled pattern_rule(): if any pattern is a
// substring of the failure message (case-insensitive), classification
// applies. First matching rule, in declaration order, wins.
type patternRule struct {
	patterns       []string
	classification Classification
}

func (r patternRule) matches(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range r.patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Classifier evaluates an error message against an ordered list of
// patternRules, falling back to ClassificationUnknown.
type Classifier struct {
	rules []patternRule
}

// NewClassifierFromPatterns builds a Classifier directly from two plain
// pattern lists, without going through Starlark — the common case for
// DefaultPolicy.
func NewClassifierFromPatterns(transient, permanent []string) *Classifier {
	return &Classifier{rules: []patternRule{
		{patterns: transient, classification: ClassificationTransient},
		{patterns: permanent, classification: ClassificationPermanent},
	}}
}

// Classify returns the classification of the first matching rule, or
// ClassificationUnknown if none match.
func (c *Classifier) Classify(message string) Classification {
	for _, r := range c.rules {
		if r.matches(message) {
			return r.classification
		}
	}
	return ClassificationUnknown
}

// ParseClassifierScript parses a Starlark script of pattern_rule() calls
// into a Classifier, the same rule-list-plus-first-match shape
// internal/execpolicy uses for prefix_rule(), applied here to failure-text
// patterns instead of command prefixes:
//
//	pattern_rule(patterns=["timeout", "connection reset"], classification="transient")
//	pattern_rule(patterns=["permission denied"], classification="permanent")
func ParseClassifierScript(filename, source string) (*Classifier, error) {
	c := &Classifier{}

	patternRuleBuiltin := starlark.NewBuiltin("pattern_rule", func(
		thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
	) (starlark.Value, error) {
		var patternsVal *starlark.List
		var classificationStr string
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"patterns", &patternsVal,
			"classification", &classificationStr,
		); err != nil {
			return nil, err
		}
		patterns, err := stringsFromList(patternsVal)
		if err != nil {
			return nil, err
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("pattern_rule patterns must not be empty")
		}
		class, err := parseClassification(classificationStr)
		if err != nil {
			return nil, err
		}
		c.rules = append(c.rules, patternRule{patterns: patterns, classification: class})
		return starlark.None, nil
	})

	thread := &starlark.Thread{Name: filename}
	predeclared := starlark.StringDict{"pattern_rule": patternRuleBuiltin}
	if _, err := starlark.ExecFile(thread, filename, source, predeclared); err != nil {
		return nil, fmt.Errorf("retry: parse classifier script: %w", err)
	}
	return c, nil
}

func parseClassification(s string) (Classification, error) {
	switch strings.ToLower(s) {
	case "transient":
		return ClassificationTransient, nil
	case "permanent":
		return ClassificationPermanent, nil
	default:
		return ClassificationUnknown, fmt.Errorf("invalid classification %q: must be transient or permanent", s)
	}
}

func stringsFromList(list *starlark.List) ([]string, error) {
	out := make([]string, 0, list.Len())
	iter := list.Iterate()
	defer iter.Done()
	var val starlark.Value
	for iter.Next(&val) {
		s, ok := val.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("pattern_rule patterns must be strings, got %s", val.Type())
		}
		out = append(out, string(s))
	}
	return out, nil
}
