package onboarding

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidateStep checks answers against a step's questions and returns the
// normalized values. Unknown question IDs are rejected.
func ValidateStep(s Step, answers map[string]interface{}) (map[string]interface{}, error) {
	known := make(map[string]bool, len(s.Questions))
	for _, qu := range s.Questions {
		known[qu.ID] = true
	}
	for id := range answers {
		if !known[id] {
			return nil, &FieldError{Field: id, Msg: "is not a question in step " + s.ID}
		}
	}

	out := make(map[string]interface{}, len(answers))
	for _, qu := range s.Questions {
		raw, ok := answers[qu.ID]
		if !ok || raw == nil {
			if qu.Required {
				return nil, &FieldError{Field: qu.ID, Msg: "is required"}
			}
			continue
		}
		v, err := normalize(qu, raw)
		if err != nil {
			return nil, err
		}
		if v == nil {
			if qu.Required {
				return nil, &FieldError{Field: qu.ID, Msg: "is required"}
			}
			continue
		}
		out[qu.ID] = v
	}
	return out, nil
}

// normalize converts one raw JSON answer. A nil result means "no answer".
func normalize(qu Question, raw interface{}) (interface{}, error) {
	bad := func(format string, args ...interface{}) error {
		return &FieldError{Field: qu.ID, Msg: fmt.Sprintf(format, args...)}
	}
	switch qu.Type {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, bad("must be text")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if err := bounds(qu, float64(utf8.RuneCountInString(s)), "length"); err != nil {
			return nil, err
		}
		return s, nil

	case TypeNumber:
		n, ok := number(raw)
		if !ok {
			return nil, bad("must be a number")
		}
		if err := bounds(qu, n, "value"); err != nil {
			return nil, err
		}
		return n, nil

	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, bad("must be a date")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, bad("must be YYYY-MM-DD")
		}
		return s, nil

	case TypeSingleChoice:
		s, ok := raw.(string)
		if !ok {
			return nil, bad("must be one of the options")
		}
		if s == "" {
			return nil, nil
		}
		if !contains(qu.Options, s) {
			return nil, bad("must be one of %s", strings.Join(qu.Options, ", "))
		}
		return s, nil

	case TypeMultiChoice:
		list, ok := raw.([]interface{})
		if !ok {
			if ss, isStrings := raw.([]string); isStrings {
				for _, s := range ss {
					list = append(list, s)
				}
				ok = true
			}
		}
		if !ok {
			return nil, bad("must be a list of options")
		}
		seen := make(map[string]bool, len(list))
		picked := make([]string, 0, len(list))
		for _, item := range list {
			s, isString := item.(string)
			if !isString || !contains(qu.Options, s) {
				return nil, bad("must only contain %s", strings.Join(qu.Options, ", "))
			}
			if !seen[s] {
				seen[s] = true
				picked = append(picked, s)
			}
		}
		if len(picked) == 0 {
			return nil, nil
		}
		if err := bounds(qu, float64(len(picked)), "selection count"); err != nil {
			return nil, err
		}
		return picked, nil

	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, bad("must be true or false")
		}
		return b, nil
	}
	return nil, bad("has unsupported type %q", qu.Type)
}

func bounds(qu Question, v float64, what string) error {
	if qu.Min != nil && v < *qu.Min {
		return &FieldError{Field: qu.ID, Msg: fmt.Sprintf("%s must be at least %g", what, *qu.Min)}
	}
	if qu.Max != nil && v > *qu.Max {
		return &FieldError{Field: qu.ID, Msg: fmt.Sprintf("%s must be at most %g", what, *qu.Max)}
	}
	return nil
}

func number(raw interface{}) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
