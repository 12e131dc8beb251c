package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Field error problems.
const (
	ProblemMissing      = "missing"
	ProblemInvalidType  = "invalid_type"
	ProblemInvalidValue = "invalid_value"
)

// FieldError describes one argument that failed validation.
type FieldError struct {
	Field    string `json:"field"`
	Problem  string `json:"problem"`
	Expected string `json:"expected,omitempty"`
	Message  string `json:"message"`
}

// ValidationError collects every field error found in one call.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "invalid arguments"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields in report order.
func (e *ValidationError) Fields() []string {
	names := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		names = append(names, fe.Field)
	}
	return names
}

// Validate checks raw against s and returns a coerced copy with defaults applied.
// Unknown fields are carried through untouched.
func Validate(s Schema, raw map[string]any) (Args, error) {
	out := make(Args, len(raw)+len(s.Fields))
	for key, value := range raw {
		out[key] = value
	}

	var problems []FieldError
	for _, field := range s.Fields {
		value, present := raw[field.Name]
		if present && value == nil {
			present = false
			delete(out, field.Name)
		}
		if !present {
			if field.Required {
				problems = append(problems, FieldError{
					Field:    field.Name,
					Problem:  ProblemMissing,
					Expected: string(field.Type),
					Message:  fmt.Sprintf("missing required field %q", field.Name),
				})
				continue
			}
			if field.Default != nil {
				if coerced, ok := coerce(field.Type, field.Items, field.Default); ok {
					out[field.Name] = coerced
				}
			}
			continue
		}

		coerced, ok := coerce(field.Type, field.Items, value)
		if !ok {
			expected := string(field.Type)
			if field.Type == Array && field.Items != "" {
				expected = "array of " + string(field.Items)
			}
			problems = append(problems, FieldError{
				Field:    field.Name,
				Problem:  ProblemInvalidType,
				Expected: expected,
				Message:  fmt.Sprintf("field %q must be %s", field.Name, article(expected)),
			})
			continue
		}
		if len(field.Enum) > 0 {
			if str, _ := coerced.(string); !slices.Contains(field.Enum, str) {
				problems = append(problems, FieldError{
					Field:    field.Name,
					Problem:  ProblemInvalidValue,
					Expected: strings.Join(field.Enum, "|"),
					Message:  fmt.Sprintf("field %q must be one of: %s", field.Name, strings.Join(field.Enum, ", ")),
				})
				continue
			}
		}
		out[field.Name] = coerced
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Errors: problems}
	}
	return out, nil
}

// DecodeArguments decodes a raw tools/call argument payload. An empty or null
// payload yields an empty map; anything other than a JSON object is rejected.
func DecodeArguments(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{
			Field:    "arguments",
			Problem:  ProblemInvalidType,
			Expected: string(Object),
			Message:  fmt.Sprintf("arguments are not valid JSON: %v", err),
		}}}
	}
	args, ok := value.(map[string]any)
	if !ok {
		return nil, &ValidationError{Errors: []FieldError{{
			Field:    "arguments",
			Problem:  ProblemInvalidType,
			Expected: string(Object),
			Message:  "arguments must be an object",
		}}}
	}
	return args, nil
}

func article(expected string) string {
	switch expected[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + expected
	default:
		return "a " + expected
	}
}

func coerce(t, items Type, value any) (any, bool) {
	switch t {
	case String:
		s, ok := value.(string)
		return s, ok
	case Boolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false
	case Integer:
		return toInt(value)
	case Number:
		return toFloat(value)
	case Array:
		return toArray(items, value)
	case Object:
		m, ok := value.(map[string]any)
		return m, ok
	}
	return nil, false
}

func toInt(value any) (any, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		if f, err := v.Float64(); err == nil {
			return integral(f)
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return int(n), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integral(f)
		}
	}
	return nil, false
}

func integral(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}
	return int(f), true
}

func toFloat(value any) (any, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func toArray(items Type, value any) (any, bool) {
	var elems []any
	switch v := value.(type) {
	case []any:
		elems = v
	case []string:
		elems = make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
	default:
		return nil, false
	}
	out := make([]any, len(elems))
	for i, elem := range elems {
		if items == "" {
			out[i] = elem
			continue
		}
		coerced, ok := coerce(items, "", elem)
		if !ok {
			return nil, false
		}
		out[i] = coerced
	}
	return out, true
}
