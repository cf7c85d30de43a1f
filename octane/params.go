package octane

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"octane-sdk/query"
	"octane-sdk/reference"
)

// ParseParams validates and sanitizes a raw parameter set against a route's
// schema. A slice input is a bulk operation: every element is validated
// against the same schema. Validation failures return before any request is
// sent.
func ParseParams(input any, schema map[string]*ParamSpec) (any, error) {
	switch in := input.(type) {
	case nil:
		return sanitizeObject(map[string]any{}, schema)
	case []any:
		out := make([]map[string]any, 0, len(in))
		for i, el := range in {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, &ValidationError{Param: fmt.Sprintf("[%d]", i), Value: el, Reason: "bulk elements must be objects"}
			}
			sanitized, err := sanitizeObject(obj, schema)
			if err != nil {
				return nil, err
			}
			out = append(out, sanitized)
		}
		return out, nil
	case []map[string]any:
		out := make([]map[string]any, 0, len(in))
		for _, obj := range in {
			sanitized, err := sanitizeObject(obj, schema)
			if err != nil {
				return nil, err
			}
			out = append(out, sanitized)
		}
		return out, nil
	case map[string]any:
		return sanitizeObject(in, schema)
	default:
		return nil, &ValidationError{Param: "", Value: input, Reason: "params must be an object or a slice of objects"}
	}
}

// sanitizeObject walks the declared schema: empty optional values are
// skipped, empty required values fail naming the parameter, everything
// else is dispatched to sanitizeParam. Undeclared input keys are dropped.
func sanitizeObject(input map[string]any, schema map[string]*ParamSpec) (map[string]any, error) {
	out := make(map[string]any, len(input))
	for _, name := range sortedSpecKeys(schema) {
		spec := schema[name]
		value, present := input[name]
		if s, ok := value.(string); ok {
			value = strings.TrimSpace(s)
		}
		if !present || value == nil || value == "" {
			if spec.Required {
				return nil, &ValidationError{Param: name, Reason: "missing"}
			}
			continue
		}
		sanitized, err := sanitizeParam(name, value, spec)
		if err != nil {
			return nil, err
		}
		out[name] = sanitized
	}
	return out, nil
}

// sanitizeParam coerces one value against its declared spec. Out-of-range
// integers and over-length strings are rejected, not passed through.
func sanitizeParam(name string, value any, spec *ParamSpec) (any, error) {
	invalid := func() error {
		return &ValidationError{Param: name, Value: value}
	}
	switch spec.Type {
	case ParamInteger:
		n, ok := coerceInt(value)
		if !ok {
			return nil, invalid()
		}
		if spec.MinValue != nil && n < *spec.MinValue {
			return nil, invalid()
		}
		if spec.MaxValue != nil && n > *spec.MaxValue {
			return nil, invalid()
		}
		return n, nil

	case ParamBoolean:
		// No coercion from strings: "true" is not a boolean.
		b, ok := value.(bool)
		if !ok {
			return nil, invalid()
		}
		return b, nil

	case ParamDate, ParamDatetime:
		t, ok := coerceTime(value)
		if !ok {
			return nil, invalid()
		}
		return t.UTC().Format(time.RFC3339), nil

	case ParamString, ParamMemo:
		s, ok := value.(string)
		if !ok {
			return nil, invalid()
		}
		if spec.MaxLength != nil && len(s) > *spec.MaxLength {
			return nil, invalid()
		}
		return s, nil

	case ParamObject:
		if _, ok := value.(map[string]any); !ok {
			return nil, invalid()
		}
		return value, nil

	case ParamReference:
		if spec.Multiple {
			multi := reference.ParseMulti(value)
			if multi == nil {
				return nil, invalid()
			}
			return multi, nil
		}
		ref := reference.Parse(value)
		if ref == nil {
			return nil, invalid()
		}
		return ref, nil

	case ParamQuery:
		q, ok := value.(*query.Query)
		if !ok {
			return nil, invalid()
		}
		built, err := q.Build()
		if err != nil {
			return nil, &ValidationError{Param: name, Value: value, Reason: err.Error()}
		}
		return `"` + built + `"`, nil

	case ParamFile:
		path, ok := value.(string)
		if !ok || !filepath.IsAbs(path) {
			return nil, invalid()
		}
		// Opened eagerly so a bad path fails here, before dispatch.
		file, err := os.Open(path)
		if err != nil {
			return nil, &ValidationError{Param: name, Value: value, Reason: err.Error()}
		}
		return file, nil

	default:
		// Unknown types are schema defects, not user-input defects.
		return nil, configErrorf("unknown parameter type %q for %s", spec.Type, name)
	}
}

func coerceInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func sortedSpecKeys(schema map[string]*ParamSpec) []string {
	keys := make([]string, 0, len(schema))
	for key := range schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
