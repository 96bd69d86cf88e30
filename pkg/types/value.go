package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	errNotInteger = errors.New("not an integer")
	errNotNumber  = errors.New("not a number")
	errNotString  = errors.New("not a string")
	errNotDate    = errors.New("not a YYYY-MM-DD date")
	errNotIDList  = errors.New("not a list of identifiers")
	errRequired   = errors.New("value required")
)

// DisplayName returns the field's label, or its name with underscores
// replaced by spaces.
func (f *Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return strings.ReplaceAll(f.Name, "_", " ")
}

// Coerce converts v to the canonical Go value for the field type:
// string for string and date fields, int64 for int, float64 for float and
// []int64 for ids. Strings are parsed for numeric fields so raw user input
// can be passed through unchanged. A decoded JSON number is accepted for a
// string field as its literal text. Floats must be finite. A nil value is accepted only for
// optional fields (and yields an empty list for ids fields).
func (f *Field) Coerce(v any) (any, error) {
	if v == nil {
		switch {
		case f.Type == FieldIDs:
			return []int64{}, nil
		case f.Optional:
			return nil, nil
		default:
			return nil, errRequired
		}
	}
	switch f.Type {
	case FieldString:
		switch s := v.(type) {
		case string:
			return s, nil
		case json.Number:
			return s.String(), nil
		}
		return nil, errNotString
	case FieldDate:
		s, ok := v.(string)
		if !ok {
			return nil, errNotString
		}
		s = strings.TrimSpace(s)
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, errNotDate
		}
		return s, nil
	case FieldInt:
		return toInt(v)
	case FieldFloat:
		return toFloat(v)
	case FieldIDs:
		return toIDs(v)
	}
	return nil, fmt.Errorf("unknown field type %q", f.Type)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, errNotInteger
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errNotInteger
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		return i, nil
	}
	return 0, errNotInteger
}

func toFloat(v any) (float64, error) {
	f, err := parseFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return f, nil
}

func parseFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, errNotNumber
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errNotNumber
		}
		return f, nil
	}
	return 0, errNotNumber
}

func toIDs(v any) ([]int64, error) {
	switch list := v.(type) {
	case []int64:
		out := make([]int64, len(list))
		copy(out, list)
		return out, nil
	case []int:
		out := make([]int64, len(list))
		for i, n := range list {
			out[i] = int64(n)
		}
		return out, nil
	case []any:
		out := make([]int64, len(list))
		for i, item := range list {
			n, err := toInt(item)
			if err != nil {
				return nil, errNotIDList
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, errNotIDList
}
