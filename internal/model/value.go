package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags a coerced field value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindJSON
)

// Value is the tagged representation a raw field value is coerced into
// before comparison or validation, so type handling is exhaustive instead
// of scattered interface{} switches.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	JSON  interface{}
}

// Native returns the value as the plain Go type stored in records
func (v Value) Native() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindTime:
		return v.Time
	case KindJSON:
		return v.JSON
	default:
		return nil
	}
}

// timeLayouts are accepted DateTime input formats, most specific first
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a DateTime value from its accepted input formats
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as DateTime", s)
}

// Coerce converts a raw value into the tagged representation for the
// declared field type. Raw values arrive as strings from query parameters
// and as decoded JSON types from request bodies.
func Coerce(ft FieldType, raw interface{}) (Value, error) {
	if raw == nil {
		return Value{Kind: KindNull}, nil
	}

	switch ft {
	case TypeString:
		return Value{Kind: KindString, Str: toString(raw)}, nil

	case TypeEnum:
		return Value{Kind: KindString, Str: strings.ToUpper(toString(raw))}, nil

	case TypeInt:
		switch v := raw.(type) {
		case int:
			return Value{Kind: KindInt, Int: int64(v)}, nil
		case int64:
			return Value{Kind: KindInt, Int: v}, nil
		case float64:
			return Value{Kind: KindInt, Int: int64(v)}, nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return Value{}, fmt.Errorf("cannot coerce %q to Int", v.String())
			}
			return Value{Kind: KindInt, Int: n}, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("cannot coerce %q to Int", v)
			}
			return Value{Kind: KindInt, Int: n}, nil
		}
		return Value{}, fmt.Errorf("cannot coerce %T to Int", raw)

	case TypeFloat:
		switch v := raw.(type) {
		case int:
			return Value{Kind: KindFloat, Float: float64(v)}, nil
		case int64:
			return Value{Kind: KindFloat, Float: float64(v)}, nil
		case float64:
			return Value{Kind: KindFloat, Float: v}, nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return Value{}, fmt.Errorf("cannot coerce %q to Float", v.String())
			}
			return Value{Kind: KindFloat, Float: f}, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return Value{}, fmt.Errorf("cannot coerce %q to Float", v)
			}
			return Value{Kind: KindFloat, Float: f}, nil
		}
		return Value{}, fmt.Errorf("cannot coerce %T to Float", raw)

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return Value{Kind: KindBool, Bool: v}, nil
		case string:
			// Query values compare against the literal "true" string
			return Value{Kind: KindBool, Bool: strings.EqualFold(strings.TrimSpace(v), "true")}, nil
		}
		return Value{}, fmt.Errorf("cannot coerce %T to Boolean", raw)

	case TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return Value{Kind: KindTime, Time: v}, nil
		case string:
			t, err := ParseTime(v)
			if err != nil {
				return Value{}, err
			}
			return Value{Kind: KindTime, Time: t}, nil
		}
		return Value{}, fmt.Errorf("cannot coerce %T to DateTime", raw)

	case TypeJSON:
		return Value{Kind: KindJSON, JSON: raw}, nil
	}

	return Value{}, fmt.Errorf("unknown field type %v", ft)
}

// Compare orders two values of the same kind. Returns <0, 0, >0. JSON and
// null values only support equality.
func Compare(a, b Value) (int, error) {
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("cannot compare %v with %v", a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindString:
		return strings.Compare(a.Str, b.Str), nil
	case KindInt:
		switch {
		case a.Int < b.Int:
			return -1, nil
		case a.Int > b.Int:
			return 1, nil
		}
		return 0, nil
	case KindFloat:
		switch {
		case a.Float < b.Float:
			return -1, nil
		case a.Float > b.Float:
			return 1, nil
		}
		return 0, nil
	case KindBool:
		if a.Bool == b.Bool {
			return 0, nil
		}
		if !a.Bool {
			return -1, nil
		}
		return 1, nil
	case KindTime:
		switch {
		case a.Time.Before(b.Time):
			return -1, nil
		case a.Time.After(b.Time):
			return 1, nil
		}
		return 0, nil
	case KindNull:
		return 0, nil
	}
	return 0, fmt.Errorf("values of kind %v are not ordered", a.Kind)
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
