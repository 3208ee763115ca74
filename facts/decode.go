package facts

import (
	"math"

	"github.com/spf13/cast"

	"plasa/plasa"
)

func malformed(f Fact, want string, err error) error {
	field := f.Query.Field
	if f.Query.Arg != "" {
		field += "(" + f.Query.Arg + ")"
	}
	e := plasa.Malformed(string(f.Query.Kind), f.Query.ID, field, "want %s, got %T(%v)", want, f.Value, f.Value)
	if err != nil {
		e = plasa.Malformed(string(f.Query.Kind), f.Query.ID, field, "want %s: %s", want, err)
	}
	e.Anchor = f.Anchor
	return e
}

func Int64(f Fact) (int64, error) {
	switch v := f.Value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, malformed(f, "integer", nil)
		}
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, malformed(f, "integer", nil)
		}
	case bool, nil:
		return 0, malformed(f, "integer", nil)
	}
	n, err := cast.ToInt64E(f.Value)
	if err != nil {
		return 0, malformed(f, "integer", err)
	}
	return n, nil
}

// NonNegative decodes an integer that may not be below zero (balances, supplies,
// counts).
func NonNegative(f Fact) (int64, error) {
	n, err := Int64(f)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, malformed(f, "integer >= 0", nil)
	}
	return n, nil
}

func String(f Fact) (string, error) {
	switch f.Value.(type) {
	case string, []byte:
	default:
		return "", malformed(f, "string", nil)
	}
	s, err := cast.ToStringE(f.Value)
	if err != nil {
		return "", malformed(f, "string", err)
	}
	return s, nil
}

func Bool(f Fact) (bool, error) {
	b, err := cast.ToBoolE(f.Value)
	if err != nil {
		return false, malformed(f, "bool", err)
	}
	return b, nil
}

func Strings(f Fact) ([]string, error) {
	if f.Value == nil {
		return []string{}, nil
	}
	s, err := cast.ToStringSliceE(f.Value)
	if err != nil {
		return nil, malformed(f, "list of strings", err)
	}
	return s, nil
}

func BoolMap(f Fact) (map[string]bool, error) {
	if f.Value == nil {
		return map[string]bool{}, nil
	}
	m, err := cast.ToStringMapBoolE(f.Value)
	if err != nil {
		return nil, malformed(f, "map of bools", err)
	}
	return m, nil
}

func StringsMap(f Fact) (map[string][]string, error) {
	if f.Value == nil {
		return map[string][]string{}, nil
	}
	m, err := cast.ToStringMapStringSliceE(f.Value)
	if err != nil {
		return nil, malformed(f, "map of string lists", err)
	}
	return m, nil
}
