package conductor

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"plasa/facts"
	"plasa/plasa"
)

// field is one fact to read and where to put it. Optional fields that are
// absent leave their destination untouched.
type field struct {
	q        facts.Query
	optional bool
	decode   func(facts.Fact) error
}

func (c *Conductor) fetch(ctx context.Context, r facts.Reader, fields ...field) error {
	tasks := make([]func(context.Context) error, len(fields))
	for i, fd := range fields {
		fd := fd
		tasks[i] = func(ctx context.Context) error {
			f, err := r.Read(ctx, fd.q)
			if err != nil {
				if fd.optional && errors.Is(err, plasa.ErrNotFound) {
					return nil
				}
				return err
			}
			return fd.decode(f)
		}
	}
	return c.coord.FanOut(ctx, tasks...)
}

func need(kind facts.Kind, id plasa.Address, name string, decode func(facts.Fact) error) field {
	return field{q: facts.Query{Kind: kind, ID: id, Field: name}, decode: decode}
}

func maybe(kind facts.Kind, id plasa.Address, name string, decode func(facts.Fact) error) field {
	return field{q: facts.Query{Kind: kind, ID: id, Field: name}, optional: true, decode: decode}
}

func keyed(f field, arg string) field {
	f.q.Arg = arg
	return f
}

func str(dst *string) func(facts.Fact) error {
	return func(f facts.Fact) (err error) {
		*dst, err = facts.String(f)
		return
	}
}

// label reads an enum-like fact that may be stored as its name or its number.
func label(dst *string) func(facts.Fact) error {
	return func(f facts.Fact) error {
		s, err := facts.String(f)
		if err == nil {
			*dst = s
			return nil
		}
		n, nerr := facts.Int64(f)
		if nerr != nil {
			return err
		}
		*dst = strconv.FormatInt(n, 10)
		return nil
	}
}

func i64(dst *int64) func(facts.Fact) error {
	return func(f facts.Fact) (err error) {
		*dst, err = facts.Int64(f)
		return
	}
}

func count(dst *int64) func(facts.Fact) error {
	return func(f facts.Fact) (err error) {
		*dst, err = facts.NonNegative(f)
		return
	}
}

func optCount(dst **int64) func(facts.Fact) error {
	return func(f facts.Fact) error {
		n, err := facts.NonNegative(f)
		if err != nil {
			return err
		}
		*dst = &n
		return nil
	}
}

func flag(dst *bool) func(facts.Fact) error {
	return func(f facts.Fact) (err error) {
		*dst, err = facts.Bool(f)
		return
	}
}

func list(dst *[]string) func(facts.Fact) error {
	return func(f facts.Fact) (err error) {
		*dst, err = facts.Strings(f)
		return
	}
}
