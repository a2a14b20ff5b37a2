package transform

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported transform version")
	ErrInvalidTransform   = errors.New("invalid transform")
)

var validate = validator.New()

// Validate checks the structural rules of a descriptor. Field existence and
// types are checked by the worker against the actual input.
func Validate(t *DataFrameTransform) error {
	if t == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidTransform)
	}
	if t.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, t.Version)
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransform, err)
	}

	for _, f := range t.Filters {
		if !f.Operator.valid() {
			return fmt.Errorf("%w: unknown filter operator %d on `%s`", ErrInvalidTransform, byte(f.Operator), f.FieldName)
		}
		if f.Operator == SemiJoinField {
			if f.SemiJoin == nil {
				return fmt.Errorf("%w: semi join filter on `%s` without table", ErrInvalidTransform, f.FieldName)
			}
			continue
		}
		literals := 0
		for _, set := range []bool{f.LiteralDouble != nil, f.LiteralU64 != nil, f.LiteralString != nil} {
			if set {
				literals++
			}
		}
		if literals != 1 {
			return fmt.Errorf("%w: filter on `%s` needs exactly one literal, got %d", ErrInvalidTransform, f.FieldName, literals)
		}
		if f.LiteralString != nil && f.Operator != Equal {
			return fmt.Errorf("%w: string literal only supports %s, got %s", ErrInvalidTransform, Equal, f.Operator)
		}
	}

	if t.GroupBy != nil {
		if err := validateGroupBy(t.GroupBy); err != nil {
			return err
		}
	}
	return nil
}

func validateGroupBy(g *GroupByTransform) error {
	outputs := make(map[string]struct{})
	claim := func(name string) error {
		if name == "" {
			return nil
		}
		if _, exists := outputs[name]; exists {
			return fmt.Errorf("%w: duplicate output name `%s`", ErrInvalidTransform, name)
		}
		outputs[name] = struct{}{}
		return nil
	}

	for _, k := range g.Keys {
		if err := claim(k.OutputAlias); err != nil {
			return err
		}
		if k.Binning != nil {
			for _, alias := range []string{k.Binning.OutputBinWidthAlias, k.Binning.OutputBinLbAlias, k.Binning.OutputBinUbAlias} {
				if err := claim(alias); err != nil {
					return err
				}
			}
		}
	}

	for _, a := range g.Aggregates {
		if !a.Function.valid() {
			return fmt.Errorf("%w: unknown aggregation function %d", ErrInvalidTransform, byte(a.Function))
		}
		if err := claim(a.OutputAlias); err != nil {
			return err
		}
		if a.Function != CountStar && a.FieldName == "" {
			return fmt.Errorf("%w: %s aggregate `%s` has no input field", ErrInvalidTransform, a.Function, a.OutputAlias)
		}
		if a.Distinct && a.Function != Count {
			return fmt.Errorf("%w: distinct is not supported for %s", ErrInvalidTransform, a.Function)
		}
	}
	return nil
}
