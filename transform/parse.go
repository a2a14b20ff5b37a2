package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFilter parses a predicate like `score<20`, `score>=1.5` or `name=alice`.
func ParseFilter(expr string) (FilterTransform, error) {
	ops := []struct {
		token string
		op    FilterOperator
	}{
		{"<=", LessEqual},
		{">=", GreaterEqual},
		{"<", LessThan},
		{">", GreaterThan},
		{"=", Equal},
	}

	for _, candidate := range ops {
		idx := strings.Index(expr, candidate.token)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(expr[:idx])
		literal := strings.TrimSpace(expr[idx+len(candidate.token):])
		if field == "" || literal == "" {
			break
		}

		if v, err := strconv.ParseFloat(literal, 64); err == nil {
			return Compare(field, candidate.op, v), nil
		}
		if candidate.op != Equal {
			return FilterTransform{}, fmt.Errorf("literal `%s` is not numeric", literal)
		}
		return EqualString(field, literal), nil
	}
	return FilterTransform{}, fmt.Errorf("unable to parse filter `%s`", expr)
}

// ParseOrder parses `field`, `field:asc` or `field:desc`.
func ParseOrder(expr string) (OrderByConstraint, error) {
	field, dir, _ := strings.Cut(expr, ":")
	field = strings.TrimSpace(field)
	if field == "" {
		return OrderByConstraint{}, fmt.Errorf("unable to parse ordering `%s`", expr)
	}

	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return OrderByConstraint{FieldName: field, Ascending: true}, nil
	case "desc":
		return OrderByConstraint{FieldName: field, Ascending: false, NullsFirst: false}, nil
	default:
		return OrderByConstraint{}, fmt.Errorf("unknown ordering direction `%s`", dir)
	}
}
