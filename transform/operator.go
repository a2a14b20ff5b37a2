package transform

import "fmt"

type FilterOperator byte

const (
	Equal FilterOperator = iota
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	SemiJoinField
)

func (c FilterOperator) String() string {
	switch c {
	case Equal:
		return "EQ"
	case LessThan:
		return "LT"
	case LessEqual:
		return "LE"
	case GreaterThan:
		return "GT"
	case GreaterEqual:
		return "GE"
	case SemiJoinField:
		return "SEMI_JOIN"
	default:
		panic(fmt.Sprintf("unknown operand %v", byte(c)))
	}
}

func (c FilterOperator) valid() bool {
	return c <= SemiJoinField
}

type AggregationFunction byte

const (
	Min AggregationFunction = iota
	Max
	Average
	Count
	CountStar
)

func (f AggregationFunction) String() string {
	switch f {
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Average:
		return "AVG"
	case Count:
		return "COUNT"
	case CountStar:
		return "COUNT_STAR"
	default:
		panic(fmt.Sprintf("unknown aggregation function %v", byte(f)))
	}
}

func (f AggregationFunction) valid() bool {
	return f <= CountStar
}
