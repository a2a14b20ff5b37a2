package ops

import "golang.org/x/exp/constraints"

type NumericTypes interface {
	constraints.Integer | constraints.Float
}
