package schema

import (
	"fmt"

	"github.com/ankoh/dashql-sub001/bits"
	"github.com/ankoh/dashql-sub001/ops"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// OrdinalData is an ordinal column widened to float64 with its validity mask.
type OrdinalData struct {
	Values []float64
	Valid  *bits.Bitfield
}

func widen[T ops.NumericTypes](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

func validityOf(arr arrow.Array) *bits.Bitfield {
	if arr.NullN() == 0 {
		return bits.NewFullBitfield(arr.Len())
	}
	valid := bits.NewBitfield(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsValid(i) {
			valid.Set(i)
		}
	}
	return valid
}

// ReadOrdinal reads any ordinal arrow array as float64 values.
// Temporal values keep their storage unit.
func ReadOrdinal(arr arrow.Array) (OrdinalData, error) {
	var values []float64

	switch a := arr.(type) {
	case *array.Int8:
		values = widen(a.Int8Values())
	case *array.Int16:
		values = widen(a.Int16Values())
	case *array.Int32:
		values = widen(a.Int32Values())
	case *array.Int64:
		values = widen(a.Int64Values())
	case *array.Uint8:
		values = widen(a.Uint8Values())
	case *array.Uint16:
		values = widen(a.Uint16Values())
	case *array.Uint32:
		values = widen(a.Uint32Values())
	case *array.Uint64:
		values = widen(a.Uint64Values())
	case *array.Float32:
		values = widen(a.Float32Values())
	case *array.Float64:
		values = widen(a.Float64Values())
	case *array.Date32:
		values = widen(a.Date32Values())
	case *array.Date64:
		values = widen(a.Date64Values())
	case *array.Time32:
		values = widen(a.Time32Values())
	case *array.Time64:
		values = widen(a.Time64Values())
	case *array.Timestamp:
		values = widen(a.TimestampValues())
	case *array.Duration:
		values = widen(a.DurationValues())
	case *array.Float16:
		values = make([]float64, a.Len())
		for i := range values {
			values[i] = float64(a.Value(i).Float32())
		}
	case *array.Boolean:
		values = make([]float64, a.Len())
		for i := range values {
			if a.Value(i) {
				values[i] = 1
			}
		}
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		values = make([]float64, a.Len())
		for i := range values {
			values[i] = a.Value(i).ToFloat64(scale)
		}
	case *array.Decimal256:
		scale := a.DataType().(*arrow.Decimal256Type).Scale
		values = make([]float64, a.Len())
		for i := range values {
			values[i] = a.Value(i).ToFloat64(scale)
		}
	default:
		return OrdinalData{}, fmt.Errorf("type %s is not ordinal", arr.DataType())
	}

	return OrdinalData{
		Values: values,
		Valid:  validityOf(arr),
	}, nil
}

// ReadKeys reads a string or list column as comparable string keys.
// List values are keyed by their textual rendering.
func ReadKeys(arr arrow.Array) ([]string, *bits.Bitfield) {
	keys := make([]string, arr.Len())

	switch a := arr.(type) {
	case *array.String:
		for i := range keys {
			if a.IsValid(i) {
				keys[i] = a.Value(i)
			}
		}
	case *array.LargeString:
		for i := range keys {
			if a.IsValid(i) {
				keys[i] = a.Value(i)
			}
		}
	case *array.StringView:
		for i := range keys {
			if a.IsValid(i) {
				keys[i] = a.Value(i)
			}
		}
	default:
		for i := range keys {
			if arr.IsValid(i) {
				keys[i] = arr.ValueStr(i)
			}
		}
	}
	return keys, validityOf(arr)
}
