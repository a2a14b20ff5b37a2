package schema

import "github.com/apache/arrow-go/v18/arrow"

// ClassifyColumns maps every field of s to exactly one column group, in schema order.
func ClassifyColumns(s *arrow.Schema) []ColumnGroup {
	return ClassifyColumnsWithRowNumber(s, "")
}

// ClassifyColumnsWithRowNumber classifies like ClassifyColumns but reports the
// field named rowNumberField as a RowNumberColumn.
func ClassifyColumnsWithRowNumber(s *arrow.Schema, rowNumberField string) []ColumnGroup {
	fields := s.Fields()
	groups := make([]ColumnGroup, 0, len(fields))

	for _, f := range fields {
		if rowNumberField != "" && f.Name == rowNumberField {
			groups = append(groups, RowNumberColumn{RowNumberFieldName: f.Name})
			continue
		}
		groups = append(groups, classifyField(f))
	}
	return groups
}

func classifyField(f arrow.Field) ColumnGroup {
	switch KindOf(f.Type) {
	case OrdinalColumnKind:
		return OrdinalColumn{
			InputFieldName: f.Name,
			InputFieldType: f.Type,
			Nullable:       f.Nullable,
		}
	case StringColumnKind:
		return StringColumn{
			InputFieldName: f.Name,
			InputFieldType: f.Type,
			Nullable:       f.Nullable,
		}
	case ListColumnKind:
		return ListColumn{
			InputFieldName: f.Name,
			InputFieldType: f.Type,
			Nullable:       f.Nullable,
		}
	default:
		return SkippedColumn{
			InputFieldName: f.Name,
			InputFieldType: f.Type,
			Nullable:       f.Nullable,
		}
	}
}

// KindOf returns the column kind for an arrow type. It never returns RowNumberColumnKind.
func KindOf(dt arrow.DataType) ColumnKind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DECIMAL128, arrow.DECIMAL256,
		arrow.BOOL,
		arrow.DATE32, arrow.DATE64,
		arrow.TIME32, arrow.TIME64,
		arrow.TIMESTAMP, arrow.DURATION:
		return OrdinalColumnKind
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return StringColumnKind
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return ListColumnKind
	default:
		return SkippedColumnKind
	}
}
