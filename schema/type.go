package schema

import "fmt"

type ColumnKind uint8

const (
	RowNumberColumnKind ColumnKind = iota
	OrdinalColumnKind
	StringColumnKind
	ListColumnKind
	SkippedColumnKind
)

func (k ColumnKind) String() string {
	switch k {
	case RowNumberColumnKind:
		return "RowNumber"
	case OrdinalColumnKind:
		return "Ordinal"
	case StringColumnKind:
		return "String"
	case ListColumnKind:
		return "List"
	case SkippedColumnKind:
		return "Skipped"
	default:
		panic(fmt.Sprintf("unknown column kind %d", uint8(k)))
	}
}
