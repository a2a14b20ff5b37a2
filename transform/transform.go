package transform

// CurrentVersion is the descriptor version understood by the worker.
const CurrentVersion uint32 = 1

type (
	// DataFrameTransform describes one derivation of a data frame. Stages run in
	// field order: row number, value identifiers, binning, filters, group by,
	// order by, projection.
	DataFrameTransform struct {
		Version uint32 `json:"version" validate:"required"`

		RowNumber        *RowNumberTransform        `json:"rowNumber,omitempty"`
		ValueIdentifiers []ValueIdentifierTransform `json:"valueIdentifiers,omitempty" validate:"dive"`
		Binning          []BinningTransform         `json:"binning,omitempty" validate:"dive"`
		Filters          []FilterTransform          `json:"filters,omitempty" validate:"dive"`
		GroupBy          *GroupByTransform          `json:"groupBy,omitempty"`
		OrderBy          *OrderByTransform          `json:"orderBy,omitempty"`
		Projection       *ProjectionTransform       `json:"projection,omitempty"`
	}

	RowNumberTransform struct {
		OutputAlias string `json:"outputAlias" validate:"required"`
	}

	ValueIdentifierTransform struct {
		FieldName   string `json:"fieldName" validate:"required"`
		OutputAlias string `json:"outputAlias" validate:"required"`
	}

	BinningTransform struct {
		FieldName             string `json:"fieldName" validate:"required"`
		StatsTableID          int    `json:"statsTableId" validate:"min=0"`
		StatsMinimumFieldName string `json:"statsMinimumFieldName" validate:"required"`
		StatsMaximumFieldName string `json:"statsMaximumFieldName" validate:"required"`
		BinCount              int    `json:"binCount" validate:"min=1"`
		OutputAlias           string `json:"outputAlias" validate:"required"`
	}

	FilterTransform struct {
		FieldName string         `json:"fieldName" validate:"required"`
		Operator  FilterOperator `json:"operator"`

		LiteralDouble *float64        `json:"literalDouble,omitempty"`
		LiteralU64    *uint64         `json:"literalU64,omitempty"`
		LiteralString *string         `json:"literalString,omitempty"`
		SemiJoin      *SemiJoinFilter `json:"semiJoin,omitempty"`
	}

	// SemiJoinFilter keeps rows whose value appears in a field of an auxiliary table.
	SemiJoinFilter struct {
		TableID   int    `json:"tableId" validate:"min=0"`
		FieldName string `json:"fieldName" validate:"required"`
	}

	GroupByTransform struct {
		Keys       []GroupByKey     `json:"keys,omitempty" validate:"dive"`
		Aggregates []AggregateField `json:"aggregates,omitempty" validate:"dive"`
	}

	GroupByKey struct {
		FieldName   string             `json:"fieldName" validate:"required"`
		OutputAlias string             `json:"outputAlias" validate:"required"`
		Binning     *GroupByKeyBinning `json:"binning,omitempty"`
	}

	GroupByKeyBinning struct {
		StatsTableID          int    `json:"statsTableId" validate:"min=0"`
		StatsMinimumFieldName string `json:"statsMinimumFieldName" validate:"required"`
		StatsMaximumFieldName string `json:"statsMaximumFieldName" validate:"required"`
		BinCount              int    `json:"binCount" validate:"min=1"`

		// values of this Float64 field are used as fractional bins when set
		PreBinnedFieldName string `json:"preBinnedFieldName,omitempty"`

		OutputBinWidthAlias string `json:"outputBinWidthAlias,omitempty"`
		OutputBinLbAlias    string `json:"outputBinLbAlias,omitempty"`
		OutputBinUbAlias    string `json:"outputBinUbAlias,omitempty"`
	}

	AggregateField struct {
		// empty for CountStar
		FieldName   string              `json:"fieldName,omitempty"`
		OutputAlias string              `json:"outputAlias" validate:"required"`
		Function    AggregationFunction `json:"function"`
		Distinct    bool                `json:"distinct,omitempty"`
	}

	OrderByTransform struct {
		Constraints []OrderByConstraint `json:"constraints" validate:"dive"`
		Limit       *uint32             `json:"limit,omitempty"`
	}

	OrderByConstraint struct {
		FieldName  string `json:"fieldName" validate:"required"`
		Ascending  bool   `json:"ascending"`
		NullsFirst bool   `json:"nullsFirst"`
	}

	ProjectionTransform struct {
		Fields []string `json:"fields" validate:"dive,required"`
	}
)

// New returns an empty descriptor of the current version.
func New() *DataFrameTransform {
	return &DataFrameTransform{Version: CurrentVersion}
}

func (t *DataFrameTransform) WithRowNumber(alias string) *DataFrameTransform {
	t.RowNumber = &RowNumberTransform{OutputAlias: alias}
	return t
}

func (t *DataFrameTransform) WithFilters(filters ...FilterTransform) *DataFrameTransform {
	t.Filters = append(t.Filters, filters...)
	return t
}

func (t *DataFrameTransform) WithProjection(fields ...string) *DataFrameTransform {
	t.Projection = &ProjectionTransform{Fields: fields}
	return t
}

func (t *DataFrameTransform) WithOrderBy(constraints ...OrderByConstraint) *DataFrameTransform {
	t.OrderBy = &OrderByTransform{Constraints: constraints}
	return t
}

func (t *DataFrameTransform) WithLimit(limit uint32) *DataFrameTransform {
	if t.OrderBy == nil {
		t.OrderBy = &OrderByTransform{}
	}
	t.OrderBy.Limit = &limit
	return t
}

func Compare(field string, op FilterOperator, value float64) FilterTransform {
	return FilterTransform{
		FieldName:     field,
		Operator:      op,
		LiteralDouble: &value,
	}
}

func CompareU64(field string, op FilterOperator, value uint64) FilterTransform {
	return FilterTransform{
		FieldName:  field,
		Operator:   op,
		LiteralU64: &value,
	}
}

func EqualString(field string, value string) FilterTransform {
	return FilterTransform{
		FieldName:     field,
		Operator:      Equal,
		LiteralString: &value,
	}
}

func SemiJoin(field string, tableID int, tableField string) FilterTransform {
	return FilterTransform{
		FieldName: field,
		Operator:  SemiJoinField,
		SemiJoin:  &SemiJoinFilter{TableID: tableID, FieldName: tableField},
	}
}

// LiteralFloat returns the numeric literal of a comparison filter.
func (f FilterTransform) LiteralFloat() (float64, bool) {
	switch {
	case f.LiteralDouble != nil:
		return *f.LiteralDouble, true
	case f.LiteralU64 != nil:
		return float64(*f.LiteralU64), true
	default:
		return 0, false
	}
}
