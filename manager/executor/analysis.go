package executor

import (
	"fmt"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/ankoh/dashql-sub001/schema"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

func percentages(counts []int64, total int64) []float64 {
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(total)
	}
	return out
}

func int64Values(col *array.Int64) []int64 {
	out := make([]int64, col.Len())
	for i := range out {
		if col.IsValid(i) {
			out[i] = col.Value(i)
		}
	}
	return out
}

// formatStat renders the single value of a summary field, null renders empty.
func formatStat(summary *state.TableSummary, name string, dt arrow.DataType) (string, error) {
	idx, ok := summary.TableFieldsByName[name]
	if !ok {
		return "", fmt.Errorf("summary field `%s` not found", name)
	}
	data, err := schema.ReadOrdinal(summary.Table.Column(idx))
	if err != nil {
		return "", err
	}
	if len(data.Values) == 0 || !data.Valid.Get(0) {
		return "", nil
	}
	return schema.FormatOrdinal(dt, data.Values[0]), nil
}

func analyzeOrdinalColumn(summary *state.TableSummary, c schema.OrdinalColumn, binned arrow.Record) (state.OrdinalColumnAnalysis, error) {
	var out state.OrdinalColumnAnalysis

	total := summary.CountStar()
	notNull, ok := summary.Int64Field(c.StatsFields.CountField)
	if !ok {
		return out, fmt.Errorf("summary field `%s` not found", c.StatsFields.CountField)
	}
	minValue, err := formatStat(summary, c.StatsFields.MinField, c.InputFieldType)
	if err != nil {
		return out, err
	}
	maxValue, err := formatStat(summary, c.StatsFields.MaxField, c.InputFieldType)
	if err != nil {
		return out, err
	}

	counts, err := column[*array.Int64](binned, CountField)
	if err != nil {
		return out, err
	}
	lower, err := column[*array.Float64](binned, BinLowerBoundField)
	if err != nil {
		return out, err
	}

	out = state.OrdinalColumnAnalysis{
		CountNotNull:   notNull,
		CountNull:      total - notNull,
		MinValue:       minValue,
		MaxValue:       maxValue,
		BinCount:       int(binned.NumRows()),
		BinValueCounts: int64Values(counts),
	}
	out.BinPercentages = percentages(out.BinValueCounts, total)
	out.BinLowerBounds = make([]string, lower.Len())
	for i := range out.BinLowerBounds {
		out.BinLowerBounds[i] = schema.FormatOrdinal(c.InputFieldType, lower.Value(i))
	}
	return out, nil
}

func analyzeFrequentValues(summary *state.TableSummary, stats *schema.FrequentValueStatsFields, table arrow.Record, withIDs bool) (state.FrequentValueAnalysis, error) {
	var out state.FrequentValueAnalysis

	total := summary.CountStar()
	notNull, ok := summary.Int64Field(stats.CountField)
	if !ok {
		return out, fmt.Errorf("summary field `%s` not found", stats.CountField)
	}
	distinct, ok := summary.Int64Field(stats.DistinctCountField)
	if !ok {
		return out, fmt.Errorf("summary field `%s` not found", stats.DistinctCountField)
	}

	keyIdx := table.Schema().FieldIndices(KeyField)
	if len(keyIdx) == 0 {
		return out, fmt.Errorf("field `%s` not found", KeyField)
	}
	counts, err := column[*array.Int64](table, CountField)
	if err != nil {
		return out, err
	}
	keys, valid := schema.ReadKeys(table.Column(keyIdx[0]))

	out = state.FrequentValueAnalysis{
		CountNotNull:        notNull,
		CountNull:           total - notNull,
		CountDistinct:       distinct,
		IsUnique:            notNull == distinct,
		FrequentValueCounts: int64Values(counts),
	}
	out.FrequentValuePercentages = percentages(out.FrequentValueCounts, total)
	out.FrequentValueStrings = make([]string, len(keys))
	out.FrequentValueIsNull = make([]bool, len(keys))
	for i, k := range keys {
		out.FrequentValueIsNull[i] = !valid.Get(i)
		if valid.Get(i) {
			out.FrequentValueStrings[i] = k
		}
	}

	if withIDs {
		ids, err := column[*array.Int64](table, KeyIDField)
		if err != nil {
			return out, err
		}
		out.FrequentValueIDs = int64Values(ids)
	}
	return out, nil
}

// alignBins maps a filtered histogram onto binCount bins.
func alignBins(rec arrow.Record, binCount int) ([]int64, error) {
	bins, err := column[*array.Int32](rec, BinField)
	if err != nil {
		return nil, err
	}
	counts, err := column[*array.Int64](rec, CountField)
	if err != nil {
		return nil, err
	}
	out := make([]int64, binCount)
	for i := 0; i < bins.Len(); i++ {
		bin := int(bins.Value(i))
		if bin >= 0 && bin < binCount && counts.IsValid(i) {
			out[bin] = counts.Value(i)
		}
	}
	return out, nil
}

// alignFrequentValues maps filtered counts onto the unfiltered frequent values.
func alignFrequentValues(rec arrow.Record, analysis state.FrequentValueAnalysis) ([]int64, error) {
	keyIdx := rec.Schema().FieldIndices(KeyField)
	if len(keyIdx) == 0 {
		return nil, fmt.Errorf("field `%s` not found", KeyField)
	}
	counts, err := column[*array.Int64](rec, CountField)
	if err != nil {
		return nil, err
	}
	keys, valid := schema.ReadKeys(rec.Column(keyIdx[0]))

	byKey := make(map[string]int64, len(keys))
	var nullCount int64
	for i, k := range keys {
		if !valid.Get(i) {
			nullCount = counts.Value(i)
			continue
		}
		byKey[k] = counts.Value(i)
	}

	out := make([]int64, len(analysis.FrequentValueCounts))
	for i := range out {
		if analysis.FrequentValueIsNull[i] {
			out[i] = nullCount
		} else {
			out[i] = byKey[analysis.FrequentValueStrings[i]]
		}
	}
	return out, nil
}
