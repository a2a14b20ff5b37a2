package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ankoh/dashql-sub001/manager/state"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	header  = color.New(color.FgCyan, color.Bold)
	dim     = color.New(color.Faint)
	bar     = color.New(color.FgGreen)
	barHits = color.New(color.FgYellow)
)

const barWidth = 30

func printSummary(out io.Writer, path string, t *state.TableComputationState) {
	rows := int64(0)
	if t.TableSummary != nil {
		rows = t.TableSummary.CountStar()
	}
	header.Fprintf(out, "%s\n", path)
	dim.Fprintf(out, "%s rows, %d columns, epoch %d\n", humanize.Comma(rows), len(t.ColumnGroups)-1, t.Epoch)
	if t.FilterTable != nil {
		dim.Fprintf(out, "%s rows pass the filter\n", humanize.Comma(t.FilterTable.DataTable.NumRows()))
	}
	if len(t.OrderingConstraints) > 0 {
		order := make([]string, 0, len(t.OrderingConstraints))
		for _, c := range t.OrderingConstraints {
			dir := "asc"
			if !c.Ascending {
				dir = "desc"
			}
			order = append(order, c.FieldName+":"+dir)
		}
		dim.Fprintf(out, "ordered by %s\n", strings.Join(order, ", "))
	}

	ids := make([]int, 0, len(t.ColumnAggregates))
	for id := range t.ColumnAggregates {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		fmt.Fprintln(out)
		switch agg := t.ColumnAggregates[id].(type) {
		case state.OrdinalColumnAggregation:
			printOrdinal(out, agg)
		case state.StringColumnAggregation:
			printFrequent(out, agg.Column.InputFieldName, "string", agg.Analysis, agg.Filtered)
		case state.ListColumnAggregation:
			printFrequent(out, agg.Column.InputFieldName, "list", agg.Analysis, agg.Filtered)
		}
	}
}

func printOrdinal(out io.Writer, agg state.OrdinalColumnAggregation) {
	a := agg.Analysis
	header.Fprintf(out, "%s", agg.Column.InputFieldName)
	dim.Fprintf(out, " ordinal, %s values, %s nulls, range [%s, %s]\n",
		humanize.Comma(a.CountNotNull), humanize.Comma(a.CountNull), a.MinValue, a.MaxValue)

	width := 0
	for _, lb := range a.BinLowerBounds {
		width = max(width, len(lb))
	}
	for i, n := range a.BinValueCounts {
		fmt.Fprintf(out, "  %*s ", width, a.BinLowerBounds[i])
		printBar(out, a.BinPercentages[i], filteredShare(agg.Filtered, i))
		fmt.Fprintf(out, " %s\n", humanize.Comma(n))
	}
}

func printFrequent(out io.Writer, name, kind string, a state.FrequentValueAnalysis, filtered *state.FilteredColumnAnalysis) {
	header.Fprintf(out, "%s", name)
	dim.Fprintf(out, " %s, %s values, %s nulls, %s distinct", kind,
		humanize.Comma(a.CountNotNull), humanize.Comma(a.CountNull), humanize.Comma(a.CountDistinct))
	if a.IsUnique {
		dim.Fprintf(out, ", unique")
	}
	fmt.Fprintln(out)

	width := 0
	labels := make([]string, len(a.FrequentValueStrings))
	for i, s := range a.FrequentValueStrings {
		if a.FrequentValueIsNull[i] {
			s = "NULL"
		}
		labels[i] = s
		width = max(width, len(s))
	}
	for i, n := range a.FrequentValueCounts {
		fmt.Fprintf(out, "  %*s ", width, labels[i])
		printBar(out, a.FrequentValuePercentages[i], filteredShare(filtered, i))
		fmt.Fprintf(out, " %s\n", humanize.Comma(n))
	}
}

func filteredShare(f *state.FilteredColumnAnalysis, i int) float64 {
	if f == nil || i >= len(f.Percentages) {
		return -1
	}
	return f.Percentages[i]
}

// printBar draws the unfiltered share and, when present, the filtered share
// on top of it.
func printBar(out io.Writer, share, filtered float64) {
	total := int(share*barWidth + 0.5)
	hits := 0
	if filtered >= 0 {
		hits = min(int(filtered*barWidth+0.5), total)
	}
	barHits.Fprint(out, strings.Repeat("█", hits))
	bar.Fprint(out, strings.Repeat("█", total-hits))
	fmt.Fprint(out, strings.Repeat(" ", barWidth-total))
}
