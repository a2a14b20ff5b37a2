package schema

import (
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dustin/go-humanize"
)

// FormatOrdinal renders a widened ordinal value in the domain of dt.
func FormatOrdinal(dt arrow.DataType, v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}

	switch t := dt.(type) {
	case *arrow.TimestampType:
		return arrow.Timestamp(int64(v)).ToTime(t.Unit).UTC().Format(time.RFC3339)
	case *arrow.Date32Type:
		return arrow.Date32(int32(v)).ToTime().UTC().Format(time.DateOnly)
	case *arrow.Date64Type:
		return arrow.Date64(int64(v)).ToTime().UTC().Format(time.DateOnly)
	case *arrow.Time32Type:
		return arrow.Time32(int32(v)).ToTime(t.Unit).UTC().Format(time.TimeOnly)
	case *arrow.Time64Type:
		return arrow.Time64(int64(v)).ToTime(t.Unit).UTC().Format(time.TimeOnly)
	case *arrow.DurationType:
		return (time.Duration(int64(v)) * t.Unit.Multiplier()).String()
	case *arrow.BooleanType:
		return strconv.FormatBool(v != 0)
	}

	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return humanize.Comma(int64(math.Floor(v)))
	default:
		return humanize.CommafWithDigits(v, 2)
	}
}
