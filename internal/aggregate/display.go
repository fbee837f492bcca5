package aggregate

import (
	"math"
	"strconv"

	"github.com/openedu/ratings/internal/domain"
)

// DisplayValue renders an aggregate for end users. COUNT aggregation and
// unrated items produce an empty string: the row count is shown separately
// and a count rendered as a score would mislead. On a named scale the
// rounded aggregate indexes into the label list, except for SUM — adding
// label positions makes no sense, so SUM stays a raw number.
func DisplayValue(result domain.AggregateResult, settings domain.Settings) string {
	if result.Aggregate == nil || result.Count == 0 || settings.Aggregation == domain.AggregateCount {
		return ""
	}

	value := *result.Aggregate
	if !settings.Scale.IsNumeric && settings.Aggregation != domain.AggregateSum {
		if label, ok := settings.Scale.LabelFor(int(math.Round(value))); ok {
			return label
		}
	}
	return formatRounded(value)
}

// formatRounded rounds to one decimal and drops a trailing ".0".
func formatRounded(value float64) string {
	return strconv.FormatFloat(math.Round(value*10)/10, 'f', -1, 64)
}
