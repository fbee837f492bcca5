package domain

// Aggregation selects how the ratings of one item are reduced to a single value.
type Aggregation int

const (
	AggregateNone Aggregation = iota
	AggregateAverage
	AggregateCount
	AggregateMaximum
	AggregateMinimum
	AggregateSum
)

var aggregationNames = map[Aggregation]string{
	AggregateNone:    "none",
	AggregateAverage: "average",
	AggregateCount:   "count",
	AggregateMaximum: "maximum",
	AggregateMinimum: "minimum",
	AggregateSum:     "sum",
}

func (a Aggregation) String() string {
	if name, ok := aggregationNames[a]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether a is one of the defined aggregation methods.
func (a Aggregation) Valid() bool {
	_, ok := aggregationNames[a]
	return ok
}

// SQLFunc returns the SQL aggregate function for a. Unknown methods fall back
// to AVG rather than breaking the query; callers log the mismatch.
func (a Aggregation) SQLFunc() string {
	switch a {
	case AggregateAverage:
		return "AVG"
	case AggregateCount:
		return "COUNT"
	case AggregateMaximum:
		return "MAX"
	case AggregateMinimum:
		return "MIN"
	case AggregateSum:
		return "SUM"
	default:
		return "AVG"
	}
}

// ParseAggregation maps an aggregation name to its constant.
func ParseAggregation(name string) (Aggregation, bool) {
	for a, n := range aggregationNames {
		if n == name {
			return a, true
		}
	}
	return AggregateNone, false
}
