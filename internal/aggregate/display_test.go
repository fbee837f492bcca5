package aggregate

import (
	"testing"

	"github.com/openedu/ratings/internal/domain"
)

func resultWith(value float64, count int64) domain.AggregateResult {
	return domain.AggregateResult{ItemID: 11, Aggregate: &value, Count: count}
}

func TestDisplayValue(t *testing.T) {
	numeric := domain.Settings{Scale: domain.NumericScale(5), Aggregation: domain.AggregateAverage}
	named := domain.Settings{
		Scale:       domain.NamedScale(-7, "Quality", []string{"Poor", "OK", "Great"}),
		Aggregation: domain.AggregateAverage,
	}

	tests := []struct {
		name     string
		result   domain.AggregateResult
		settings domain.Settings
		want     string
	}{
		{"numeric average", resultWith(10.0/3.0, 3), numeric, "3.3"},
		{"numeric whole number", resultWith(4, 2), numeric, "4"},
		{"unrated item", domain.AggregateResult{ItemID: 11}, numeric, ""},
		{"named scale maps to label", resultWith(2.4, 3), named, "OK"},
		{"named scale rounds up", resultWith(2.5, 3), named, "Great"},
		{"named scale off range falls back to number", resultWith(0, 1), named, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayValue(tt.result, tt.settings); got != tt.want {
				t.Fatalf("DisplayValue = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayValueCountIsNeverAScore(t *testing.T) {
	settings := domain.Settings{Scale: domain.NumericScale(5), Aggregation: domain.AggregateCount}
	if got := DisplayValue(resultWith(3, 3), settings); got != "" {
		t.Fatalf("DisplayValue = %q, want empty for count aggregation", got)
	}
}

func TestDisplayValueSumIsNeverALabel(t *testing.T) {
	settings := domain.Settings{
		Scale:       domain.NamedScale(-7, "Quality", []string{"Poor", "OK", "Great"}),
		Aggregation: domain.AggregateSum,
	}
	if got := DisplayValue(resultWith(2, 2), settings); got != "2" {
		t.Fatalf("DisplayValue = %q, want the raw sum", got)
	}
}
