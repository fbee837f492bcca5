package domain

import "strconv"

// ScaleLevel is one selectable value on a scale.
type ScaleLevel struct {
	Value int
	Label string
}

// Scale is the ordered value range a rating is drawn from. Numeric scales
// (ID >= 0) run 0..Max with the value as its own label. Named scales
// (ID < 0) carry an ordered label list where value 1 is the lowest label.
//
// Levels are ordered highest value first so the best level displays first.
type Scale struct {
	ID        int
	Name      string
	IsNumeric bool
	Max       int
	Levels    []ScaleLevel
}

// NumericScale builds the scale for a non-negative scale identifier.
func NumericScale(max int) Scale {
	levels := make([]ScaleLevel, 0, max+1)
	for i := max; i >= 0; i-- {
		levels = append(levels, ScaleLevel{Value: i, Label: strconv.Itoa(i)})
	}
	return Scale{ID: max, IsNumeric: true, Max: max, Levels: levels}
}

// NamedScale builds a scale from an ordered label list; labels[0] is the
// lowest level and is assigned value 1.
func NamedScale(id int, name string, labels []string) Scale {
	levels := make([]ScaleLevel, 0, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		levels = append(levels, ScaleLevel{Value: i + 1, Label: labels[i]})
	}
	return Scale{ID: id, Name: name, Max: len(labels), Levels: levels}
}

// LabelFor returns the label for a level value, or false when the value is
// off the scale.
func (s Scale) LabelFor(value int) (string, bool) {
	for _, level := range s.Levels {
		if level.Value == value {
			return level.Label, true
		}
	}
	return "", false
}

// Clamp bounds v to the scale's current maximum. Stored ratings can exceed
// Max when the scale was redefined smaller after they were issued; output
// must never surface the stale out-of-range value.
func (s Scale) Clamp(v float64) float64 {
	if max := float64(s.Max); v > max {
		return max
	}
	return v
}

// ClampInt is Clamp for integer rating values.
func (s Scale) ClampInt(v int) int {
	if v > s.Max {
		return s.Max
	}
	return v
}
