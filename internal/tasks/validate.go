package tasks

import (
	"strings"
)

// ValidateCoordinates checks a (time_cost_x, interest_y) pair against [0,100].
// Bounds are inclusive; NaN is rejected.
func ValidateCoordinates(x, y float64) (float64, float64, error) {
	if err := checkRange("time_cost_x", x, MinCoordinate, MaxCoordinate); err != nil {
		return 0, 0, err
	}
	if err := checkRange("interest_y", y, MinCoordinate, MaxCoordinate); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func ValidateDifficulty(d int) error {
	return checkRange("difficulty", float64(d), MinDifficulty, MaxDifficulty)
}

// ValidateTitle trims the title and rejects an empty one.
func ValidateTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return t, nil
}

func checkRange(field string, v, lo, hi float64) error {
	if !(v >= lo && v <= hi) {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}
