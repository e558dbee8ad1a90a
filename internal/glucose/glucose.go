// Package glucose defines the normalized blood-glucose reading model.
package glucose

import (
	"fmt"
	"strings"
	"time"
)

// MealRelation describes when a reading was taken relative to a meal.
type MealRelation string

const (
	MealUnknown MealRelation = "unknown"
	MealBefore  MealRelation = "before_meal"
	MealAfter   MealRelation = "after_meal"
	MealFasting MealRelation = "fasting"
	MealGeneral MealRelation = "general"
)

// RangeStatus represents the glucose range classification.
type RangeStatus string

const (
	RangeUrgentLow RangeStatus = "urgentLow"
	RangeLow       RangeStatus = "low"
	RangeNormal    RangeStatus = "normal"
	RangeHigh      RangeStatus = "high"
	RangeVeryHigh  RangeStatus = "veryHigh"
)

// Glucose thresholds in mg/dL.
const (
	ThresholdUrgentLow = 55
	ThresholdLow       = 70
	ThresholdHigh      = 180
	ThresholdVeryHigh  = 250
)

// Reading is a single normalized glucose measurement. Timestamps are
// absolute zoned instants, never relative offsets. Readings are value
// types and safe to share between goroutines.
type Reading struct {
	Value     float64 // mg/dL, always > 0 for valid readings
	Timestamp time.Time
	Meal      MealRelation
}

// Validate reports whether the reading can be turned into a store record.
func (r Reading) Validate() error {
	if r.Value <= 0 {
		return fmt.Errorf("glucose value must be positive, got %.1f", r.Value)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading has no timestamp")
	}
	return nil
}

// ClassifyRange determines the range status for a glucose value in mg/dL.
func ClassifyRange(mgdl float64) RangeStatus {
	if mgdl < ThresholdUrgentLow {
		return RangeUrgentLow
	}
	if mgdl < ThresholdLow {
		return RangeLow
	}
	if mgdl <= ThresholdHigh {
		return RangeNormal
	}
	if mgdl <= ThresholdVeryHigh {
		return RangeHigh
	}
	return RangeVeryHigh
}

// MgdlToMmol converts mg/dL to mmol/L, rounded to one decimal.
func MgdlToMmol(mgdl float64) float64 {
	return float64(int(mgdl/18.0182*10+0.5)) / 10.0
}

// ParseMealMarker maps vendor meal-marker strings onto MealRelation.
// Unrecognized markers map to MealUnknown.
func ParseMealMarker(s string) MealRelation {
	switch normalizeMarker(s) {
	case "before meal", "before", "pre meal", "premeal", "ac":
		return MealBefore
	case "after meal", "after", "post meal", "postmeal", "pc":
		return MealAfter
	case "fasting":
		return MealFasting
	case "general", "none", "no mark":
		return MealGeneral
	}
	return MealUnknown
}

func normalizeMarker(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.ReplaceAll(s, "_", " ")
}
