package glucose

import (
	"testing"
	"time"
)

func TestClassifyRange(t *testing.T) {
	tests := []struct {
		mgdl     float64
		expected RangeStatus
	}{
		{40, RangeUrgentLow},
		{54, RangeUrgentLow},
		{55, RangeLow},
		{69, RangeLow},
		{70, RangeNormal},
		{100, RangeNormal},
		{180, RangeNormal},
		{181, RangeHigh},
		{250, RangeHigh},
		{251, RangeVeryHigh},
		{400, RangeVeryHigh},
	}

	for _, tt := range tests {
		result := ClassifyRange(tt.mgdl)
		if result != tt.expected {
			t.Errorf("ClassifyRange(%v) = %s, want %s", tt.mgdl, result, tt.expected)
		}
	}
}

func TestParseMealMarker(t *testing.T) {
	tests := []struct {
		marker   string
		expected MealRelation
	}{
		{"Before Meal", MealBefore},
		{"before", MealBefore},
		{"AC", MealBefore},
		{"After Meal", MealAfter},
		{"post-meal", MealAfter},
		{"Fasting", MealFasting},
		{"FASTING", MealFasting},
		{"General", MealGeneral},
		{"No Mark", MealGeneral},
		{"", MealUnknown},
		{"104", MealUnknown},
		{"whatever", MealUnknown},
	}

	for _, tt := range tests {
		result := ParseMealMarker(tt.marker)
		if result != tt.expected {
			t.Errorf("ParseMealMarker(%q) = %s, want %s", tt.marker, result, tt.expected)
		}
	}
}

func TestReadingValidate(t *testing.T) {
	now := time.Now()

	valid := Reading{Value: 104, Timestamp: now, Meal: MealUnknown}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid reading rejected: %v", err)
	}

	tests := []struct {
		name    string
		reading Reading
	}{
		{"zero value", Reading{Value: 0, Timestamp: now}},
		{"negative value", Reading{Value: -5, Timestamp: now}},
		{"missing timestamp", Reading{Value: 104}},
	}

	for _, tt := range tests {
		if err := tt.reading.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", tt.name)
		}
	}
}

func TestMgdlToMmol(t *testing.T) {
	tests := []struct {
		mgdl     float64
		expected float64
	}{
		{18, 1.0},
		{100, 5.5},
		{180, 10.0},
	}

	for _, tt := range tests {
		result := MgdlToMmol(tt.mgdl)
		if result != tt.expected {
			t.Errorf("MgdlToMmol(%v) = %v, want %v", tt.mgdl, result, tt.expected)
		}
	}
}
