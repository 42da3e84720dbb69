package models

import (
	"github.com/shopspring/decimal"
)

// Vitals is the snapshot of simulated vital signs shown on a display
type Vitals struct {
	Systolic  int   `json:"systolic"`
	Diastolic int   `json:"diastolic"`
	HeartRate int   `json:"heartRate"`
	SpO2      int   `json:"spo2"`
	SensorsOn *bool `json:"sensorsOn,omitempty"`
}

// DefaultVitals returns the values a new session starts with
func DefaultVitals() Vitals {
	return Vitals{
		Systolic:  120,
		Diastolic: 80,
		HeartRate: 70,
		SpO2:      98,
	}
}

// OutOfRange flags each vital that falls outside its plausible range
type OutOfRange struct {
	Systolic  bool `json:"systolic"`
	Diastolic bool `json:"diastolic"`
	HeartRate bool `json:"heartRate"`
	SpO2      bool `json:"spo2"`
}

// Any reports whether at least one vital is flagged
func (o OutOfRange) Any() bool {
	return o.Systolic || o.Diastolic || o.HeartRate || o.SpO2
}

// Range bounds; a value is flagged when strictly below Min or strictly above Max
type Range struct {
	Min int
	Max int
}

// Contains reports whether v lies within the range, bounds inclusive
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

var (
	SystolicRange  = Range{Min: 40, Max: 260}
	DiastolicRange = Range{Min: 20, Max: 180}
	HeartRateRange = Range{Min: 20, Max: 220}
	SpO2Range      = Range{Min: 40, Max: 100}
)

// Evaluate computes the out-of-range flags for a vitals snapshot
func Evaluate(v Vitals) OutOfRange {
	return OutOfRange{
		Systolic:  !SystolicRange.Contains(v.Systolic),
		Diastolic: !DiastolicRange.Contains(v.Diastolic),
		HeartRate: !HeartRateRange.Contains(v.HeartRate),
		SpO2:      !SpO2Range.Contains(v.SpO2),
	}
}

// MeanArterialPressure returns round((2*diastolic + systolic) / 3).
// Display only; it is never stored.
func MeanArterialPressure(systolic, diastolic int) int {
	sum := decimal.NewFromInt(int64(2*diastolic + systolic))
	return int(sum.Div(decimal.NewFromInt(3)).Round(0).IntPart())
}

// VitalsInput carries raw numeric vitals as decoded from a request body.
// A nil field means the value was missing.
type VitalsInput struct {
	Systolic  *float64 `json:"systolic"`
	Diastolic *float64 `json:"diastolic"`
	HeartRate *float64 `json:"heartRate"`
	SpO2      *float64 `json:"spo2"`
}
