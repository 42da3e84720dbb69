package registry

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/findosh/shiller/internal/models"
)

// MaxTraineeNameLength is the longest trainee name kept, in characters
const MaxTraineeNameLength = 80

// SanitizeName trims the name and caps its length; empty names become nil
func SanitizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if utf8.RuneCountInString(trimmed) > MaxTraineeNameLength {
		trimmed = string([]rune(trimmed)[:MaxTraineeNameLength])
	}
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ValidateVitals requires all four vitals as whole numbers
func ValidateVitals(in models.VitalsInput) (models.Vitals, error) {
	var v models.Vitals
	fields := []struct {
		name  string
		value *float64
		dst   *int
	}{
		{"systolic", in.Systolic, &v.Systolic},
		{"diastolic", in.Diastolic, &v.Diastolic},
		{"heartRate", in.HeartRate, &v.HeartRate},
		{"spo2", in.SpO2, &v.SpO2},
	}

	for _, f := range fields {
		if f.value == nil {
			return models.Vitals{}, fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
		n := *f.value
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return models.Vitals{}, fmt.Errorf("%w: %s must be a whole number", ErrValidation, f.name)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return models.Vitals{}, fmt.Errorf("%w: %s is out of bounds", ErrValidation, f.name)
		}
		*f.dst = int(n)
	}

	return v, nil
}

// ValidateCode checks that code is a 6-digit join code
func ValidateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: session code is required", ErrValidation)
	}
	if len(code) != models.CodeLength {
		return "", fmt.Errorf("%w: session code must have %d digits", ErrValidation, models.CodeLength)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: session code must have %d digits", ErrValidation, models.CodeLength)
		}
	}
	return code, nil
}
