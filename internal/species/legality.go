package species

import (
	"fmt"
	"math"
	"strings"
)

// Verdict is the outcome of comparing a measured length to a species limit.
// DeltaCM is signed: positive means over the limit.
type Verdict struct {
	Species         string  `json:"species"`
	LengthCM        float64 `json:"length_cm"`
	Legal           bool    `json:"legal"`
	MinimumCM       float64 `json:"minimum_cm"`
	DeltaCM         float64 `json:"delta_cm"`
	MeasurementNote string  `json:"measurement_note,omitempty"`
}

// UnknownSpeciesError lists the species the table does know about.
type UnknownSpeciesError struct {
	Species string
	Known   []string
}

func (e *UnknownSpeciesError) Error() string {
	return fmt.Sprintf("unknown species %q (known: %s)", e.Species, strings.Join(e.Known, ", "))
}

// InvalidLengthError reports a non-positive or non-finite length.
type InvalidLengthError struct {
	LengthCM float64
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("length must be a positive number of centimetres, got %v", e.LengthCM)
}

// Check reports whether a fish of lengthCM may be kept.
func (t *Table) Check(name string, lengthCM float64) (Verdict, error) {
	entry, ok := t.Lookup(name)
	if !ok {
		return Verdict{}, &UnknownSpeciesError{Species: Normalize(name), Known: t.Known()}
	}
	if lengthCM <= 0 || math.IsNaN(lengthCM) || math.IsInf(lengthCM, 0) {
		return Verdict{}, &InvalidLengthError{LengthCM: lengthCM}
	}
	return Verdict{
		Species:         entry.Key,
		LengthCM:        lengthCM,
		Legal:           lengthCM >= entry.MinimumCM,
		MinimumCM:       entry.MinimumCM,
		DeltaCM:         lengthCM - entry.MinimumCM,
		MeasurementNote: entry.MeasurementNote,
	}, nil
}

// Summary renders the verdict as a sentence without any generation step.
func (v Verdict) Summary() string {
	measured := ""
	if v.MeasurementNote != "" {
		measured = " (" + v.MeasurementNote + ")"
	}
	if v.Legal {
		return fmt.Sprintf("Your %s cm %s%s is legal to keep. The minimum size is %s cm, so it is over the limit by %.1f cm.",
			trimFloat(v.LengthCM), v.Species, measured, trimFloat(v.MinimumCM), v.DeltaCM)
	}
	return fmt.Sprintf("Your %s cm %s%s is under the legal size and must be released. The minimum size is %s cm, so it is short by %.1f cm.",
		trimFloat(v.LengthCM), v.Species, measured, trimFloat(v.MinimumCM), -v.DeltaCM)
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", f), ".0")
}
