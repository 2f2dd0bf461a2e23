// Package builtin contains the structured tools the assistant can call.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasfish/internal/species"
	"tasfish/internal/tools"
)

// LegalSizeToolName is the registry name of the size checker.
const LegalSizeToolName = "check_legal_size"

const sizeParamsHelp = "I had trouble using the size check tool. Please ensure you provide the fish species and length in centimeters."

// LegalSize checks a catch against the minimum size table.
type LegalSize struct {
	table *species.Table
}

// NewLegalSize wraps a species table as a tool.
func NewLegalSize(table *species.Table) *LegalSize {
	return &LegalSize{table: table}
}

func (t *LegalSize) Definition() tools.Definition {
	return tools.Definition{
		Name:        LegalSizeToolName,
		Description: "Check if a caught fish meets the legal minimum size requirements in Tasmania. Returns whether the fish is legal to keep or must be released.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"species": {
					Type:        "string",
					Description: fmt.Sprintf("The fish species name (e.g., '%s')", strings.Join(t.table.Known(), "', '")),
					Enum:        t.table.Known(),
				},
				"length_cm": {
					Type:        "number",
					Description: "The length of the caught fish in centimeters",
					Minimum:     tools.Float(0),
				},
			},
			Required: []string{"species", "length_cm"},
		},
	}
}

// Execute returns a species.Verdict on success.
func (t *LegalSize) Execute(_ context.Context, params map[string]any) (any, error) {
	name, ok := tools.StringParam(params, "species")
	if !ok {
		return nil, tools.NewError(tools.CodeInvalidParams, sizeParamsHelp)
	}
	length, ok := tools.LengthCMParam(params, "length_cm")
	if !ok {
		return nil, tools.NewError(tools.CodeInvalidParams, sizeParamsHelp)
	}

	verdict, err := t.table.Check(name, length)
	if err == nil {
		return verdict, nil
	}
	var unknown *species.UnknownSpeciesError
	if errors.As(err, &unknown) {
		return nil, tools.NewError("unknown_species",
			fmt.Sprintf("I don't have a size limit for %q. Known species: %s.", unknown.Species, strings.Join(unknown.Known, ", ")))
	}
	var invalid *species.InvalidLengthError
	if errors.As(err, &invalid) {
		return nil, tools.NewError("invalid_length", "Length must be a positive number of centimeters.")
	}
	return nil, err
}
