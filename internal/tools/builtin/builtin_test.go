package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/forecast"
	"tasfish/internal/logging"
	"tasfish/internal/species"
	"tasfish/internal/tools"
)

func newLegalSize(t *testing.T) *LegalSize {
	t.Helper()
	table, err := species.Load("", nil)
	require.NoError(t, err)
	return NewLegalSize(table)
}

func requireToolError(t *testing.T, err error, code string) *tools.Error {
	t.Helper()
	var toolErr *tools.Error
	require.True(t, errors.As(err, &toolErr), "expected tools.Error, got %v", err)
	assert.Equal(t, code, toolErr.Code)
	return toolErr
}

func TestLegalSizeDefinitionListsSpecies(t *testing.T) {
	def := newLegalSize(t).Definition()
	assert.Equal(t, LegalSizeToolName, def.Name)
	assert.Contains(t, def.Parameters.Properties["species"].Enum, "brown trout")
	assert.ElementsMatch(t, []string{"species", "length_cm"}, def.Parameters.Required)
}

func TestLegalSizeExecute(t *testing.T) {
	tool := newLegalSize(t)

	out, err := tool.Execute(context.Background(), map[string]any{"species": "Brown Trout", "length_cm": 26.0})
	require.NoError(t, err)
	verdict, ok := out.(species.Verdict)
	require.True(t, ok)
	assert.True(t, verdict.Legal)
	assert.InDelta(t, 1.0, verdict.DeltaCM, 1e-9)

	out, err = tool.Execute(context.Background(), map[string]any{"species": "brown trout", "length_cm": "24 cm"})
	require.NoError(t, err)
	assert.False(t, out.(species.Verdict).Legal)

	out, err = tool.Execute(context.Background(), map[string]any{"species": "flathead", "length_cm": "260mm"})
	require.NoError(t, err)
	verdict = out.(species.Verdict)
	assert.InDelta(t, 26.0, verdict.LengthCM, 1e-9)
	assert.False(t, verdict.Legal)
	assert.InDelta(t, -6.0, verdict.DeltaCM, 1e-9)

	_, err = tool.Execute(context.Background(), map[string]any{"species": "flathead", "length_cm": "10 inches"})
	requireToolError(t, err, tools.CodeInvalidParams)
}

func TestLegalSizeErrors(t *testing.T) {
	tool := newLegalSize(t)
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{})
	requireToolError(t, err, tools.CodeInvalidParams)

	_, err = tool.Execute(ctx, map[string]any{"species": "brown trout"})
	requireToolError(t, err, tools.CodeInvalidParams)

	_, err = tool.Execute(ctx, map[string]any{"species": "barramundi", "length_cm": 60})
	toolErr := requireToolError(t, err, "unknown_species")
	assert.Contains(t, toolErr.Detail, "brown trout")

	_, err = tool.Execute(ctx, map[string]any{"species": "brown trout", "length_cm": -2})
	requireToolError(t, err, "invalid_length")
}

type stubProvider struct {
	report   forecast.Report
	err      error
	location string
	days     int
}

func (s *stubProvider) Forecast(_ context.Context, location string, days int) (forecast.Report, error) {
	s.location, s.days = location, days
	return s.report, s.err
}

func TestFishingWeatherConfigErrors(t *testing.T) {
	ctx := context.Background()
	params := map[string]any{"location": "Hobart"}

	_, err := NewFishingWeather(FishingWeatherConfig{Enabled: false}, &stubProvider{}, nil).Execute(ctx, params)
	requireToolError(t, err, "weather_disabled")

	_, err = NewFishingWeather(FishingWeatherConfig{Enabled: true}, &stubProvider{}, nil).Execute(ctx, params)
	requireToolError(t, err, "no_api_key")

	_, err = NewFishingWeather(FishingWeatherConfig{Enabled: true, APIKey: "k", Provider: "bom"}, &stubProvider{}, nil).Execute(ctx, params)
	requireToolError(t, err, "weather_provider_error")

	_, err = NewFishingWeather(FishingWeatherConfig{Enabled: true, APIKey: "k"}, &stubProvider{}, nil).Execute(ctx, map[string]any{})
	requireToolError(t, err, tools.CodeInvalidParams)
}

func TestFishingWeatherDefaultsDays(t *testing.T) {
	stub := &stubProvider{report: forecast.BuildReport("Hobart", nil)}
	tool := NewFishingWeather(FishingWeatherConfig{Enabled: true, APIKey: "k"}, stub, nil)

	out, err := tool.Execute(context.Background(), map[string]any{"location": "Hobart"})
	require.NoError(t, err)
	assert.Equal(t, forecast.DefaultDays, stub.days)
	assert.Equal(t, "Hobart", stub.location)
	_, ok := out.(forecast.Report)
	assert.True(t, ok)

	_, err = tool.Execute(context.Background(), map[string]any{"location": "Hobart", "days": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.days)
}

func TestFishingWeatherHidesTransportDetail(t *testing.T) {
	rec := &logging.Recorder{}
	stub := &stubProvider{err: &fisherrors.StatusError{Provider: "openweathermap", StatusCode: 502, Body: "upstream exploded"}}
	tool := NewFishingWeather(FishingWeatherConfig{Enabled: true, APIKey: "k"}, stub, rec)

	_, err := tool.Execute(context.Background(), map[string]any{"location": "Hobart"})
	toolErr := requireToolError(t, err, "weather_error")
	assert.NotContains(t, toolErr.Detail, "exploded")
	assert.Contains(t, toolErr.Detail, "try again later")
	assert.True(t, rec.Contains("upstream exploded"))
}
