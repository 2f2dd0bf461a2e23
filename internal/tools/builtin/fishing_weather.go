package builtin

import (
	"context"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/forecast"
	"tasfish/internal/logging"
	"tasfish/internal/tools"
)

// FishingWeatherToolName is the registry name of the forecast tool.
const FishingWeatherToolName = "get_fishing_weather"

const (
	weatherUnavailable = "Weather information is unavailable right now. Please try again later."
	weatherNeedsPlace  = "Please tell me which Tasmanian location you want the fishing forecast for."
)

// FishingWeatherConfig mirrors the weather tool settings.
type FishingWeatherConfig struct {
	Enabled  bool
	Provider string
	APIKey   string
}

// FishingWeather fetches a multi-day forecast with fishing scores.
type FishingWeather struct {
	config   FishingWeatherConfig
	provider forecast.Provider
	logger   logging.Logger
}

// NewFishingWeather builds the tool. provider may be nil when the tool is
// disabled or unconfigured; Execute then reports the matching error code.
func NewFishingWeather(config FishingWeatherConfig, provider forecast.Provider, logger logging.Logger) *FishingWeather {
	if config.Provider == "" {
		config.Provider = "openweathermap"
	}
	return &FishingWeather{config: config, provider: provider, logger: logging.OrNop(logger)}
}

func (t *FishingWeather) Definition() tools.Definition {
	return tools.Definition{
		Name:        FishingWeatherToolName,
		Description: "Get the weather forecast and fishing conditions for a Tasmanian location, with a 0-10 fishing score per day and the best day to go.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"location": {
					Type:        "string",
					Description: "Tasmanian town or fishing spot, e.g. 'Hobart', 'St Helens', 'Great Lake'",
				},
				"days": {
					Type:        "integer",
					Description: "Number of days to forecast (1-5)",
					Minimum:     tools.Float(forecast.MinDays),
					Maximum:     tools.Float(forecast.MaxDays),
					Default:     forecast.DefaultDays,
				},
			},
			Required: []string{"location"},
		},
	}
}

// Execute returns a forecast.Report on success.
func (t *FishingWeather) Execute(ctx context.Context, params map[string]any) (any, error) {
	if !t.config.Enabled {
		return nil, tools.NewError("weather_disabled", "Weather API disabled")
	}
	if t.config.APIKey == "" {
		return nil, tools.NewError("no_api_key", weatherUnavailable)
	}
	if t.config.Provider != "openweathermap" || t.provider == nil {
		return nil, tools.NewError("weather_provider_error", weatherUnavailable)
	}

	location, ok := tools.StringParam(params, "location")
	if !ok {
		return nil, tools.NewError(tools.CodeInvalidParams, weatherNeedsPlace)
	}
	days, ok := tools.IntParam(params, "days")
	if !ok {
		days = forecast.DefaultDays
	}

	report, err := t.provider.Forecast(ctx, location, days)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.Warn("forecast for %s failed: %v", location, err)
		return nil, tools.NewError("weather_error", fisherrors.FormatForUser(err))
	}
	return report, nil
}
