package forecast

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/httpclient"
	"tasfish/internal/logging"
)

// Provider fetches a forecast report for a named location.
type Provider interface {
	Forecast(ctx context.Context, location string, days int) (Report, error)
}

// OpenWeatherMapConfig configures the OpenWeatherMap 5 day / 3 hour client.
type OpenWeatherMapConfig struct {
	APIKey      string
	BaseURL     string
	Region      string
	CountryCode string
	Timeout     time.Duration
	RetryCount  int
}

// OpenWeatherMap implements Provider against the /forecast endpoint.
type OpenWeatherMap struct {
	client *resty.Client
	config OpenWeatherMapConfig
	logger logging.Logger
	now    func() time.Time
}

type owmResponse struct {
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Rain map[string]float64 `json:"rain"`
	} `json:"list"`
}

// NewOpenWeatherMap builds the client. Requests go through a circuit breaker
// so a failing provider is not hammered.
func NewOpenWeatherMap(config OpenWeatherMapConfig, logger logging.Logger) *OpenWeatherMap {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Region == "" {
		config.Region = "Tasmania"
	}
	if config.CountryCode == "" {
		config.CountryCode = "AU"
	}
	logger = logging.OrNop(logger)

	transport := httpclient.WrapTransportWithCircuitBreaker(
		httpclient.New(config.Timeout, logger).Transport,
		"openweathermap",
		fisherrors.DefaultCircuitBreakerConfig(),
		logger,
	)
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetTransport(transport).
		SetHeader("Accept", "application/json").
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return fisherrors.IsTransient(err)
			}
			return r != nil && (r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests)
		})

	return &OpenWeatherMap{client: client, config: config, logger: logger, now: time.Now}
}

// Forecast fetches, aggregates and scores up to days days for location.
func (o *OpenWeatherMap) Forecast(ctx context.Context, location string, days int) (Report, error) {
	days = ClampDays(days, o.logger)

	var payload owmResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     fmt.Sprintf("%s,%s,%s", location, o.config.Region, o.config.CountryCode),
			"appid": o.config.APIKey,
			"units": "metric",
		}).
		SetResult(&payload).
		Get("/forecast")
	if err != nil {
		return Report{}, fmt.Errorf("openweathermap request: %w", err)
	}
	if resp.IsError() {
		return Report{}, &fisherrors.StatusError{
			Provider:   "openweathermap",
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}

	samples := make([]Sample, 0, len(payload.List))
	for _, item := range payload.List {
		s := Sample{
			Time:        time.Unix(item.Dt, 0).UTC(),
			TempC:       item.Main.Temp,
			HumidityPct: item.Main.Humidity,
			WindMS:      item.Wind.Speed,
			RainMM:      item.Rain["3h"],
		}
		if len(item.Weather) > 0 {
			s.Description = item.Weather[0].Description
		}
		samples = append(samples, s)
	}

	offset := time.Duration(payload.City.Timezone) * time.Second
	daily := Aggregate(samples, offset, o.now(), days)
	o.logger.Debug("forecast for %s: %d samples, %d days", location, len(samples), len(daily))
	return BuildReport(location, daily), nil
}
