package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/logging"
)

func TestScoreDayMaximumScenario(t *testing.T) {
	assert.Equal(t, 10, ScoreDay(DailyForecast{Date: "2025-03-01", TempAvgC: 17, WindKMH: 10, RainfallMM: 0}))
}

func TestScoreDayBands(t *testing.T) {
	tests := []struct {
		temp, wind, rain float64
		want             int
	}{
		{10, 14.9, 1.9, 10},
		{25, 15, 2, 8},
		{9.9, 24.9, 9.9, 6},
		{25.1, 25, 10, 4},
		{30, 34.9, 19.9, 4},
		{4.9, 35, 20, 1},
		{30.1, 40, 50, 1},
		{35.1, 40, 50, 0},
		{-0.1, 40, 50, 0},
		{0, 0, 0, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%v/%v", tt.temp, tt.wind, tt.rain), func(t *testing.T) {
			assert.Equal(t, tt.want, scoreBands(tt.temp, tt.wind, tt.rain))
		})
	}
}

func TestScoreMonotonicPerFactor(t *testing.T) {
	for w := 0.0; w < 60; w += 0.5 {
		assert.GreaterOrEqual(t, scoreBands(17, w, 0), scoreBands(17, w+0.5, 0), "wind %v", w)
	}
	for r := 0.0; r < 40; r += 0.5 {
		assert.GreaterOrEqual(t, scoreBands(17, 0, r), scoreBands(17, 0, r+0.5), "rain %v", r)
	}
	for temp := 10.0; temp < 40; temp += 0.5 {
		assert.GreaterOrEqual(t, scoreBands(temp, 0, 0), scoreBands(temp+0.5, 0, 0), "temp %v", temp)
	}
	for temp := 10.0; temp > -5; temp -= 0.5 {
		assert.GreaterOrEqual(t, scoreBands(temp, 0, 0), scoreBands(temp-0.5, 0, 0), "temp %v", temp)
	}
}

func TestRating(t *testing.T) {
	assert.Equal(t, "Excellent", Rating(8))
	assert.Equal(t, "Good", Rating(7))
	assert.Equal(t, "Good", Rating(6))
	assert.Equal(t, "Fair", Rating(4))
	assert.Equal(t, "Poor", Rating(3))
}

func TestBestDayTieGoesToEarliest(t *testing.T) {
	days := []DailyForecast{
		{Date: "2025-03-02", TempAvgC: 17, WindKMH: 10},
		{Date: "2025-03-01", TempAvgC: 17, WindKMH: 10},
		{Date: "2025-03-03", TempAvgC: 3, WindKMH: 40, RainfallMM: 30},
	}
	best := BestDay(days)
	require.NotNil(t, best)
	assert.Equal(t, "2025-03-01", best.Date)
	assert.Equal(t, 10, ScoreDay(*best))

	assert.Nil(t, BestDay(nil))
	assert.Nil(t, BestDay([]DailyForecast{}))

	report := BuildReport("Hobart", days)
	require.NotNil(t, report.BestFishingDay)
	assert.Equal(t, "2025-03-01", report.BestFishingDay.Date)
	assert.Equal(t, "Excellent", report.BestFishingDay.Rating)
}

func TestOutlookThresholds(t *testing.T) {
	day := func(temp, wind, rain float64) DailyForecast {
		return DailyForecast{Date: "2025-01-01", TempAvgC: temp, WindKMH: wind, RainfallMM: rain}
	}
	assert.Equal(t, "Great week ahead for fishing!", Outlook([]DailyForecast{day(17, 10, 0), day(17, 20, 5)}))
	assert.Equal(t, "Generally good conditions expected", Outlook([]DailyForecast{day(26, 20, 5)}))
	assert.Equal(t, "Mixed conditions throughout the period", Outlook([]DailyForecast{day(4, 20, 15)}))
	assert.Equal(t, "Challenging conditions expected", Outlook([]DailyForecast{day(40, 50, 30)}))
}

func TestBuildReportRecommendation(t *testing.T) {
	report := BuildReport("Hobart", []DailyForecast{
		{Date: "2025-03-01", TempAvgC: 17, WindKMH: 10},
		{Date: "2025-03-02", TempAvgC: 12, WindKMH: 30, RainfallMM: 12},
	})
	assert.Equal(t, 2, report.ForecastDays)
	require.NotNil(t, report.BestFishingDay)
	assert.Equal(t, "Great week ahead for fishing! Best day: 2025-03-01 (Excellent)", report.Recommendation)

	empty := BuildReport("Hobart", nil)
	assert.Nil(t, empty.BestFishingDay)
	assert.Equal(t, "No forecast data available", empty.Recommendation)
	assert.NotNil(t, empty.Forecasts)
}

func TestDailyForecastJSONIncludesDerivedScore(t *testing.T) {
	raw, err := json.Marshal(DailyForecast{Date: "2025-03-01", TempAvgC: 17, WindKMH: 10})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fishing_score":10`)
	assert.Contains(t, string(raw), `"date":"2025-03-01"`)
}

func TestClampDaysLogs(t *testing.T) {
	rec := &logging.Recorder{}
	assert.Equal(t, 5, ClampDays(9, rec))
	assert.Equal(t, 1, ClampDays(0, rec))
	assert.Equal(t, 3, ClampDays(3, rec))
	assert.Len(t, rec.Lines(), 2)
	assert.True(t, rec.Contains("clamped to 5"))
}

func TestAggregateGroupsByLocalDate(t *testing.T) {
	offset := 11 * time.Hour // AEDT
	now := time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC) // 12:00 local on Mar 1

	at := func(y int, m time.Month, d, h int) time.Time { return time.Date(y, m, d, h, 0, 0, 0, time.UTC) }
	samples := []Sample{
		// Feb 28 local: dropped as before today.
		{Time: at(2025, 2, 28, 0), TempC: 30, Description: "old"},
		// Mar 1 local (UTC Feb 28 14:00 onwards).
		{Time: at(2025, 2, 28, 14), TempC: 10, WindMS: 2, HumidityPct: 60, Description: "light rain", RainMM: 1.5},
		{Time: at(2025, 3, 1, 2), TempC: 20, WindMS: 4, HumidityPct: 70, Description: "clear sky"},
		{Time: at(2025, 3, 1, 5), TempC: 15, WindMS: 3, HumidityPct: 80, Description: "light rain", RainMM: 2.25},
		// Mar 2 local.
		{Time: at(2025, 3, 1, 14), TempC: 12, WindMS: 5, HumidityPct: 50, Description: "clouds"},
		// Mar 3 local.
		{Time: at(2025, 3, 2, 14), TempC: 12, WindMS: 5, HumidityPct: 50, Description: "clouds"},
	}

	days := Aggregate(samples, offset, now, 2)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, "2025-03-01", first.Date)
	assert.Equal(t, 15.0, first.TempAvgC)
	assert.Equal(t, 10.0, first.TempMinC)
	assert.Equal(t, 20.0, first.TempMaxC)
	assert.Equal(t, 10.8, first.WindKMH)
	assert.Equal(t, 3.8, first.RainfallMM)
	assert.Equal(t, 70.0, first.HumidityPct)
	assert.Equal(t, "light rain", first.Conditions)

	assert.Equal(t, "2025-03-02", days[1].Date)
}

func TestModeFirstSeenWinsTies(t *testing.T) {
	assert.Equal(t, "a", mode([]string{"a", "b", "b", "a"}))
	assert.Equal(t, "b", mode([]string{"a", "b", "b"}))
	assert.Equal(t, "", mode(nil))
}

const owmFixture = `{
  "city": {"name": "Hobart", "timezone": 39600},
  "list": [
    {"dt": 1740790800, "main": {"temp": 17, "humidity": 60}, "wind": {"speed": 2.5}, "weather": [{"description": "clear sky"}]},
    {"dt": 1740801600, "main": {"temp": 19, "humidity": 55}, "wind": {"speed": 3.0}, "weather": [{"description": "clear sky"}], "rain": {"3h": 0.4}},
    {"dt": 1740877200, "main": {"temp": 8, "humidity": 90}, "wind": {"speed": 9.0}, "weather": [{"description": "moderate rain"}], "rain": {"3h": 6.0}}
  ]
}`

func TestOpenWeatherMapForecast(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		gotQuery = map[string]string{
			"q":     r.URL.Query().Get("q"),
			"appid": r.URL.Query().Get("appid"),
			"units": r.URL.Query().Get("units"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(owmFixture))
	}))
	defer srv.Close()

	rec := &logging.Recorder{}
	client := NewOpenWeatherMap(OpenWeatherMapConfig{APIKey: "k", BaseURL: srv.URL}, rec)
	client.now = func() time.Time { return time.Unix(1740790800, 0) }

	report, err := client.Forecast(context.Background(), "Hobart", 12)
	require.NoError(t, err)

	assert.Equal(t, "Hobart,Tasmania,AU", gotQuery["q"])
	assert.Equal(t, "k", gotQuery["appid"])
	assert.Equal(t, "metric", gotQuery["units"])
	assert.True(t, rec.Contains("clamped to 5"))

	require.Len(t, report.Forecasts, 2)
	assert.Equal(t, "Hobart", report.Location)
	day := report.Forecasts[0]
	assert.Equal(t, 18.0, day.TempAvgC)
	assert.Equal(t, 9.9, day.WindKMH)
	assert.Equal(t, 0.4, day.RainfallMM)
	assert.Equal(t, 10, day.Score())
	require.NotNil(t, report.BestFishingDay)
	assert.Equal(t, day.Date, report.BestFishingDay.Date)
}

func TestOpenWeatherMapStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()

	client := NewOpenWeatherMap(OpenWeatherMapConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := client.Forecast(context.Background(), "Atlantis", 3)

	var statusErr *fisherrors.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.True(t, fisherrors.IsPermanent(err))
}
