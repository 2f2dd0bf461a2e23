// Package forecast turns raw weather samples into per-day fishing outlooks.
package forecast

import "encoding/json"

// DailyForecast is one local calendar day of aggregated weather. The fishing
// score is always derived from the fields through Score.
type DailyForecast struct {
	Date        string  `json:"date"` // YYYY-MM-DD, local to the forecast location
	TempAvgC    float64 `json:"temp_avg_c"`
	TempMinC    float64 `json:"temp_min_c"`
	TempMaxC    float64 `json:"temp_max_c"`
	WindKMH     float64 `json:"wind_speed_kmh"`
	RainfallMM  float64 `json:"rainfall_mm"`
	HumidityPct float64 `json:"humidity_percent"`
	Conditions  string  `json:"conditions"`
}

// Score returns the 0-10 fishing score for the day.
func (d DailyForecast) Score() int {
	return ScoreDay(d)
}

// MarshalJSON adds the derived fishing_score to the encoded day.
func (d DailyForecast) MarshalJSON() ([]byte, error) {
	type plain DailyForecast
	return json.Marshal(struct {
		plain
		FishingScore int `json:"fishing_score"`
	}{plain(d), d.Score()})
}

// DaySummary describes the best day of a window in the tool payload.
type DaySummary struct {
	Date       string  `json:"date"`
	Score      int     `json:"score"`
	Rating     string  `json:"rating"`
	TempC      float64 `json:"temp_c"`
	WindKMH    float64 `json:"wind_kmh"`
	RainMM     float64 `json:"rain_mm"`
	Conditions string  `json:"conditions"`
}

// Report is the payload returned by the weather tool.
type Report struct {
	Location       string          `json:"location"`
	ForecastDays   int             `json:"forecast_days"`
	Forecasts      []DailyForecast `json:"forecasts"`
	BestFishingDay *DaySummary     `json:"best_fishing_day"`
	Recommendation string          `json:"recommendation"`
}
