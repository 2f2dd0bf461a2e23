package composer

import (
	"encoding/json"
	"fmt"
	"strings"

	"tasfish/internal/forecast"
	"tasfish/internal/species"
	"tasfish/internal/tools"
)

// DescribeResult renders a tool result as plain facts for a prompt. Known
// payloads get a fixed wording so numbers reach the model unchanged.
func DescribeResult(result tools.Result) string {
	switch r := result.(type) {
	case tools.Ok:
		switch p := r.Payload.(type) {
		case species.Verdict:
			return p.Summary()
		case forecast.Report:
			return describeReport(p)
		default:
			data, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return fmt.Sprintf("%v", p)
			}
			return string(data)
		}
	case tools.Err:
		return fmt.Sprintf("The %s tool could not complete the request (error code %s). %s", r.Tool, r.Code, r.Detail)
	case nil:
		return "No tool result is available."
	default:
		return fmt.Sprintf("Unrecognised tool result %T.", r)
	}
}

func describeReport(report forecast.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fishing forecast for %s (%d days):\n", report.Location, report.ForecastDays)
	for _, d := range report.Forecasts {
		score := d.Score()
		fmt.Fprintf(&b, "- %s: %s, %.1f°C (min %.1f, max %.1f), wind %.1f km/h, rain %.1f mm, humidity %.0f%%, fishing score %d/10 (%s)\n",
			d.Date, d.Conditions, d.TempAvgC, d.TempMinC, d.TempMaxC, d.WindKMH, d.RainfallMM, d.HumidityPct, score, forecast.Rating(score))
	}
	if best := report.BestFishingDay; best != nil {
		fmt.Fprintf(&b, "Best fishing day: %s, score %d/10 (%s), %s, %.1f°C, wind %.1f km/h, rain %.1f mm.\n",
			best.Date, best.Score, best.Rating, best.Conditions, best.TempC, best.WindKMH, best.RainMM)
	}
	if report.Recommendation != "" {
		fmt.Fprintf(&b, "Outlook: %s", report.Recommendation)
	}
	return strings.TrimRight(b.String(), "\n")
}
