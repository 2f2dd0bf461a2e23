package forecast

const maxScore = 10

// ScoreDay returns the 0-10 fishing score for a day, from its average
// temperature, wind and rainfall.
func ScoreDay(d DailyForecast) int {
	return scoreBands(d.TempAvgC, d.WindKMH, d.RainfallMM)
}

// scoreBands scores temperature, wind and rain against fixed bands:
//
//	temperature °C  [10,25] +4   [5,10) or (25,30] +2   [0,5) or (30,35] +1
//	wind km/h       <15 +3       [15,25) +2             [25,35) +1
//	rain mm         <2 +3        [2,10) +2              [10,20) +1
func scoreBands(tempC, windKMH, rainMM float64) int {
	score := 0

	switch {
	case tempC >= 10 && tempC <= 25:
		score += 4
	case (tempC >= 5 && tempC < 10) || (tempC > 25 && tempC <= 30):
		score += 2
	case (tempC >= 0 && tempC < 5) || (tempC > 30 && tempC <= 35):
		score++
	}

	switch {
	case windKMH < 15:
		score += 3
	case windKMH < 25:
		score += 2
	case windKMH < 35:
		score++
	}

	switch {
	case rainMM < 2:
		score += 3
	case rainMM < 10:
		score += 2
	case rainMM < 20:
		score++
	}

	return min(score, maxScore)
}

// Rating labels a score.
func Rating(score int) string {
	switch {
	case score >= 8:
		return "Excellent"
	case score >= 6:
		return "Good"
	case score >= 4:
		return "Fair"
	default:
		return "Poor"
	}
}

// BestDay returns the highest scoring day, or nil for an empty window. Ties
// go to the earliest date.
func BestDay(days []DailyForecast) *DailyForecast {
	if len(days) == 0 {
		return nil
	}
	best := days[0]
	bestScore := best.Score()
	for _, d := range days[1:] {
		s := d.Score()
		if s > bestScore || (s == bestScore && d.Date < best.Date) {
			best, bestScore = d, s
		}
	}
	return &best
}

func summarize(d DailyForecast) *DaySummary {
	score := d.Score()
	return &DaySummary{
		Date:       d.Date,
		Score:      score,
		Rating:     Rating(score),
		TempC:      d.TempAvgC,
		WindKMH:    d.WindKMH,
		RainMM:     d.RainfallMM,
		Conditions: d.Conditions,
	}
}

// Outlook describes a window by its mean score.
func Outlook(days []DailyForecast) string {
	if len(days) == 0 {
		return ""
	}
	total := 0
	for _, d := range days {
		total += d.Score()
	}
	mean := float64(total) / float64(len(days))
	switch {
	case mean >= 7:
		return "Great week ahead for fishing!"
	case mean >= 5:
		return "Generally good conditions expected"
	case mean >= 3:
		return "Mixed conditions throughout the period"
	default:
		return "Challenging conditions expected"
	}
}

// BuildReport assembles the tool payload for a location.
func BuildReport(location string, days []DailyForecast) Report {
	report := Report{
		Location:     location,
		ForecastDays: len(days),
		Forecasts:    days,
	}
	if report.Forecasts == nil {
		report.Forecasts = []DailyForecast{}
	}
	best := BestDay(days)
	if best == nil {
		report.Recommendation = "No forecast data available"
		return report
	}
	report.BestFishingDay = summarize(*best)
	report.Recommendation = Outlook(days) + " Best day: " + best.Date + " (" + report.BestFishingDay.Rating + ")"
	return report
}
