package forecast

import (
	"math"
	"sort"
	"time"

	"tasfish/internal/logging"
)

const (
	MinDays     = 1
	MaxDays     = 5
	DefaultDays = 5
)

// Sample is one sub-daily provider reading.
type Sample struct {
	Time        time.Time
	TempC       float64
	HumidityPct float64
	WindMS      float64
	RainMM      float64
	Description string
}

// ClampDays bounds a requested day count to [MinDays, MaxDays], logging when
// the request was out of range.
func ClampDays(days int, logger logging.Logger) int {
	clamped := min(max(days, MinDays), MaxDays)
	if clamped != days {
		logging.OrNop(logger).Info("forecast days %d out of range, clamped to %d", days, clamped)
	}
	return clamped
}

type dayBucket struct {
	temps      []float64
	winds      []float64
	humidity   []float64
	rain       float64
	conditions []string
}

// Aggregate groups samples by local calendar date (UTC time shifted by
// offset), keeps dates on or after the local date of now, and returns at
// most days entries in chronological order.
func Aggregate(samples []Sample, offset time.Duration, now time.Time, days int) []DailyForecast {
	buckets := make(map[string]*dayBucket)
	for _, s := range samples {
		date := s.Time.UTC().Add(offset).Format(time.DateOnly)
		b, ok := buckets[date]
		if !ok {
			b = &dayBucket{}
			buckets[date] = b
		}
		b.temps = append(b.temps, s.TempC)
		b.winds = append(b.winds, s.WindMS)
		b.humidity = append(b.humidity, s.HumidityPct)
		b.rain += s.RainMM
		b.conditions = append(b.conditions, s.Description)
	}

	today := now.UTC().Add(offset).Format(time.DateOnly)
	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		if date >= today {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	out := make([]DailyForecast, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]
		out = append(out, DailyForecast{
			Date:        date,
			TempAvgC:    round(mean(b.temps), 1),
			TempMinC:    round(minOf(b.temps), 1),
			TempMaxC:    round(maxOf(b.temps), 1),
			WindKMH:     round(mean(b.winds)*3.6, 1),
			RainfallMM:  round(b.rain, 1),
			HumidityPct: round(mean(b.humidity), 0),
			Conditions:  mode(b.conditions),
		})
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

// mode returns the most frequent string; the first seen wins ties.
func mode(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
