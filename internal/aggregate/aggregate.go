// Package aggregate collapses raw incident records into one row per calendar
// day, the series the forecasting model is trained on.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/weather"
)

// DefaultMinYear is the data-quality floor: records dated before it are
// dropped. Earlier DATATRAN years use inconsistent field conventions.
const DefaultMinYear = 2019

// DropStats counts records discarded during aggregation, by reason.
type DropStats struct {
	MissingField  int
	BadDate       int
	BadTime       int
	BeforeMinYear int
}

// Total returns the number of dropped records.
func (d DropStats) Total() int {
	return d.MissingField + d.BadDate + d.BadTime + d.BeforeMinYear
}

// ParseTimeOfDay extracts the hour from an HH:MM:SS string.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return t.Hour(), nil
}

// dayAccum accumulates one calendar day's records during grouping.
type dayAccum struct {
	date         time.Time
	count        int
	hourSum      int
	uf           modeCounter
	municipality modeCounter
	accidentType modeCounter
	weatherClass modeCounter
}

// modeCounter tracks value frequencies plus first-encounter order so ties
// resolve to the value seen first, an explicit if arbitrary rule.
type modeCounter struct {
	counts map[string]int
	order  []string
}

func (m *modeCounter) add(v string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	if _, seen := m.counts[v]; !seen {
		m.order = append(m.order, v)
	}
	m.counts[v]++
}

func (m *modeCounter) mode() string {
	best := ""
	bestCount := 0
	for _, v := range m.order {
		if m.counts[v] > bestCount {
			best = v
			bestCount = m.counts[v]
		}
	}
	return best
}

// Aggregate groups raw records by calendar date and returns the daily series
// sorted ascending, plus counts of records it dropped. Records missing any
// required field, with an unparseable date or time, or dated before minYear
// are dropped; the pipeline continues. Missing days are not filled in: lag
// feature construction handles gaps downstream.
func Aggregate(records []models.IncidentRecord, minYear int) ([]models.DailyRow, DropStats) {
	if minYear <= 0 {
		minYear = DefaultMinYear
	}

	var drops DropStats
	days := make(map[time.Time]*dayAccum)

	for _, rec := range records {
		if rec.Date == "" || rec.Time == "" || rec.UF == "" || rec.Municipality == "" ||
			rec.AccidentType == "" || rec.Weather == "" {
			drops.MissingField++
			continue
		}

		date, err := time.Parse(models.DateLayout, rec.Date)
		if err != nil {
			drops.BadDate++
			continue
		}
		if date.Year() < minYear {
			drops.BeforeMinYear++
			continue
		}

		hour, err := ParseTimeOfDay(rec.Time)
		if err != nil {
			drops.BadTime++
			continue
		}

		day, ok := days[date]
		if !ok {
			day = &dayAccum{date: date}
			days[date] = day
		}
		day.count++
		day.hourSum += hour
		day.uf.add(rec.UF)
		day.municipality.add(rec.Municipality)
		day.accidentType.add(rec.AccidentType)
		day.weatherClass.add(string(weather.Normalize(rec.Weather)))
	}

	series := make([]models.DailyRow, 0, len(days))
	for _, day := range days {
		series = append(series, models.DailyRow{
			Date:         day.date,
			Count:        day.count,
			UF:           day.uf.mode(),
			Municipality: day.municipality.mode(),
			AccidentType: day.accidentType.mode(),
			WeatherClass: day.weatherClass.mode(),
			MeanHour:     float64(day.hourSum) / float64(day.count),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, drops
}
