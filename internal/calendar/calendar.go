package calendar

import (
	"math"
	"time"
)

// Features holds the calendar-derived model inputs for one date. Weekday is
// numbered Monday=0 through Sunday=6. The sine/cosine pairs encode weekday
// and day-of-year cyclically so the model sees no discontinuity between
// Sunday/Monday or between day 365 and day 1.
type Features struct {
	Year             int
	Month            int
	Weekday          int
	DayOfYear        int
	ISOWeek          int
	IsWeekend        bool
	IsHoliday        bool
	IsHolidayWeekend bool
	WeekdaySin       float64
	WeekdayCos       float64
	YdaySin          float64
	YdayCos          float64
}

// yearDays uses 365.25 as the cycle length so leap years do not shift the
// encoding of fixed calendar dates.
const yearDays = 365.25

// Derive computes the calendar features for a date against the Brazilian
// national holiday calendar.
func Derive(date time.Time) Features {
	weekday := mondayIndexed(date.Weekday())
	yday := date.YearDay()
	_, isoWeek := date.ISOWeek()

	isWeekend := weekday >= 5
	isHoliday := IsHoliday(date)

	return Features{
		Year:             date.Year(),
		Month:            int(date.Month()),
		Weekday:          weekday,
		DayOfYear:        yday,
		ISOWeek:          isoWeek,
		IsWeekend:        isWeekend,
		IsHoliday:        isHoliday,
		IsHolidayWeekend: isHoliday && isWeekend,
		WeekdaySin:       math.Sin(2 * math.Pi * float64(weekday) / 7),
		WeekdayCos:       math.Cos(2 * math.Pi * float64(weekday) / 7),
		YdaySin:          math.Sin(2 * math.Pi * float64(yday) / yearDays),
		YdayCos:          math.Cos(2 * math.Pi * float64(yday) / yearDays),
	}
}

func mondayIndexed(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// IsHoliday reports whether the date is a Brazilian national holiday.
func IsHoliday(date time.Time) bool {
	_, ok := Holidays(date.Year())[monthDay(date)]
	return ok
}

type monthDayKey struct {
	Month time.Month
	Day   int
}

func monthDay(t time.Time) monthDayKey {
	return monthDayKey{t.Month(), t.Day()}
}

// Holidays returns the national holidays of a year keyed by month/day.
// Fixed dates plus the movable feasts derived from Easter: Carnival Monday
// and Tuesday, Good Friday and Corpus Christi.
func Holidays(year int) map[monthDayKey]string {
	h := map[monthDayKey]string{
		{time.January, 1}:   "Confraternização Universal",
		{time.April, 21}:    "Tiradentes",
		{time.May, 1}:       "Dia do Trabalhador",
		{time.September, 7}: "Independência do Brasil",
		{time.October, 12}:  "Nossa Senhora Aparecida",
		{time.November, 2}:  "Finados",
		{time.November, 15}: "Proclamação da República",
		{time.December, 25}: "Natal",
	}
	// National holiday since Law 14.759/2023.
	if year >= 2024 {
		h[monthDayKey{time.November, 20}] = "Dia Nacional de Zumbi e da Consciência Negra"
	}

	easter := Easter(year)
	h[monthDay(easter.AddDate(0, 0, -48))] = "Carnaval"
	h[monthDay(easter.AddDate(0, 0, -47))] = "Carnaval"
	h[monthDay(easter.AddDate(0, 0, -2))] = "Sexta-feira Santa"
	h[monthDay(easter.AddDate(0, 0, 60))] = "Corpus Christi"
	return h
}

// Easter computes Gregorian Easter Sunday using the anonymous computus.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
