package store

import (
	"database/sql"
	"time"

	"github.com/lfarias/rodovia/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertIncidents stores a batch of raw records in one transaction and
// returns how many were new. Duplicate rows are ignored so re-ingesting the
// same file is a no-op.
func (s *Store) InsertIncidents(records []models.IncidentRecord) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO incidents (occurred_on, raw_date, raw_time, uf, municipality, accident_type, weather, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		var occurredOn any
		if date, err := time.Parse(models.DateLayout, rec.Date); err == nil {
			occurredOn = date.Format("2006-01-02")
		}
		res, err := stmt.Exec(occurredOn, rec.Date, rec.Time, rec.UF, rec.Municipality, rec.AccidentType, rec.Weather, rec.Latitude, rec.Longitude)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetIncidents returns every stored record in occurrence order, with
// unparseable dates last.
func (s *Store) GetIncidents() ([]models.IncidentRecord, error) {
	rows, err := s.db.Query(`
		SELECT raw_date, raw_time, uf, municipality, accident_type, weather, latitude, longitude
		FROM incidents
		ORDER BY occurred_on IS NULL, occurred_on ASC, raw_time ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.IncidentRecord
	for rows.Next() {
		var rec models.IncidentRecord
		var accidentType, weather sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&rec.Date, &rec.Time, &rec.UF, &rec.Municipality, &accidentType, &weather, &lat, &lon); err != nil {
			return nil, err
		}
		rec.AccidentType = accidentType.String
		rec.Weather = weather.String
		rec.Latitude = lat.Float64
		rec.Longitude = lon.Float64
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) CountIncidents() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM incidents`).Scan(&count)
	return count, err
}

// ReplaceDailySeries swaps in a fresh aggregation snapshot. The table always
// reflects the most recent training run, never a mix of two.
func (s *Store) ReplaceDailySeries(series []models.DailyRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM daily_series`); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO daily_series (date, count, uf, municipality, accident_type, weather_class, mean_hour)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range series {
		if _, err := stmt.Exec(row.Date.Format("2006-01-02"), row.Count, row.UF, row.Municipality, row.AccidentType, row.WeatherClass, row.MeanHour); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetRecentDays returns the last n days of the aggregated series, oldest
// first. n <= 0 returns the whole series.
func (s *Store) GetRecentDays(n int) ([]models.DailyRow, error) {
	query := `
		SELECT date, count, uf, municipality, accident_type, weather_class, mean_hour
		FROM daily_series
		ORDER BY date ASC
	`
	args := []any{}
	if n > 0 {
		query = `
			SELECT date, count, uf, municipality, accident_type, weather_class, mean_hour
			FROM (
				SELECT date, count, uf, municipality, accident_type, weather_class, mean_hour
				FROM daily_series
				ORDER BY date DESC
				LIMIT ?
			)
			ORDER BY date ASC
		`
		args = append(args, n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []models.DailyRow
	for rows.Next() {
		var row models.DailyRow
		var dateStr string
		if err := rows.Scan(&dateStr, &row.Count, &row.UF, &row.Municipality, &row.AccidentType, &row.WeatherClass, &row.MeanHour); err != nil {
			return nil, err
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, err
		}
		row.Date = date
		series = append(series, row)
	}
	return series, rows.Err()
}

// MunicipalityCounts returns incident totals per (UF, municipality), busiest
// first. limit <= 0 returns all.
func (s *Store) MunicipalityCounts(limit int) ([]models.MunicipalityCount, error) {
	query := `
		SELECT uf, municipality, COUNT(*) as count
		FROM incidents
		GROUP BY uf, municipality
		ORDER BY count DESC, uf ASC, municipality ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.MunicipalityCount
	for rows.Next() {
		var mc models.MunicipalityCount
		if err := rows.Scan(&mc.UF, &mc.Municipality, &mc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

func (s *Store) InsertPredictionLog(p models.PredictionLog) error {
	_, err := s.db.Exec(`
		INSERT INTO predictions (requested_at, target_date, uf, municipality, accident_type, weather_class, predicted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.RequestedAt, p.TargetDate.Format("2006-01-02"), p.UF, p.Municipality, p.AccidentType, p.WeatherClass, p.Predicted)
	return err
}

func (s *Store) GetRecentPredictions(limit int) ([]models.PredictionLog, error) {
	rows, err := s.db.Query(`
		SELECT id, requested_at, target_date, uf, municipality, accident_type, weather_class, predicted
		FROM predictions
		ORDER BY requested_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.PredictionLog
	for rows.Next() {
		var p models.PredictionLog
		var targetStr string
		if err := rows.Scan(&p.ID, &p.RequestedAt, &targetStr, &p.UF, &p.Municipality, &p.AccidentType, &p.WeatherClass, &p.Predicted); err != nil {
			return nil, err
		}
		target, err := time.Parse("2006-01-02", targetStr)
		if err != nil {
			return nil, err
		}
		p.TargetDate = target
		logs = append(logs, p)
	}
	return logs, rows.Err()
}
