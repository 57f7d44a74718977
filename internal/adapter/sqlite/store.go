// Package sqlite archives pipeline runs, their processed observations and
// aggregate views in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store is the run archive. It implements pipeline.Exporter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := New(db, logger)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the exporter in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

func (s *Store) now() time.Time { return domain.Now() }

// Export archives one run in a single transaction: the run row, every
// processed observation, the per-city statistics and the top-city ranking.
func (s *Store) Export(ctx context.Context, run domain.Run, table *domain.Table, analysis *domain.Analysis) (err error) {
	if table == nil || analysis == nil {
		return domain.ErrNotLoaded
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck // already failing
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, input_path, started_at, finished_at, rows_loaded, rows_out)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.InputPath, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.RowsLoaded, run.RowsOut); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err = insertObservations(ctx, tx, run.ID, table); err != nil {
		return err
	}
	if err = insertCityStats(ctx, tx, run.ID, analysis.CityStats); err != nil {
		return err
	}
	if err = insertTopCities(ctx, tx, run.ID, analysis.TopCities); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	s.logger.Info("archived run", "run_id", run.ID, "observations", table.Len())
	return nil
}

func insertObservations(ctx context.Context, tx *sql.Tx, runID string, table *domain.Table) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (run_id, date, city, temperature_celsius, humidity_percent, wind_speed_kph, weather_condition, year, month, day, temperature_fahrenheit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i := range table.Rows {
		o := &table.Rows[i]
		fahrenheit := sql.NullFloat64{Float64: o.TemperatureFahrenheit, Valid: o.Temperature.Valid && table.Derived}
		if _, err := stmt.ExecContext(ctx,
			runID, domain.FormatDate(o.Date.Time), nullString(o.City),
			o.Temperature, o.Humidity, o.WindSpeed, o.Condition,
			o.Year, o.Month, o.Day, fahrenheit,
		); err != nil {
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}
	return nil
}

func insertCityStats(ctx context.Context, tx *sql.Tx, runID string, stats []domain.CityStats) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO city_stats (run_id, city, column_name, mean, median, min, max)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare city stats insert: %w", err)
	}
	defer stmt.Close()

	for _, cs := range stats {
		for _, agg := range cs.Aggregates {
			if _, err := stmt.ExecContext(ctx, runID, cs.City, agg.Column,
				nullFloat(agg.Mean), nullFloat(agg.Median), nullFloat(agg.Min), nullFloat(agg.Max),
			); err != nil {
				return fmt.Errorf("insert city stats %s/%s: %w", cs.City, agg.Column, err)
			}
		}
	}
	return nil
}

func insertTopCities(ctx context.Context, tx *sql.Tx, runID string, top []domain.CityTemperature) error {
	for i, c := range top {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO top_cities (run_id, rank, city, temperature_celsius) VALUES (?, ?, ?, ?)",
			runID, i+1, c.City, c.Temperature,
		); err != nil {
			return fmt.Errorf("insert top city %d: %w", i+1, err)
		}
	}
	return nil
}

// RecentRuns lists archived runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, input_path, started_at, finished_at, rows_loaded, rows_out
		FROM runs
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		if err := rows.Scan(&r.ID, &r.InputPath, &r.StartedAt, &r.FinishedAt, &r.RowsLoaded, &r.RowsOut); err != nil {
			return nil, err
		}
		r.StartedAt, r.FinishedAt = r.StartedAt.UTC(), r.FinishedAt.UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CityStats returns the archived per-city statistics of a run, ordered by
// city and then by the StatColumns order.
func (s *Store) CityStats(ctx context.Context, runID string) ([]domain.CityStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT city, column_name, mean, median, min, max
		FROM city_stats
		WHERE run_id = ?
		ORDER BY city
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byCity := make(map[string]map[string]domain.Aggregate)
	var order []string
	for rows.Next() {
		var (
			city, col                string
			mean, median, minV, maxV sql.NullFloat64
		)
		if err := rows.Scan(&city, &col, &mean, &median, &minV, &maxV); err != nil {
			return nil, err
		}
		if _, ok := byCity[city]; !ok {
			byCity[city] = make(map[string]domain.Aggregate)
			order = append(order, city)
		}
		byCity[city][col] = domain.Aggregate{
			Column: col, Mean: orNaN(mean), Median: orNaN(median), Min: orNaN(minV), Max: orNaN(maxV),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.CityStats, 0, len(order))
	for _, city := range order {
		cs := domain.CityStats{City: city}
		for _, col := range domain.StatColumns {
			if agg, ok := byCity[city][col]; ok {
				cs.Aggregates = append(cs.Aggregates, agg)
			}
		}
		out = append(out, cs)
	}
	return out, nil
}

// CountObservations returns the number of archived observations of a run.
func (s *Store) CountObservations(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
