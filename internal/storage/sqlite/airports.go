package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/if-inbounds/internal/geo"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// AirportStorage persists airport coordinates so they survive restarts
type AirportStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAirportStorage creates a new SQLite airport storage
func NewAirportStorage(db *sql.DB, log *logger.Logger) (*AirportStorage, error) {
	storage := &AirportStorage{
		db:     db,
		logger: log.Named("sqlite-airports"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *AirportStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS airport_coordinates (
			icao TEXT PRIMARY KEY,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			fetched_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create airport_coordinates table: %w", err)
	}
	return nil
}

// GetAirportCoordinates returns the stored position of icao and when it was
// fetched. found is false when nothing is stored.
func (s *AirportStorage) GetAirportCoordinates(ctx context.Context, icao string) (geo.Point, time.Time, bool, error) {
	var record AirportCoordinateRecord
	var fetchedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT icao, latitude, longitude, fetched_at FROM airport_coordinates WHERE icao = ?`, icao,
	).Scan(&record.ICAO, &record.Latitude, &record.Longitude, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return geo.Point{}, time.Time{}, false, nil
	}
	if err != nil {
		return geo.Point{}, time.Time{}, false, fmt.Errorf("failed to query airport %s: %w", icao, err)
	}

	record.FetchedAt, err = parseTime(fetchedAt)
	if err != nil {
		return geo.Point{}, time.Time{}, false, fmt.Errorf("failed to parse fetched_at: %w", err)
	}
	return geo.Point{Latitude: record.Latitude, Longitude: record.Longitude}, record.FetchedAt, true, nil
}

// SaveAirportCoordinates stores or replaces the position of icao
func (s *AirportStorage) SaveAirportCoordinates(ctx context.Context, icao string, p geo.Point, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO airport_coordinates (icao, latitude, longitude, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(icao) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			fetched_at = excluded.fetched_at`,
		icao,
		p.Latitude,
		p.Longitude,
		formatTime(fetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store airport %s: %w", icao, err)
	}

	s.logger.Debug("Stored airport coordinates",
		logger.String("icao", icao),
		logger.Float64("latitude", p.Latitude),
		logger.Float64("longitude", p.Longitude),
	)
	return nil
}

// ListAirports returns every stored airport, oldest fetch first
func (s *AirportStorage) ListAirports(ctx context.Context) ([]*AirportCoordinateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT icao, latitude, longitude, fetched_at FROM airport_coordinates ORDER BY fetched_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query airports: %w", err)
	}
	defer rows.Close()

	var records []*AirportCoordinateRecord
	for rows.Next() {
		var record AirportCoordinateRecord
		var fetchedAt string
		if err := rows.Scan(&record.ICAO, &record.Latitude, &record.Longitude, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		if record.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
