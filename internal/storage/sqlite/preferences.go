package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/if-inbounds/pkg/logger"
)

// PreferenceStorage handles storage of user preferences with expiry
type PreferenceStorage struct {
	db     *sql.DB
	now    func() time.Time
	logger *logger.Logger
}

// NewPreferenceStorage creates a new SQLite preference storage
func NewPreferenceStorage(db *sql.DB, log *logger.Logger) (*PreferenceStorage, error) {
	storage := &PreferenceStorage{
		db:     db,
		now:    time.Now,
		logger: log.Named("sqlite-prefs"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *PreferenceStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_preferences_expires_at ON preferences(expires_at)`); err != nil {
		return fmt.Errorf("failed to create preferences index: %w", err)
	}
	return nil
}

// SetPreference stores value under name, valid for ttl from now
func (s *PreferenceStorage) SetPreference(ctx context.Context, name, value string, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (name, value, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		name,
		value,
		formatTime(now),
		formatTime(now.Add(ttl)),
	)
	if err != nil {
		return fmt.Errorf("failed to store preference %s: %w", name, err)
	}

	s.logger.Debug("Stored preference",
		logger.String("name", name),
		logger.Duration("ttl", ttl),
	)
	return nil
}

// GetPreference returns the preference called name, or nil when it is
// missing or expired. Expired rows are deleted.
func (s *PreferenceStorage) GetPreference(ctx context.Context, name string) (*PreferenceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, value, updated_at, expires_at FROM preferences WHERE name = ?`, name)

	record, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !s.now().Before(record.ExpiresAt) {
		if err := s.DeletePreference(ctx, name); err != nil {
			s.logger.Warn("Failed to delete expired preference", logger.String("name", name), logger.Error(err))
		}
		return nil, nil
	}
	return record, nil
}

// ListPreferences returns every preference that has not expired
func (s *PreferenceStorage) ListPreferences(ctx context.Context) ([]*PreferenceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, updated_at, expires_at FROM preferences WHERE expires_at > ? ORDER BY name`,
		formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	var records []*PreferenceRecord
	for rows.Next() {
		record, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeletePreference removes the preference called name
func (s *PreferenceStorage) DeletePreference(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", name, err)
	}
	return nil
}

// PurgeExpired deletes every expired preference and returns how many went
func (s *PreferenceStorage) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE expires_at <= ?`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge preferences: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged preferences: %w", err)
	}
	if n > 0 {
		s.logger.Info("Purged expired preferences", logger.Int64("count", n))
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPreference scans one row into a PreferenceRecord
func scanPreference(row rowScanner) (*PreferenceRecord, error) {
	var record PreferenceRecord
	var updatedAt, expiresAt string
	if err := row.Scan(&record.Name, &record.Value, &updatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan preference: %w", err)
	}

	var err error
	record.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	record.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	return &record, nil
}
