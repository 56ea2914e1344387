package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// Repository defines soundbar persistence. The SQLite implementation is used
// in production; tests substitute an in-memory one.
type Repository interface {
	// GetByID returns ErrSoundbarNotFound if the soundbar does not exist.
	GetByID(ctx context.Context, id string) (*Soundbar, error)

	// List returns all soundbars ordered by name.
	List(ctx context.Context) ([]Soundbar, error)

	// Upsert inserts the soundbar or replaces its identity and endpoint.
	// CreatedAt and the health fields of an existing row are kept.
	Upsert(ctx context.Context, s *Soundbar) error

	// UpdateHealth sets the health status and last seen timestamp.
	UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error

	// Delete returns ErrSoundbarNotFound if the soundbar does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectSoundbar = `
	SELECT id, name, manufacturer, model, serial, firmware, host, port,
		family, capabilities, health_status, last_seen, created_at, updated_at
	FROM soundbars`

// GetByID retrieves a soundbar by its configured ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Soundbar, error) {
	row := r.db.QueryRowContext(ctx, selectSoundbar+" WHERE id = ?", id)
	s, err := scanSoundbar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSoundbarNotFound
		}
		return nil, fmt.Errorf("querying soundbar by id: %w", err)
	}
	return s, nil
}

// List retrieves all soundbars.
func (r *SQLiteRepository) List(ctx context.Context) ([]Soundbar, error) {
	rows, err := r.db.QueryContext(ctx, selectSoundbar+" ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("querying soundbars: %w", err)
	}
	defer rows.Close()

	var soundbars []Soundbar
	for rows.Next() {
		s, err := scanSoundbar(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning soundbar: %w", err)
		}
		soundbars = append(soundbars, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating soundbars: %w", err)
	}
	return soundbars, nil
}

// Upsert inserts or updates a soundbar.
func (r *SQLiteRepository) Upsert(ctx context.Context, s *Soundbar) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Manufacturer == "" {
		s.Manufacturer = ambeo.Manufacturer
	}
	if s.HealthStatus == "" {
		s.HealthStatus = HealthUnknown
	}

	capsJSON, err := json.Marshal(capabilitiesOrEmpty(s.Capabilities))
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
		INSERT INTO soundbars (
			id, name, manufacturer, model, serial, firmware, host, port,
			family, capabilities, health_status, last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			serial = excluded.serial,
			firmware = excluded.firmware,
			host = excluded.host,
			port = excluded.port,
			family = excluded.family,
			capabilities = excluded.capabilities,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Name, s.Manufacturer, s.Model, s.Serial, s.Firmware, s.Host, s.Port,
		string(s.Family), string(capsJSON), string(s.HealthStatus), formatTimePtr(s.LastSeen),
		s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting soundbar: %w", err)
	}
	return nil
}

// UpdateHealth updates the health status and last seen timestamp.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidHealthStatus, status)
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE soundbars SET health_status = ?, last_seen = ?, updated_at = ? WHERE id = ?",
		string(status), lastSeen.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating soundbar health: %w", err)
	}
	return requireOneRow(result)
}

// Delete removes a soundbar.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM soundbars WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting soundbar: %w", err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrSoundbarNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSoundbar(row scanner) (*Soundbar, error) {
	var (
		s                    Soundbar
		family, caps, health string
		lastSeen             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Manufacturer, &s.Model, &s.Serial, &s.Firmware, &s.Host, &s.Port,
		&family, &caps, &health, &lastSeen, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Family = ambeo.Family(family)
	s.HealthStatus = HealthStatus(health)
	if err := json.Unmarshal([]byte(caps), &s.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
	}
	if lastSeen.Valid {
		if t, err := time.Parse(time.RFC3339, lastSeen.String); err == nil {
			s.LastSeen = &t
		}
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by Upsert
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by Upsert
	return &s, nil
}

func capabilitiesOrEmpty(caps []ambeo.Capability) []ambeo.Capability {
	if caps == nil {
		return []ambeo.Capability{}
	}
	return caps
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
