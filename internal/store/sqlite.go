package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/kk2215/okan-ai/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const profileColumns = `user_id, setup_state, location, prefecture, lat, lon,
	notification_time, departure_station, arrival_station, train_line,
	garbage_days, scratch, line_choices, created_at, updated_at`

// UpsertProfile inserts or replaces a profile row (last write wins).
func (r *SQLiteRepo) UpsertProfile(ctx context.Context, p *domain.UserProfile) error {
	if p == nil {
		return errors.New("nil profile")
	}

	garbage, err := marshalColumn(p.GarbageDays)
	if err != nil {
		return err
	}
	scratch, err := marshalColumn(p.Scratch)
	if err != nil {
		return err
	}
	choices, err := marshalColumn(p.LineChoices)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			setup_state       = excluded.setup_state,
			location          = excluded.location,
			prefecture        = excluded.prefecture,
			lat               = excluded.lat,
			lon               = excluded.lon,
			notification_time = excluded.notification_time,
			departure_station = excluded.departure_station,
			arrival_station   = excluded.arrival_station,
			train_line        = excluded.train_line,
			garbage_days      = excluded.garbage_days,
			scratch           = excluded.scratch,
			line_choices      = excluded.line_choices,
			updated_at        = excluded.updated_at`,
		p.UserID, p.SetupState.String(), p.Location, p.Prefecture, p.Lat, p.Lon,
		p.NotificationTime, p.DepartureStation, p.ArrivalStation, p.TrainLine,
		garbage, scratch, choices, created.Unix(), now.Unix(),
	)
	return err
}

// GetProfile returns the profile for a user id, or ErrNotFound.
func (r *SQLiteRepo) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// DeleteProfile removes a profile and its reminders.
func (r *SQLiteRepo) DeleteProfile(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE user_id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListComplete returns all profiles that finished onboarding.
func (r *SQLiteRepo) ListComplete(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE setup_state = ?`,
		domain.StateComplete.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProfile(scan func(dest ...any) error) (*domain.UserProfile, error) {
	var (
		p                         domain.UserProfile
		state                     string
		garbage, scratch, choices string
		createdAt, updatedAt      int64
	)
	if err := scan(
		&p.UserID, &state, &p.Location, &p.Prefecture, &p.Lat, &p.Lon,
		&p.NotificationTime, &p.DepartureStation, &p.ArrivalStation, &p.TrainLine,
		&garbage, &scratch, &choices, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	p.SetupState = domain.ParseSetupState(state)
	var err error
	if p.GarbageDays, err = unmarshalGarbage(garbage); err != nil {
		return nil, err
	}
	if p.Scratch, err = unmarshalScratch(scratch); err != nil {
		return nil, err
	}
	if p.LineChoices, err = unmarshalStrings(choices); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// AddReminder appends a reminder row.
func (r *SQLiteRepo) AddReminder(ctx context.Context, rem *domain.Reminder) error {
	if rem == nil {
		return errors.New("nil reminder")
	}
	created := rem.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, due_at, task, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rem.ID, rem.UserID, rem.DueAt.UTC().Unix(), rem.Task, created.Unix(),
	)
	return err
}

// ListDueReminders returns reminders due at or before now, oldest first.
func (r *SQLiteRepo) ListDueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, due_at, task, created_at
		FROM reminders
		WHERE due_at <= ?
		ORDER BY due_at ASC`,
		now.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var (
			rem            domain.Reminder
			dueAt, created int64
		)
		if err := rows.Scan(&rem.ID, &rem.UserID, &dueAt, &rem.Task, &created); err != nil {
			return nil, err
		}
		rem.DueAt = time.Unix(dueAt, 0).UTC()
		rem.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, rem)
	}
	return out, rows.Err()
}

// DeleteReminders removes reminders by id.
func (r *SQLiteRepo) DeleteReminders(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id IN (`+placeholders+`)`, args...)
	return err
}
