package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"categorywatch/internal/adapters/storage"
	domain "categorywatch/internal/domain/user"
)

// SQLiteStore implements Store over the wiki's user and user_properties tables.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new user store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a User and applies their stored preferences over the defaults.
// PRE: id > 0
// POST: Returns the user, or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := "SELECT user_id, user_name, user_real_name, user_email, user_email_authenticated FROM user WHERE user_id = ?"

	var entity domain.User
	var authenticated sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&entity.ID,
		&entity.Name,
		&entity.RealName,
		&entity.Email,
		&authenticated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	entity.EmailConfirmed = authenticated.Valid && authenticated.String != ""

	// wiki defaults for users who never touched the preference
	entity.NotifyOnWatchedChange = true
	entity.RevealAddress = false

	rows, err := s.db.QueryContext(ctx, "SELECT up_property, up_value FROM user_properties WHERE up_user = ?", id)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to load preferences for user %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return domain.User{}, fmt.Errorf("failed to scan preference for user %d: %w", id, err)
		}
		switch key {
		case domain.PrefNotifyOnWatchedChange:
			entity.NotifyOnWatchedChange = truthy(value.String)
		case domain.PrefRevealAddress:
			entity.RevealAddress = truthy(value.String)
		case domain.PrefTimeCorrection:
			entity.TimeCorrection = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return domain.User{}, fmt.Errorf("failed to read preferences for user %d: %w", id, err)
	}
	return entity, nil
}

// Save persists a User and its notification preferences.
// An already-confirmed address keeps its original confirmation time.
// PRE: entity has been validated; entity.ID > 0
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.User) error {
	if err := entity.Validate(); err != nil {
		return err
	}
	if entity.ID <= 0 {
		return fmt.Errorf("cannot save user %q without an id", entity.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var authenticated any
	if entity.EmailConfirmed {
		authenticated = time.Now().UTC().Format(time.RFC3339)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user (user_id, user_name, user_real_name, user_email, user_email_authenticated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			user_name = excluded.user_name,
			user_real_name = excluded.user_real_name,
			user_email = excluded.user_email,
			user_email_authenticated = CASE
				WHEN excluded.user_email_authenticated IS NULL THEN NULL
				ELSE COALESCE(user.user_email_authenticated, excluded.user_email_authenticated)
			END`,
		entity.ID, entity.Name, entity.RealName, entity.Email, authenticated,
	)
	if err != nil {
		return fmt.Errorf("failed to save user %d: %w", entity.ID, err)
	}

	prefs := map[string]string{
		domain.PrefNotifyOnWatchedChange: boolValue(entity.NotifyOnWatchedChange),
		domain.PrefRevealAddress:         boolValue(entity.RevealAddress),
		domain.PrefTimeCorrection:        entity.TimeCorrection,
	}
	for key, value := range prefs {
		if err := setOption(ctx, tx, entity.ID, key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetOption writes a single preference.
// PRE: the user exists
// POST: The preference is inserted or replaced
func (s *SQLiteStore) SetOption(ctx context.Context, id int64, key, value string) error {
	return setOption(ctx, s.db, id, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setOption(ctx context.Context, db execer, id int64, key, value string) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR REPLACE INTO user_properties (up_user, up_property, up_value) VALUES (?, ?, ?)",
		id, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set %s for user %d: %w", key, id, err)
	}
	return nil
}

func truthy(v string) bool {
	return v != "" && v != "0"
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
