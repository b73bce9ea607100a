package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"webgate/internal/person/models"
	id "webgate/pkg/domain"
	"webgate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Schema creates the people table. Applied by Migrate at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS people (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL,
	password_hash     BYTEA,
	language          TEXT NOT NULL DEFAULT '',
	active            BOOLEAN NOT NULL DEFAULT FALSE,
	admin             BOOLEAN NOT NULL DEFAULT FALSE,
	last_logged_in_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS people_email_lower_idx ON people (lower(email));
`

const selectColumns = `id, name, email, password_hash, language, active, admin, last_logged_in_at, created_at, updated_at`

// PostgresStore persists people in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed person store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate people: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM people WHERE id = $1`, uuid.UUID(personID))
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM people WHERE lower(email) = lower($1)`, email)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person by email: %w", err)
	}
	return p, nil
}

// Save upserts the person by id.
func (s *PostgresStore) Save(ctx context.Context, person *models.Person) error {
	query := `
		INSERT INTO people (id, name, email, password_hash, language, active, admin, last_logged_in_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			language = EXCLUDED.language,
			active = EXCLUDED.active,
			admin = EXCLUDED.admin,
			last_logged_in_at = EXCLUDED.last_logged_in_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(person.ID),
		person.Name,
		person.Email,
		person.PasswordHash,
		person.Language,
		person.Active,
		person.Admin,
		nullTime(person.LastLoggedInAt),
		person.CreatedAt,
		person.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

// TouchActivity updates only last_logged_in_at.
func (s *PostgresStore) TouchActivity(ctx context.Context, personID id.PersonID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE people SET last_logged_in_at = $2 WHERE id = $1`,
		uuid.UUID(personID), at,
	)
	if err != nil {
		return fmt.Errorf("touch person activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch person activity: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Count returns the number of stored people.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM people`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p         models.Person
		rawID     uuid.UUID
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&p.Name,
		&p.Email,
		&p.PasswordHash,
		&p.Language,
		&p.Active,
		&p.Admin,
		&lastLogin,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PersonID(rawID)
	if lastLogin.Valid {
		p.LastLoggedInAt = lastLogin.Time
	}
	return &p, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
