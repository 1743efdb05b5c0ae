package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/principal"
)

const uniqueViolation = "23505"

const selectColumns = `select id, username, email, coalesce(password_hash, ''), permissions, active, auth_type,
	token_version, coalesce(external_identity, ''), coalesce(domain, ''), created_at, updated_at, last_login_at
	from principals`

// Store is a [principal.Store] backed by PostgreSQL through database/sql.
type Store struct {
	db *sql.DB
}

var _ principal.Store = (*Store)(nil)

// Open connects with the pgx stdlib driver and applies pool defaults.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping principal db: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetByID(ctx context.Context, id int64) (principal.Principal, error) {
	return s.one(ctx, selectColumns+` where id = $1`, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (principal.Principal, error) {
	return s.one(ctx, selectColumns+` where username = $1`, username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (principal.Principal, error) {
	return s.one(ctx, selectColumns+` where email = $1`, email)
}

func (s *Store) GetByExternalIdentity(ctx context.Context, identity string) (principal.Principal, error) {
	return s.one(ctx, selectColumns+` where external_identity = $1`, identity)
}

func (s *Store) one(ctx context.Context, query string, arg any) (principal.Principal, error) {
	var (
		p         principal.Principal
		perms     int64
		authType  int16
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &perms, &p.Active, &authType,
		&p.TokenVersion, &p.ExternalIdentity, &p.Domain, &p.CreatedAt, &p.UpdatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return principal.Principal{}, principal.ErrNotFound
	}
	if err != nil {
		return principal.Principal{}, err
	}
	p.Permissions = permission.Mask(uint64(perms))
	p.AuthType = principal.AuthType(authType)
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLoginAt = &t
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	err := s.db.QueryRowContext(ctx, `
		insert into principals (username, email, password_hash, permissions, active, auth_type, external_identity, domain)
		values ($1, $2, nullif($3, ''), $4, $5, $6, nullif($7, ''), nullif($8, ''))
		returning id, token_version, created_at, updated_at
	`, p.Username, p.Email, p.PasswordHash, int64(p.Permissions.Raw()), p.Active, int16(p.AuthType), p.ExternalIdentity, p.Domain,
	).Scan(&p.ID, &p.TokenVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return principal.Principal{}, mapUnique(err)
	}
	return p, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.exec(ctx, `update principals set password_hash = $2, updated_at = now() where id = $1`, id, hash)
}

func (s *Store) UpdatePermissions(ctx context.Context, id int64, mask permission.Mask) error {
	return s.exec(ctx, `update principals set permissions = $2, updated_at = now() where id = $1`, id, int64(mask.Raw()))
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.exec(ctx, `update principals set active = $2, updated_at = now() where id = $1`, id, active)
}

func (s *Store) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	return s.exec(ctx, `update principals set last_login_at = $2 where id = $1`, id, at)
}

func (s *Store) IncrementTokenVersion(ctx context.Context, id int64) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `
		update principals set token_version = token_version + 1, updated_at = now()
		where id = $1
		returning token_version
	`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, principal.ErrNotFound
	}
	return v, err
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return principal.ErrNotFound
	}
	return nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "principals_username_key":
		return principal.ErrDuplicateUsername
	case "principals_email_key":
		return principal.ErrDuplicateEmail
	case "principals_external_identity_idx":
		return principal.ErrDuplicateExternalIdentity
	default:
		return principal.ErrDuplicate
	}
}
