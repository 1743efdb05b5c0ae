package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`create table if not exists principals (
		id bigserial primary key,
		username text not null,
		email text not null,
		password_hash text null,
		permissions bigint not null default 0,
		active boolean not null default true,
		auth_type smallint not null default 1,
		token_version bigint not null default 0,
		external_identity text null,
		domain text null,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now(),
		last_login_at timestamptz null
	)`,
	`create unique index if not exists principals_username_key on principals (username)`,
	`create unique index if not exists principals_email_key on principals (email)`,
	`create unique index if not exists principals_external_identity_idx on principals (external_identity) where external_identity is not null`,
}

// Migrate applies the principal schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate principals step %d: %w", i, err)
		}
	}
	return nil
}
