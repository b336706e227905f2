// Package postgres implements the user store on a self-hosted users table,
// for deployments that keep the directory out of DynamoDB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/authcore-io/authcore/internal/auth"
)

const pgErrUniqueViolation = "23505"

// Store is the PostgreSQL-backed auth.UserStore.
type Store struct {
	db *sql.DB
}

var _ auth.UserStore = (*Store)(nil)

// Open connects with pool settings suited to a small stateless service.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool so readiness probes can ping it.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetByID(ctx context.Context, id string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, user_name, email, organization_id, organization_name, roles
		from users
		where id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) ListByOrganization(ctx context.Context, orgID string) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_name, email, organization_id, organization_name, roles
		from users
		where organization_id = $1
		order by user_name
	`, orgID)
	if err != nil {
		return nil, auth.ErrUpstream.With(fmt.Errorf("list organization %s: %w", orgID, err))
	}
	defer rows.Close()

	users := make([]auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.ErrUpstream.With(fmt.Errorf("list organization %s: %w", orgID, err))
	}
	return users, nil
}

func (s *Store) Put(ctx context.Context, user auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, user_name, email, organization_id, organization_name, roles)
		values ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Name, user.Email, user.OrganizationID, user.OrganizationName, user.Roles.Encode())
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrUserAlreadyExists
		}
		return auth.ErrUpstream.With(fmt.Errorf("insert user %s: %w", user.ID, err))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, user auth.User) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users
		set user_name = $1, email = $2, organization_name = $3, roles = $4
		where id = $5 and organization_id = $6
		returning id, user_name, email, organization_id, organization_name, roles
	`, user.Name, user.Email, user.OrganizationName, user.Roles.Encode(), user.ID, user.OrganizationID)
	return scanUser(row)
}

func (s *Store) Delete(ctx context.Context, id, orgID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from users where id = $1 and organization_id = $2
	`, id, orgID)
	if err != nil {
		return auth.ErrUpstream.With(fmt.Errorf("delete user %s: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) FindOrganizationIDByName(ctx context.Context, name string) (string, error) {
	var orgID string
	err := s.db.QueryRowContext(ctx, `
		select organization_id from users where organization_name = $1 limit 1
	`, name).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", auth.ErrUpstream.With(fmt.Errorf("find organization %q: %w", name, err))
	}
	return orgID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u     auth.User
		roles string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.OrganizationID, &u.OrganizationName, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, auth.ErrUpstream.With(fmt.Errorf("scan user row: %w", err))
	}
	decoded, err := auth.DecodeRoleSet(roles)
	if err != nil {
		return auth.User{}, auth.ErrUpstream.With(fmt.Errorf("decode stored roles: %w", err))
	}
	u.Roles = decoded
	return u, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
