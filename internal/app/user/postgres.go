package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, email, name, major, year, avatar, skills, interests, bio, online`

// PostgresDirectory is a Directory over the profiles table. Only the online flag is ever written.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

var (
	_ Directory = (*PostgresDirectory)(nil)
	_ Presence  = (*PostgresDirectory)(nil)
)

// NewPostgresDirectory wraps a connection pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Resolve implements Directory.
func (d *PostgresDirectory) Resolve(ctx context.Context, id string) (User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("resolve %q: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("resolve %q: %w", id, err)
	}
	return u, nil
}

// List implements Directory.
func (d *PostgresDirectory) List(ctx context.Context) ([]User, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return users, nil
}

// SetOnline implements Presence.
func (d *PostgresDirectory) SetOnline(ctx context.Context, id string, online bool) error {
	if _, err := d.pool.Exec(ctx, `UPDATE profiles SET online = $2 WHERE id = $1`, id, online); err != nil {
		return fmt.Errorf("set online %q: %w", id, err)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Major, &u.Year, &u.Avatar, &u.Skills, &u.Interests, &u.Bio, &u.Online)
	return u, err
}
