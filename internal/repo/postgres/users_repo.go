package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, username, passwordHash string) (user.User, error) {
	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.prom.ObserveDB("users.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (id, username, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			u.ID, u.Username, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})
	if err != nil {
		// uniqueness is enforced by the index, not by a prior lookup
		if pgCode(err) == pgUniqueViolation {
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username",
		`SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE username = $1`,
		username,
	)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id",
		`SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1`,
		id,
	)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	var affected int64

	err := r.prom.ObserveDB("users.update_password", func() error {
		tag, e := r.pool.Exec(ctx,
			`UPDATE users
			SET password_hash = $2,
				updated_at = NOW()
			WHERE id = $1`,
			id, passwordHash,
		)
		affected = tag.RowsAffected()
		return e
	})
	if err != nil {
		if isMalformedID(err) {
			return user.ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	if affected == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&u.ID,
			&u.Username,
			&u.PasswordHash,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}
