package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"house-points-service/internal/domain"
)

// Identity is the local account provider: a users table with unique
// emails, uuid ids, and bcrypt password hashes. It stands in for a hosted
// identity service behind the same narrow interface.
type Identity struct {
	pool *pgxpool.Pool
}

func NewIdentity(pool *pgxpool.Pool) *Identity {
	return &Identity{pool: pool}
}

func (i *Identity) CreateUser(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	tag, err := i.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, lower($2), $3)
		ON CONFLICT (email) DO NOTHING
	`, id, email, string(hash))
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", domain.ErrUserExists
	}
	return id, nil
}

func (i *Identity) FindUserByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := i.pool.QueryRow(ctx, `SELECT id FROM users WHERE email=lower($1)`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	return id, nil
}
