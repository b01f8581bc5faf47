package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/domain"
	"github.com/spec-kit/hotel-booking/internal/persistence"
)

const uniqueViolation = "23505"

// dummyHash is compared against when the email is unknown so that both
// outcomes spend a bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("unknown-account", bcrypt.DefaultCost) //nolint:errcheck // constant input
	return hash
})

// UserRepository resolves accounts and verifies their passwords.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	VerifyPassword(ctx context.Context, email, plaintext string) (bool, error)
}

type userRepository struct {
	db persistence.DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db persistence.DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        WITH inserted AS (
            INSERT INTO users (email, password_hash)
            VALUES ($1, $2)
            RETURNING id, created_at, updated_at
        ), roles AS (
            INSERT INTO user_roles (user_id, role, position)
            SELECT inserted.id, r.role, r.ord - 1
            FROM inserted, unnest($3::text[]) WITH ORDINALITY AS r(role, ord)
        )
        SELECT id, created_at, updated_at FROM inserted`

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		roles,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return storageError("create user", err)
	}
	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT u.id, u.email, u.password_hash, u.created_at, u.updated_at,
               COALESCE(array_agg(r.role ORDER BY r.position) FILTER (WHERE r.role IS NOT NULL), '{}') AS roles
        FROM users u
        LEFT JOIN user_roles r ON r.user_id = u.id
        WHERE u.email=$1
        GROUP BY u.id`

	var user domain.User
	if err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Roles,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageError("find user", err)
	}
	return &user, nil
}

// VerifyPassword reports false for unknown emails as well as wrong passwords.
func (r *userRepository) VerifyPassword(ctx context.Context, email, plaintext string) (bool, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_, _ = auth.PasswordMatches(dummyHash(), plaintext)
			return false, nil
		}
		return false, err
	}
	return auth.PasswordMatches(user.PasswordHash, plaintext)
}
