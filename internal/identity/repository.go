package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository reads and updates user accounts.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (User, error)
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
}

// DBRepository implements Repository on PostgreSQL.
type DBRepository struct {
	db *sql.DB
}

func NewDBRepository(db *sql.DB) *DBRepository {
	return &DBRepository{db: db}
}

const uniqueViolation = "23505"

const userColumns = "id, uuid, email, first_name, last_name, password, last_login"

func (r *DBRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.get(ctx, "email = $1", strings.ToLower(email))
}

func (r *DBRepository) GetByUUID(ctx context.Context, id uuid.UUID) (User, error) {
	return r.get(ctx, "uuid = $1", id)
}

func (r *DBRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login of user %d: %w", id, err)
	}
	return nil
}

// Create stores a new user and returns it with its id. The email address is
// stored in lower case and must be unique.
func (r *DBRepository) Create(ctx context.Context, u User) (User, error) {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	u.Email = strings.ToLower(u.Email)
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (uuid, email, first_name, last_name, password) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		u.UUID, u.Email, u.FirstName, u.LastName, u.Password).
		Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *DBRepository) get(ctx context.Context, condition string, arg any) (User, error) {
	var u User
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+condition, arg).
		Scan(&u.ID, &u.UUID, &u.Email, &u.FirstName, &u.LastName, &u.Password, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%w: %v", ErrUserNotFound, arg)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, nil
}
