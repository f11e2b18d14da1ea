package repository

import (
	"context"
	"errors"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/social-auth/internal/common/db"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	"github.com/AlibekovAA/social-auth/internal/user/domain"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

type Repository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	UpdateLastActive(ctx context.Context, id domain.ID, at time.Time) error
}

const userColumns = `id, email, username, password_hash, first_name, last_name, display_name,
	bio, profile_image, cover_image, website, location, birth_date,
	is_verified, is_private, is_active, last_active_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	op := db.UserOp("create user")
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO users (id, email, username, password_hash, first_name, last_name, display_name, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		 RETURNING `+userColumns,
		string(user.ID),
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.DisplayName,
	)

	created, err := scanUser(row)
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case emailConstraint:
			op.Observe(start)
			return domain.User{}, ErrEmailAlreadyExists
		case usernameConstraint:
			op.Observe(start)
			return domain.User{}, ErrUsernameAlreadyExists
		}
	}
	if err := op.Finish(start, err, nil); err != nil {
		return domain.User{}, err
	}
	return created, nil
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, "find user by email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.findOne(ctx, "find user by username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	return r.findOne(ctx, "find user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
}

func (r *PgRepository) findOne(ctx context.Context, name, query string, arg any) (domain.User, error) {
	op := db.UserOp(name)

	var user domain.User
	err := db.RetryWithBackoff(ctx, r.log, db.DefaultRetryConfig, func() error {
		start := time.Now()
		found, err := scanUser(r.pool.QueryRow(ctx, query, arg))
		if err := op.Finish(start, err, ErrUserNotFound); err != nil {
			return err
		}
		user = found
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) UpdateLastActive(ctx context.Context, id domain.ID, at time.Time) error {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE users SET last_active_at = $2, updated_at = $2 WHERE id = $1`,
		string(id),
		at,
	)
	if err := db.UserOp("update user last active").Finish(start, err, nil); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u  domain.User
		id string
	)
	err := row.Scan(
		&id,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.DisplayName,
		&u.Bio,
		&u.ProfileImage,
		&u.CoverImage,
		&u.Website,
		&u.Location,
		&u.BirthDate,
		&u.IsVerified,
		&u.IsPrivate,
		&u.IsActive,
		&u.LastActiveAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	u.ID = domain.ID(id)
	return u, err
}
