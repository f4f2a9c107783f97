package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

const userColumns = `id, email, name, password_hash, google_id, role, is_verified,
	verification_token, verification_expires, reset_token, reset_expires, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A taken email is an AlreadyExists error.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.Name, u.PasswordHash, u.GoogleID, u.Role, u.IsVerified,
		u.VerificationToken, u.VerificationExpires, u.ResetToken, u.ResetExpires, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "lower(email)", email)
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.getBy(ctx, "google_id", googleID)
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	return r.getBy(ctx, "verification_token", tokenHash)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	return r.getBy(ctx, "reset_token", tokenHash)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	arg := "$1"
	if column == "lower(email)" {
		arg = "lower($1)"
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ` + arg

	u, err := scanUser(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", value)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update rewrites every mutable column.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	ct, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $1, name = $2, password_hash = $3, google_id = $4, role = $5, is_verified = $6,
		    verification_token = $7, verification_expires = $8, reset_token = $9, reset_expires = $10, updated_at = $11
		WHERE id = $12`,
		u.Email, u.Name, u.PasswordHash, u.GoogleID, u.Role, u.IsVerified,
		u.VerificationToken, u.VerificationExpires, u.ResetToken, u.ResetExpires, u.UpdatedAt, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// List returns one page of users, newest first.
func (r *UserRepository) List(ctx context.Context, page pagination.Params) ([]domain.User, int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`, count(*) OVER() AS total_count
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	var total int
	for rows.Next() {
		u, err := scanUser(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, total, nil
}

func scanUser(row pgx.Row, extra ...any) (*domain.User, error) {
	var u domain.User
	dest := []any{
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.GoogleID, &u.Role, &u.IsVerified,
		&u.VerificationToken, &u.VerificationExpires, &u.ResetToken, &u.ResetExpires, &u.CreatedAt, &u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &u, nil
}
