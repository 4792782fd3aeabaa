package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/lms-auth-api/internal/database"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

// PendingSignup is a registration waiting for OTP confirmation. At most one
// exists per email.
type PendingSignup struct {
	Email        string
	Name         string
	PasswordHash string
	Role         user.Role
	InviteCode   *string
	OTP          string
	OTPExpiresAt time.Time
	CreatedAt    time.Time
}

// Repository handles pending signup persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create stores a pending signup, replacing any existing record for the email.
func (r *Repository) Create(ctx context.Context, p *PendingSignup) error {
	dbPending := &database.PendingSignup{
		Email:        p.Email,
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		Role:         string(p.Role),
		InviteCode:   p.InviteCode,
		OTP:          p.OTP,
		OTPExpiresAt: p.OTPExpiresAt,
	}

	_, err := r.db.NewInsert().
		Model(dbPending).
		ExcludeColumn("created_at").
		On("CONFLICT (email) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("password_hash = EXCLUDED.password_hash").
		Set("role = EXCLUDED.role").
		Set("invite_code = EXCLUDED.invite_code").
		Set("otp = EXCLUDED.otp").
		Set("otp_expires_at = EXCLUDED.otp_expires_at").
		Set("created_at = now()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store pending signup: %w", err)
	}
	return nil
}

// GetByEmail retrieves the pending signup for an email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*PendingSignup, error) {
	dbPending := new(database.PendingSignup)
	err := r.db.NewSelect().
		Model(dbPending).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingSignupNotFound
		}
		return nil, fmt.Errorf("failed to get pending signup: %w", err)
	}

	return &PendingSignup{
		Email:        dbPending.Email,
		Name:         dbPending.Name,
		PasswordHash: dbPending.PasswordHash,
		Role:         user.Role(dbPending.Role),
		InviteCode:   dbPending.InviteCode,
		OTP:          dbPending.OTP,
		OTPExpiresAt: dbPending.OTPExpiresAt,
		CreatedAt:    dbPending.CreatedAt,
	}, nil
}

// DeleteByEmail removes the pending signup for an email. Deleting a missing
// record is not an error.
func (r *Repository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.NewDelete().
		Model((*database.PendingSignup)(nil)).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete pending signup: %w", err)
	}
	return nil
}

// DeleteExpired removes pending signups whose OTP expired at or before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*database.PendingSignup)(nil)).
		Where("otp_expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending signups: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
