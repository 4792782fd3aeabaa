package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name              string     `bun:"name,notnull"`
	Email             string     `bun:"email,notnull,unique"`
	PasswordHash      *string    `bun:"password_hash"`
	Role              string     `bun:"role,notnull"`
	PhotoURL          *string    `bun:"photo_url"`
	InviteCode        *string    `bun:"invite_code"`
	ResetOTP          *string    `bun:"reset_otp"`
	ResetOTPExpiresAt *time.Time `bun:"reset_otp_expires_at"`
	IsOTPVerified     bool       `bun:"is_otp_verified,notnull,default:false"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// PendingSignup is the bun model for the pending_signups table.
type PendingSignup struct {
	bun.BaseModel `bun:"table:pending_signups,alias:ps"`

	Email        string    `bun:"email,pk"`
	Name         string    `bun:"name,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	InviteCode   *string   `bun:"invite_code"`
	OTP          string    `bun:"otp,notnull"`
	OTPExpiresAt time.Time `bun:"otp_expires_at,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
