package auth

import "errors"

var (
	ErrDuplicateEmail          = errors.New("email already exists")
	ErrInvalidEmail            = errors.New("please enter a valid email")
	ErrNameRequired            = errors.New("name is required")
	ErrWeakPassword            = errors.New("password must be between 8 and 72 bytes long")
	ErrMissingEducatorConfig   = errors.New("educator signup is not configured")
	ErrUnauthorizedRole        = errors.New("not authorized to sign up as educator")
	ErrInvalidRole             = errors.New("invalid role specified")
	ErrInvalidOrExpiredOTP     = errors.New("invalid or expired otp")
	ErrInvalidOTP              = errors.New("invalid otp")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidCredentials      = errors.New("user does not exist or has no password, use google login")
	ErrIncorrectPassword       = errors.New("incorrect password")
	ErrOTPVerificationRequired = errors.New("otp verification required")

	ErrPendingSignupNotFound = errors.New("pending signup not found")
)
