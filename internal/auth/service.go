package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/lms-auth-api/internal/email"
	"github.com/redmonkez12/lms-auth-api/internal/logging"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

const (
	maxEmailLen      = 254
	maxLabelLen      = 63
	notifyTimeout    = 30 * time.Second
	defaultOTPDigits = 6
)

// UserStore is the persistence the service needs for accounts.
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	SetResetOTP(ctx context.Context, id uuid.UUID, otp string, expiresAt time.Time) error
	MarkOTPVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ClearExpiredResetOTPs(ctx context.Context, now time.Time) (int64, error)
}

// PendingSignupStore keeps at most one pending signup per email.
type PendingSignupStore interface {
	Create(ctx context.Context, p *PendingSignup) error
	GetByEmail(ctx context.Context, email string) (*PendingSignup, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Notifier delivers OTP codes to users.
type Notifier interface {
	SendOTP(ctx context.Context, toEmail, otp string, purpose email.Purpose) error
}

// Options tune the service. Zero values fall back to the production defaults.
type Options struct {
	EducatorInviteCode string
	SessionDuration    time.Duration
	OTPTTL             time.Duration
	SignupOTPDigits    int
	ResetOTPDigits     int
	BcryptCost         int
}

func (o Options) withDefaults() Options {
	if o.SessionDuration <= 0 {
		o.SessionDuration = 7 * 24 * time.Hour
	}
	if o.OTPTTL <= 0 {
		o.OTPTTL = 5 * time.Minute
	}
	if o.SignupOTPDigits <= 0 {
		o.SignupOTPDigits = defaultOTPDigits
	}
	if o.ResetOTPDigits <= 0 {
		o.ResetOTPDigits = 4
	}
	if o.BcryptCost <= 0 {
		o.BcryptCost = 10
	}
	return o
}

// SignupRequest carries the fields shared by direct and OTP signup.
type SignupRequest struct {
	Name       string
	Email      string
	Password   string
	Role       user.Role
	InviteCode string
}

// Session is the result of every operation that logs a user in.
type Session struct {
	User      user.Profile
	Token     string
	ExpiresAt time.Time
}

// Service handles authentication business logic
type Service struct {
	users     UserStore
	pending   PendingSignupStore
	tokens    TokenService
	notifier  Notifier
	logger    *logging.Logger
	opts      Options
	signupOTP OTPGenerator
	resetOTP  OTPGenerator
	now       func() time.Time
}

func NewService(
	users UserStore,
	pending PendingSignupStore,
	tokens TokenService,
	notifier Notifier,
	logger *logging.Logger,
	opts Options,
) *Service {
	opts = opts.withDefaults()
	return &Service{
		users:     users,
		pending:   pending,
		tokens:    tokens,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		signupOTP: NewOTPGenerator(opts.SignupOTPDigits),
		resetOTP:  NewOTPGenerator(opts.ResetOTPDigits),
		now:       time.Now,
	}
}

// RequestSignupOTP validates a registration, parks it as a pending signup and
// mails a confirmation code. No account exists until VerifySignupOTP succeeds.
func (s *Service) RequestSignupOTP(ctx context.Context, req SignupRequest) error {
	role, err := s.validateSignup(ctx, &req)
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return err
	}

	otp, err := s.signupOTP.Generate()
	if err != nil {
		return err
	}

	if err := s.pending.DeleteByEmail(ctx, req.Email); err != nil {
		return err
	}

	p := &PendingSignup{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         role,
		InviteCode:   inviteCodeFor(role, req.InviteCode),
		OTP:          otp,
		OTPExpiresAt: s.now().Add(s.opts.OTPTTL),
	}
	if err := s.pending.Create(ctx, p); err != nil {
		return err
	}

	s.deliverOTP(req.Email, otp, email.PurposeSignup)
	return nil
}

// VerifySignupOTP promotes a pending signup into a user and starts a session.
func (s *Service) VerifySignupOTP(ctx context.Context, emailAddr, otp string) (*Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	p, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrPendingSignupNotFound) {
			return nil, ErrInvalidOrExpiredOTP
		}
		return nil, err
	}

	if !signupOTPMatches(p.OTP, otp) || !s.now().Before(p.OTPExpiresAt) {
		return nil, ErrInvalidOrExpiredOTP
	}

	hash := p.PasswordHash
	created, err := s.users.Create(ctx, &user.User{
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: &hash,
		Role:         p.Role,
		InviteCode:   p.InviteCode,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			// Already promoted, by a replay after a failed cleanup or a direct
			// signup. Either way this code is spent.
			s.discardPending(ctx, emailAddr)
			return nil, ErrInvalidOrExpiredOTP
		}
		return nil, err
	}

	if err := s.pending.DeleteByEmail(ctx, emailAddr); err != nil {
		// The account exists, so the leftover record is only noise for the sweeper.
		s.logger.Warn("failed to delete pending signup", "email", emailAddr, "error", err)
	}

	s.logger.Info("signup verified", "user_id", created.ID, "role", created.Role)
	return s.issueSession(created)
}

// SignUp creates an account without email confirmation.
func (s *Service) SignUp(ctx context.Context, req SignupRequest) (*Session, error) {
	role, err := s.validateSignup(ctx, &req)
	if err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, &user.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: &hash,
		Role:         role,
		InviteCode:   inviteCodeFor(role, req.InviteCode),
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", created.ID, "role", created.Role)
	return s.issueSession(created)
}

// Login authenticates an email and password pair.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Accounts created through Google have no password.
	if !existing.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if !verifyPassword(*existing.PasswordHash, password) {
		return nil, ErrIncorrectPassword
	}

	return s.issueSession(existing)
}

// GoogleLogin signs in an account whose email was verified by Google.
// The email is trusted as-is; verifying the Google credential is the caller's job.
func (s *Service) GoogleLogin(ctx context.Context, emailAddr string) (*Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.issueSession(existing)
}

// Logout has no server-side state to revoke; the transport clears the cookie.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) {
	logging.GetLoggerFromContext(ctx).Info("user logged out", "user_id", userID)
}

// CheckAuth returns the profile behind an authenticated session.
func (s *Service) CheckAuth(ctx context.Context, userID uuid.UUID) (*user.Profile, error) {
	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	profile := existing.Profile()
	return &profile, nil
}

// SendPasswordResetOTP stores a fresh reset code on the account and mails it.
// Any earlier code is replaced and the verified flag is cleared.
func (s *Service) SendPasswordResetOTP(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	otp, err := s.resetOTP.Generate()
	if err != nil {
		return err
	}

	if err := s.users.SetResetOTP(ctx, existing.ID, otp, s.now().Add(s.opts.OTPTTL)); err != nil {
		return err
	}

	s.deliverOTP(existing.Email, otp, email.PurposePasswordReset)
	return nil
}

// VerifyPasswordResetOTP checks a reset code and, on success, marks the
// account as allowed to set a new password.
func (s *Service) VerifyPasswordResetOTP(ctx context.Context, emailAddr, otp string) error {
	emailAddr = normalizeEmail(emailAddr)
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOTP
		}
		return err
	}

	if existing.ResetOTP == nil || existing.ResetOTPExpiresAt == nil {
		return ErrInvalidOTP
	}
	if !resetOTPMatches(*existing.ResetOTP, otp) || !s.now().Before(*existing.ResetOTPExpiresAt) {
		return ErrInvalidOTP
	}

	return s.users.MarkOTPVerified(ctx, existing.ID)
}

// ResetPassword sets a new password after a successful reset code check.
// The verified flag is consumed so the code cannot be reused.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrOTPVerificationRequired
		}
		return err
	}
	if !existing.IsOTPVerified {
		return ErrOTPVerificationRequired
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, existing.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password reset", "user_id", existing.ID)
	return nil
}

// validateSignup runs the shared signup checks in order and returns the
// effective role. An empty role means student. The request is normalized in
// place so callers store the trimmed name and lowercased email.
func (s *Service) validateSignup(ctx context.Context, req *SignupRequest) (user.Role, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return "", ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return "", err
	}

	if !validEmail(req.Email) {
		return "", ErrInvalidEmail
	}
	if req.Name == "" {
		return "", ErrNameRequired
	}
	if err := validatePassword(req.Password); err != nil {
		return "", err
	}

	role := req.Role
	if role == "" {
		role = user.RoleStudent
	}

	if role == user.RoleEducator {
		if s.opts.EducatorInviteCode == "" {
			return "", ErrMissingEducatorConfig
		}
		if req.InviteCode != s.opts.EducatorInviteCode {
			return "", ErrUnauthorizedRole
		}
	}

	if !role.Valid() {
		return "", ErrInvalidRole
	}

	return role, nil
}

func (s *Service) issueSession(u *user.User) (*Session, error) {
	token, err := s.tokens.CreateToken(u.ID, u.Role, s.opts.SessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &Session{
		User:      u.Profile(),
		Token:     token,
		ExpiresAt: s.now().Add(s.opts.SessionDuration),
	}, nil
}

// deliverOTP sends the code in the background. Failures are logged and never
// reach the caller.
func (s *Service) deliverOTP(to, otp string, purpose email.Purpose) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		ctx = logging.WithLogger(ctx, s.logger)

		if err := s.notifier.SendOTP(ctx, to, otp, purpose); err != nil {
			s.logger.Warn("failed to send otp email", "email", to, "purpose", purpose, "error", err)
		}
	}()
}

// discardPending drops a pending signup whose code can no longer be used.
func (s *Service) discardPending(ctx context.Context, emailAddr string) {
	if err := s.pending.DeleteByEmail(ctx, emailAddr); err != nil {
		s.logger.Warn("failed to delete pending signup", "email", emailAddr, "error", err)
	}
}

// normalizeEmail is applied before every lookup and insert, so stores and
// rate limit keys agree on one spelling per mailbox.
func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// validEmail accepts a bare addr-spec whose domain is a dotted hostname with
// an alphabetic TLD. Address literals and single-label hosts are rejected.
func validEmail(addr string) bool {
	if addr == "" || len(addr) > maxEmailLen {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}

	at := strings.LastIndexByte(addr, '@')
	return validDomain(addr[at+1:])
}

func validDomain(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}

	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, c := range tld {
		if !isLetter(c) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLen {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, c := range label {
		if !isLetter(c) && !('0' <= c && c <= '9') && c != '-' {
			return false
		}
	}
	return true
}

func isLetter(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func inviteCodeFor(role user.Role, code string) *string {
	if role != user.RoleEducator || code == "" {
		return nil
	}
	return &code
}
