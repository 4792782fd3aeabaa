package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/lms-auth-api/internal/httputil"
	"github.com/redmonkez12/lms-auth-api/internal/logging"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

// Rate limit purposes, one fixed window each.
const (
	purposeSignup    = "signup"
	purposeLogin     = "login"
	purposeSignupOTP = "signup_otp"
	purposeResetOTP  = "reset_otp"
)

// RateLimiter throttles requests per client IP, OTP mails per email and
// wrong OTP guesses per email.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, purpose, email string) error
	CheckOTPAttempts(ctx context.Context, purpose, email string) (bool, error)
	RecordOTPFailure(ctx context.Context, purpose, email string) error
	ClearOTPAttempts(ctx context.Context, purpose, email string) error
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	rateLimiter     RateLimiter
	cookieSecure    bool
	sessionDuration time.Duration
}

func NewHandler(service *Service, rateLimiter RateLimiter, cookieSecure bool, sessionDuration time.Duration) *Handler {
	return &Handler{
		service:         service,
		rateLimiter:     rateLimiter,
		cookieSecure:    cookieSecure,
		sessionDuration: sessionDuration,
	}
}

// SignupBody represents the signup request body
type SignupBody struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	InviteCode string `json:"inviteCode"`
}

func (b SignupBody) toRequest() SignupRequest {
	return SignupRequest{
		Name:       b.Name,
		Email:      b.Email,
		Password:   b.Password,
		Role:       user.Role(b.Role),
		InviteCode: b.InviteCode,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest carries a single email address
type EmailRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest represents an OTP confirmation
type VerifyOTPRequest struct {
	Email string  `json:"email"`
	OTP   OTPCode `json:"otp" swaggertype:"string"`
}

// ResetPasswordRequest represents the new password after a verified reset code
type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CheckResponse is returned by the session check endpoint
type CheckResponse struct {
	Success       bool         `json:"success"`
	Authenticated bool         `json:"authenticated"`
	User          user.Profile `json:"user"`
}

// OTPCode accepts a code sent either as a JSON string or a JSON number.
type OTPCode string

func (c *OTPCode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = OTPCode(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = OTPCode(n.String())
	return nil
}

// SignUp handles direct registration
// @Summary      Sign up
// @Description  Create an account without email confirmation and start a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupBody true "Signup details"
// @Success      201 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "Validation error or duplicate email"
// @Failure      403 {object} httputil.ErrorResponse "Wrong educator invite code"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeSignup) {
		return
	}

	var req SignupBody
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.SignUp(r.Context(), req.toRequest())
	if err != nil {
		respondServiceError(w, logger, "signup", err)
		return
	}

	logger.Info("user signed up", "user_id", session.User.ID)
	h.startSession(w, session, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive a session cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "Unknown user, Google-only account or wrong password"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeLogin) {
		return
	}

	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, logger, "login", err)
		return
	}

	logger.Info("user logged in", "user_id", session.User.ID)
	h.startSession(w, session, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Clear the session cookie
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Router       /api/auth/logout [get]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.cookieSecure)

	userID, _ := h.optionalUserID(r)
	h.service.Logout(r.Context(), userID)

	httputil.RespondMessage(w, "logged out successfully", http.StatusOK)
}

// GoogleSignup handles login for accounts whose email Google has verified
// @Summary      Google login
// @Description  Start a session for an existing account by email. Accounts are never created here.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Google account email"
// @Success      200 {object} user.Profile
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/googlesignup [post]
func (h *Handler) GoogleSignup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeLogin) {
		return
	}

	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	session, err := h.service.GoogleLogin(r.Context(), req.Email)
	if err != nil {
		respondServiceError(w, logger, "google login", err)
		return
	}

	logger.Info("user logged in with google", "user_id", session.User.ID)
	h.startSession(w, session, http.StatusOK)
}

// SendOTP handles password reset code requests
// @Summary      Send password reset code
// @Description  Mail a 4-digit reset code to an existing account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Account email"
// @Success      200 {object} httputil.MessageResponse
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests or cooldown active"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/sendotp [post]
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeResetOTP) {
		return
	}

	var req EmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if h.emailOnCooldown(w, r, purposeResetOTP, req.Email) {
		return
	}

	if err := h.service.SendPasswordResetOTP(r.Context(), req.Email); err != nil {
		respondServiceError(w, logger, "send reset otp", err)
		return
	}

	h.startCooldown(r, purposeResetOTP, req.Email)
	h.clearOTPAttempts(r, purposeResetOTP, req.Email)
	logger.Info("password reset otp issued")
	httputil.RespondMessage(w, "OTP sent successfully", http.StatusOK)
}

// VerifyOTP handles password reset code confirmation
// @Summary      Verify password reset code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and code"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid OTP"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests or wrong codes"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/verifyotp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeResetOTP) {
		return
	}

	var req VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if h.otpLocked(w, r, purposeResetOTP, req.Email) {
		return
	}

	if err := h.service.VerifyPasswordResetOTP(r.Context(), req.Email, string(req.OTP)); err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			h.recordOTPFailure(r, purposeResetOTP, req.Email)
		}
		respondServiceError(w, logger, "verify reset otp", err)
		return
	}

	h.clearOTPAttempts(r, purposeResetOTP, req.Email)
	logger.Info("password reset otp verified")
	httputil.RespondMessage(w, "OTP verified", http.StatusOK)
}

// ResetPassword handles the final step of a password reset
// @Summary      Reset password
// @Description  Set a new password after the reset code was verified
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Weak password"
// @Failure      404 {object} httputil.ErrorResponse "OTP verification required"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/resetpassword [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		respondServiceError(w, logger, "reset password", err)
		return
	}

	logger.Info("password reset")
	httputil.RespondMessage(w, "Password reset successfully", http.StatusOK)
}

// RequestSignupOTP handles the first step of confirmed signup
// @Summary      Request signup code
// @Description  Validate the signup and mail a 6-digit confirmation code. No account is created yet.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupBody true "Signup details"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error or duplicate email"
// @Failure      403 {object} httputil.ErrorResponse "Wrong educator invite code"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests or cooldown active"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/request-signup-otp [post]
func (h *Handler) RequestSignupOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeSignupOTP) {
		return
	}

	var req SignupBody
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if h.emailOnCooldown(w, r, purposeSignupOTP, req.Email) {
		return
	}

	if err := h.service.RequestSignupOTP(r.Context(), req.toRequest()); err != nil {
		respondServiceError(w, logger, "request signup otp", err)
		return
	}

	h.startCooldown(r, purposeSignupOTP, req.Email)
	h.clearOTPAttempts(r, purposeSignupOTP, req.Email)
	logger.Info("signup otp issued")
	httputil.RespondMessage(w, "OTP sent to email", http.StatusOK)
}

// VerifySignupOTP handles the second step of confirmed signup
// @Summary      Verify signup code
// @Description  Create the account from the pending signup and start a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and code"
// @Success      201 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests or wrong codes"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/verify-signup-otp [post]
func (h *Handler) VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.ipLimited(w, r, purposeSignupOTP) {
		return
	}

	var req VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger = logger.WithFields(map[string]any{"email": req.Email})

	if h.otpLocked(w, r, purposeSignupOTP, req.Email) {
		return
	}

	session, err := h.service.VerifySignupOTP(r.Context(), req.Email, string(req.OTP))
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredOTP) {
			h.recordOTPFailure(r, purposeSignupOTP, req.Email)
		}
		respondServiceError(w, logger, "verify signup otp", err)
		return
	}

	h.clearOTPAttempts(r, purposeSignupOTP, req.Email)

	logger.Info("signup completed", "user_id", session.User.ID)
	h.startSession(w, session, http.StatusCreated)
}

// Check reports the profile behind the current session
// @Summary      Check session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} CheckResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid session"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/auth/check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	profile, err := h.service.CheckAuth(r.Context(), userID)
	if err != nil {
		respondServiceError(w, logger, "check auth", err)
		return
	}

	httputil.RespondJSON(w, CheckResponse{
		Success:       true,
		Authenticated: true,
		User:          *profile,
	}, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, session *Session, status int) {
	SetSessionCookie(w, session.Token, h.sessionDuration, h.cookieSecure)
	httputil.RespondJSON(w, session.User, status)
}

// optionalUserID reads a session if one is present. Logout works without one.
func (h *Handler) optionalUserID(r *http.Request) (uuid.UUID, bool) {
	token, err := GetSessionTokenFromCookie(r)
	if err != nil {
		return uuid.Nil, false
	}
	claims, err := h.service.tokens.VerifyToken(token)
	if err != nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// ipLimited checks and records the per-IP window. It writes the 429 itself.
// Limiter failures are logged and the request proceeds.
func (h *Handler) ipLimited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

func (h *Handler) emailOnCooldown(w http.ResponseWriter, r *http.Request, purpose, email string) bool {
	if h.rateLimiter == nil {
		return false
	}
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), purpose, email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return false
	}
	if onCooldown {
		logger.Warn("email on cooldown", "email", email, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "please wait before requesting another code", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return true
	}
	return false
}

func (h *Handler) startCooldown(r *http.Request, purpose, email string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), purpose, email); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to set email cooldown", "error", err.Error())
	}
}

// otpLocked refuses verification once the email used up its wrong guesses.
// Issuing a new code lifts the lock.
func (h *Handler) otpLocked(w http.ResponseWriter, r *http.Request, purpose, email string) bool {
	if h.rateLimiter == nil {
		return false
	}
	logger := logging.GetLoggerFromContext(r.Context())

	locked, err := h.rateLimiter.CheckOTPAttempts(r.Context(), purpose, email)
	if err != nil {
		logger.Error("failed to check otp attempts", "error", err.Error())
		return false
	}
	if locked {
		logger.Warn("otp attempts exhausted", "email", email, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many wrong codes, request a new one", httputil.CodeTooManyOTPAttempts, http.StatusTooManyRequests)
		return true
	}
	return false
}

func (h *Handler) recordOTPFailure(r *http.Request, purpose, email string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.RecordOTPFailure(r.Context(), purpose, email); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to record otp failure", "error", err.Error())
	}
}

func (h *Handler) clearOTPAttempts(r *http.Request, purpose, email string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.ClearOTPAttempts(r.Context(), purpose, email); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to clear otp attempts", "error", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logging.GetLoggerFromContext(r.Context()).Warn("invalid request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}
	return true
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{ErrDuplicateEmail, http.StatusBadRequest, httputil.CodeDuplicateEmail},
	{ErrNameRequired, http.StatusBadRequest, httputil.CodeNameRequired},
	{ErrInvalidEmail, http.StatusBadRequest, httputil.CodeInvalidEmail},
	{ErrWeakPassword, http.StatusBadRequest, httputil.CodeWeakPassword},
	{ErrInvalidRole, http.StatusBadRequest, httputil.CodeInvalidRole},
	{ErrMissingEducatorConfig, http.StatusInternalServerError, httputil.CodeMissingEducatorConfig},
	{ErrUnauthorizedRole, http.StatusForbidden, httputil.CodeUnauthorizedRole},
	{ErrInvalidOrExpiredOTP, http.StatusBadRequest, httputil.CodeInvalidOrExpiredOTP},
	{ErrInvalidOTP, http.StatusBadRequest, httputil.CodeInvalidOTP},
	{ErrUserNotFound, http.StatusNotFound, httputil.CodeUserNotFound},
	{ErrInvalidCredentials, http.StatusBadRequest, httputil.CodeInvalidCredentials},
	{ErrIncorrectPassword, http.StatusBadRequest, httputil.CodeIncorrectPassword},
	{ErrOTPVerificationRequired, http.StatusNotFound, httputil.CodeOTPVerificationRequired},
}

// respondServiceError maps a service error to its status and code. Anything
// unrecognised is an internal error and its details stay in the log.
func respondServiceError(w http.ResponseWriter, logger *logging.Logger, action string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error(action+" failed", "error", err.Error())
			} else {
				logger.Warn(action+" failed", "error", err.Error())
			}
			httputil.RespondErrorWithCode(w, m.err.Error(), m.code, m.status)
			return
		}
	}

	logger.Error(action+" failed: internal error", "error", err.Error())
	httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}

// getClientIP returns the peer address of the request. Forwarding headers are
// applied upstream by the router, and only when the proxy is trusted.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
