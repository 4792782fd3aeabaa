package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeTooManyOTPAttempts = "TOO_MANY_OTP_ATTEMPTS"

	CodeDuplicateEmail          = "DUPLICATE_EMAIL"
	CodeNameRequired            = "NAME_REQUIRED"
	CodeInvalidEmail            = "INVALID_EMAIL"
	CodeWeakPassword            = "WEAK_PASSWORD"
	CodeInvalidRole             = "INVALID_ROLE"
	CodeMissingEducatorConfig   = "MISSING_EDUCATOR_CONFIG"
	CodeUnauthorizedRole        = "UNAUTHORIZED_ROLE"
	CodeInvalidOrExpiredOTP     = "INVALID_OR_EXPIRED_OTP"
	CodeInvalidOTP              = "INVALID_OTP"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeIncorrectPassword       = "INCORRECT_PASSWORD"
	CodeOTPVerificationRequired = "OTP_VERIFICATION_REQUIRED"

	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
)
