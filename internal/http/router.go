package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/lms-auth-api/internal/auth"
	"github.com/redmonkez12/lms-auth-api/internal/config"
	"github.com/redmonkez12/lms-auth-api/internal/httputil"
	"github.com/redmonkez12/lms-auth-api/internal/logging"
)

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, authHandler *auth.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true, // session cookie
			MaxAge:           300,  // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(ProxyHeaders(cfg.Server.TrustProxyHeaders))
	r.Use(logging.RequestLogger(logger))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Post("/googlesignup", authHandler.GoogleSignup)
		r.Post("/sendotp", authHandler.SendOTP)
		r.Post("/verifyotp", authHandler.VerifyOTP)
		r.Post("/resetpassword", authHandler.ResetPassword)
		r.Post("/request-signup-otp", authHandler.RequestSignupOTP)
		r.Post("/verify-signup-otp", authHandler.VerifySignupOTP)

		r.With(authMiddleware.RequireAuth).Get("/check", authHandler.Check)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, HealthResponse{Status: "ok"}, http.StatusOK)
}
