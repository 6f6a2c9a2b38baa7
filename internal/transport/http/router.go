package http

import (
	"net/http"

	"github.com/go-account-api/internal/application/notification"
	"github.com/go-account-api/internal/application/otp"
	"github.com/go-account-api/internal/application/session"
	"github.com/go-account-api/internal/application/user"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/handler"
	appmiddleware "github.com/go-account-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	notifier := otp.NewNotifier(otp.NotifierDeps{
		Mailer:       deps.Mailer,
		SMSSender:    deps.SMSSender,
		AuditRepo:    deps.NotificationRepo,
		ResetBaseURL: cfg.ResetLinkBaseURL,
		OTPTTL:       cfg.OTPTTL,
		ResetTTL:     cfg.ResetTokenTTL,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		OTPRepo:  deps.OTPRepo,
		Signer:   deps.JWTProvider,
		OTPTTL:   cfg.OTPTTL,
		ResetTTL: cfg.ResetTokenTTL,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		OTPService:  otpSvc,
		Notifier:    notifier,
		Avatars:     deps.S3Store,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		UserRepo:    deps.UserRepo,
		Accounts:    userSvc,
		JWTProvider: deps.JWTProvider,
		RefreshTTL:  cfg.RefreshTokenTTL,
	})
	notifSvc := notification.NewService(deps.NotificationRepo)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	verifyH := handler.NewVerificationHandler(userSvc)
	pwH := handler.NewPasswordRecoveryHandler(userSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	avatarH := handler.NewAvatarHandler(userSvc)
	emailH := handler.NewEmailHandler(notifier)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/verify-otp", verifyH.VerifyOTP)
		r.With(sensitiveRL.Limit).Post("/resend-otp", verifyH.ResendOTP)
		r.With(sensitiveRL.Limit).Post("/password-recovery/forgot", pwH.Forgot)
		r.With(sensitiveRL.Limit).Post("/password-recovery/reset", pwH.Reset)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/users/change-password", userH.ChangePassword)
			r.Post("/users/{id}/avatar", avatarH.Upload)
			r.Get("/users/{id}/avatar", avatarH.Get)

			r.Get("/notifications", notifH.ListUnread)
			r.Put("/notifications/{id}", notifH.MarkAsRead)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)
				r.Post("/emails/send", emailH.Send)
			})
		})
	})

	return r
}
