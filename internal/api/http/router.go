package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-api/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-api/internal/auth"
	"github.com/spec-kit/marketplace-api/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Account *handlers.AccountHandler
	Gate    *auth.Gate
	// Limiter guards the credential endpoints. Nil disables throttling.
	Limiter fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	limit := cfg.Limiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	signedIn := cfg.Gate.Authenticate()

	authGroup := app.Group("/auth")
	authGroup.Post("/register/user", limit, cfg.Auth.Register(domain.RoleUser))
	authGroup.Post("/register/vendor", limit, cfg.Auth.Register(domain.RoleVendor))
	authGroup.Post("/register/admin", cfg.Gate.Require(domain.RoleAdmin), cfg.Auth.Register(domain.RoleAdmin))
	authGroup.Post("/verify-email", limit, cfg.Auth.VerifyEmail)
	authGroup.Post("/otp/resend", limit, cfg.Auth.ResendOTP)
	authGroup.Post("/login", limit, cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/password/reset/request", limit, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", limit, cfg.Auth.ConfirmPasswordReset)

	authGroup.Get("/session", signedIn, cfg.Auth.Session)
	authGroup.Post("/password/change", signedIn, cfg.Auth.ChangePassword)
	authGroup.Delete("/account", signedIn, cfg.Auth.DeleteAccount)

	account := app.Group("/account", signedIn)
	account.Post("/profile-image/upload-url", cfg.Account.CreateUploadURL)
	account.Put("/profile-image", cfg.Account.SetProfileImage)

	app.Get("/users/me", cfg.Gate.Require(domain.RoleUser), cfg.Account.Me)
	app.Get("/vendors/me", cfg.Gate.Require(domain.RoleVendor), cfg.Account.Me)

	admin := app.Group("/admin", cfg.Gate.Require(domain.RoleAdmin))
	admin.Get("/me", cfg.Account.Me)
	admin.Patch("/vendors/:id/approval", cfg.Account.SetVendorApproval)
}
