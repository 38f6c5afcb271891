package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/voucher-flash-sale/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/voucher-flash-sale/internal/middleware" // import middleware for JWT authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check,
// used by load balancers to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes and their middleware.
// Unauthenticated operations live under /v1/auth, while protected
// endpoints live under /v1.  The jwtSecret is used to verify tokens on
// the protected group.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "CUSTOMER"))
	auth.GET("/me", a.Me)
}

// RegisterSale registers the flash-sale surface: the admin voucher
// endpoints and the buyer order endpoints.  Every route requires a
// valid access token.  The rate limiter wraps only the place-order
// route — that is the endpoint the whole user base hits at sale open,
// and the only one whose abuse can waste admission round-trips.
func RegisterSale(e *echo.Echo, v *handler.VoucherHandler, o *handler.OrderHandler, jwtSecret string, rate echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))

	// Voucher creation is restricted to admins; reading is open to any
	// authenticated user so buyers can inspect the sale window.
	g.POST("/vouchers", v.Create, middleware.RequireRole("ADMIN"))
	g.GET("/vouchers/:id", v.Get, middleware.RequireRole("ADMIN", "CUSTOMER"))

	buyers := middleware.RequireRole("ADMIN", "CUSTOMER")
	g.POST("/vouchers/:id/order", o.Place, buyers, rate)
	g.GET("/orders/:id", o.Get, buyers)
	g.GET("/orders", o.List, buyers)
}
