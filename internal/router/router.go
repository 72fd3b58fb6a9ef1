// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/stayfinder/stayfinder/internal/config"
	"github.com/stayfinder/stayfinder/internal/handler"
	"github.com/stayfinder/stayfinder/internal/middleware"
	"github.com/stayfinder/stayfinder/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me and /v1/auth/logout require a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints.  The
// search endpoint sits behind the Redis response cache when one is
// configured.
func RegisterPublic(e *echo.Echo, p *handler.PublicListingHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/v1/listings", p.Search, middleware.NewRedisCache(cacheCfg, rdb))
	e.GET("/v1/listings/:id", p.Get)
	e.GET("/v1/listings/:id/availability", p.CheckAvailability)
}

// RegisterBookings registers the booking lifecycle endpoints.  All of
// them require authentication.  Guest-side actions (create, cancel,
// payment, review) are open to both roles because hosts may book
// other hosts' listings; the service checks booking ownership.  The
// approve/decline and complete transitions additionally require the
// HOST role.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	g.POST("/bookings", b.Create)
	g.GET("/bookings/my-bookings", b.ListMine)
	g.GET("/bookings/host-bookings", b.ListReceived, middleware.RequireRole(model.RoleHost))
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id", b.Update)
	g.PATCH("/bookings/:id/status", b.UpdateStatus, middleware.RequireRole(model.RoleHost))
	g.PATCH("/bookings/:id/cancel", b.Cancel)
	g.PATCH("/bookings/:id/payment", b.RecordPayment)
	g.PATCH("/bookings/:id/complete", b.Complete, middleware.RequireRole(model.RoleHost))
	g.POST("/bookings/:id/review", b.AddReview)
}

// RegisterListings registers the host-side listing management
// endpoints.  Every route requires the HOST role.
func RegisterListings(e *echo.Echo, l *handler.ListingHandler, jwtSecret string) {
	g := e.Group("/v1/host/listings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHost))

	g.POST("", l.Create)
	g.GET("", l.ListMine)
	g.PUT("/:id", l.Update)
	g.DELETE("/:id", l.Deactivate)
	g.POST("/:id/blackouts", l.AddBlackout)
	g.GET("/:id/blackouts", l.ListBlackouts)
	g.DELETE("/:id/blackouts/:blackoutID", l.DeleteBlackout)
}
