package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/config"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/handler"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check, used by load balancers and monitoring to verify the service
// is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication routes and applies the
// necessary middleware. Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token on every call.
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh_token in the body and does not require
	// a JWT; a stolen access token alone cannot keep a session alive.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "CUSTOMER"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalog browse
// endpoints. Responses are sanitized for guests and served through
// the Redis response cache when one is configured.
func RegisterPublic(e *echo.Echo, p *handler.CatalogHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group("/v1", middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("/books", p.ListBooks)
	g.GET("/books/:id/files", p.ListBookFiles)
}
