package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/config"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/handler"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/middleware"
)

// RegisterDownloads registers customer download endpoints under /v1.
// All routes require a valid JWT; ownership of the individual token
// is enforced inside the redemption gate, not here.
//
// The redemption route additionally sits behind the Redis token
// bucket: download tokens are guessable only by brute force and the
// limiter prices that out.
func RegisterDownloads(e *echo.Echo, h *handler.DownloadHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN", "CUSTOMER"),
	)
	g.GET("/download/:token", h.Redeem, middleware.NewTokenBucket(rlCfg, rdb))
	g.GET("/downloads", h.MyDownloads)
}
