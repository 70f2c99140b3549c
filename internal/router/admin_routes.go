package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/handler"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /v1/admin. All
// routes require a valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, d *handler.AdminDownloadHandler, cat *handler.AdminCatalogHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)

	// Ledger operations: manual issuance and the reconciliation pass.
	g.POST("/digital-downloads/issue", d.Issue)
	g.POST("/digital-downloads/repair", d.Repair)

	// Catalog management.
	g.POST("/books", cat.CreateBook)
	g.PATCH("/books/:id", cat.UpdateBook)
	g.GET("/books/:id/files", cat.ListFiles)
	g.POST("/books/:id/files", cat.CreateFile)
	g.PATCH("/files/:id", cat.SetFileActive)
}
