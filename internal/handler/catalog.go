// This file defines the public catalog browse handlers. These routes
// let unauthenticated users list active books and their downloadable
// renditions. Storage URLs and inactive entries are filtered from
// responses; only the admin surface sees those.

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// CatalogHandler aggregates repositories for unauthenticated browsing.
type CatalogHandler struct {
	Books *repository.BookRepo
	Files *repository.DigitalFileRepo
}

// PublicBook represents a book exposed via the public API. It
// contains only safe fields.
type PublicBook struct {
	ID     uint64 `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// PublicFile represents a downloadable rendition in the public
// catalog. The storage URL stays server-side; customers reach bytes
// only through redeemed tokens.
type PublicFile struct {
	ID        uint64 `json:"id"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	SizeBytes uint64 `json:"size_bytes"`
}

// ListBooks returns every active book, ordered by title.
func (h *CatalogHandler) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := h.Books.List(ctx, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := lo.Map(books, func(b model.Book, _ int) PublicBook {
		return PublicBook{ID: b.ID, Title: b.Title, Author: b.Author}
	})
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListBookFiles returns the active renditions of one book. It
// validates the book exists and is visible before listing.
func (h *CatalogHandler) ListBookFiles(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !b.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
	}
	files, err := h.Files.ActiveByBook(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := lo.Map(files, func(f model.DigitalFile, _ int) PublicFile {
		return PublicFile{ID: f.ID, Format: f.Format, Language: f.Language, SizeBytes: f.SizeBytes}
	})
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
