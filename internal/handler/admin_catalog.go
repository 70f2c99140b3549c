package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// AdminCatalogHandler bundles the repositories admins use to manage
// the book catalog and its digital files.
type AdminCatalogHandler struct {
	Books *repository.BookRepo
	Files *repository.DigitalFileRepo
}

func NewAdminCatalogHandler(books *repository.BookRepo, files *repository.DigitalFileRepo) *AdminCatalogHandler {
	if books == nil || files == nil {
		panic("nil repository passed to NewAdminCatalogHandler")
	}
	return &AdminCatalogHandler{Books: books, Files: files}
}

type bookReq struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	IsActive *bool  `json:"is_active"`
}

type fileReq struct {
	Format     string `json:"format"`
	Language   string `json:"language"`
	FileName   string `json:"file_name"`
	StorageURL string `json:"storage_url"`
	SizeBytes  uint64 `json:"size_bytes"`
	IsActive   *bool  `json:"is_active"`
}

type fileActiveReq struct {
	IsActive *bool `json:"is_active"`
}

// CreateBook handles POST /v1/admin/books.
func (h *AdminCatalogHandler) CreateBook(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" || req.Author == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title/author required"})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Books.Create(ctx, req.Title, req.Author, active)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create book failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// UpdateBook handles PATCH /v1/admin/books/:id. Omitted fields keep
// their current value.
func (h *AdminCatalogHandler) UpdateBook(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		b.Title = t
	}
	if a := strings.TrimSpace(req.Author); a != "" {
		b.Author = a
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := h.Books.Update(ctx, id, b.Title, b.Author, b.IsActive); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update book failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFiles handles GET /v1/admin/books/:id/files: every rendition of
// a book, inactive ones included.
func (h *AdminCatalogHandler) ListFiles(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Books.GetByID(ctx, id); err != nil {
		if err == repository.ErrBookNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	files, err := h.Files.ListByBook(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	type adminFile struct {
		ID         uint64    `json:"id"`
		Format     string    `json:"format"`
		Language   string    `json:"language"`
		FileName   string    `json:"file_name"`
		StorageURL string    `json:"storage_url"`
		SizeBytes  uint64    `json:"size_bytes"`
		IsActive   bool      `json:"is_active"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]adminFile, 0, len(files))
	for _, f := range files {
		out = append(out, adminFile{
			ID: f.ID, Format: f.Format, Language: f.Language, FileName: f.FileName,
			StorageURL: f.StorageURL, SizeBytes: f.SizeBytes, IsActive: f.IsActive, CreatedAt: f.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// CreateFile handles POST /v1/admin/books/:id/files. New files start
// active unless the body says otherwise; already purchased copies of
// the book pick the file up on the next issuance or repair run.
func (h *AdminCatalogHandler) CreateFile(c echo.Context) error {
	bookID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req fileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Format = strings.ToUpper(strings.TrimSpace(req.Format))
	if !model.ValidFormat(req.Format) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid format"})
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.StorageURL = strings.TrimSpace(req.StorageURL)
	if req.FileName == "" || req.StorageURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_name/storage_url required"})
	}
	if req.Language == "" {
		req.Language = "en"
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Books.GetByID(ctx, bookID); err != nil {
		if err == repository.ErrBookNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	id, err := h.Files.Create(ctx, model.DigitalFile{
		BookID:     bookID,
		Format:     req.Format,
		Language:   req.Language,
		FileName:   req.FileName,
		StorageURL: req.StorageURL,
		SizeBytes:  req.SizeBytes,
		IsActive:   active,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create file failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// SetFileActive handles PATCH /v1/admin/files/:id. Deactivating a
// file stops new issuance only; tokens already minted against it
// remain redeemable until they expire.
func (h *AdminCatalogHandler) SetFileActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req fileActiveReq
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_active required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Files.SetActive(ctx, id, *req.IsActive); err != nil {
		if err == repository.ErrFileNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update file failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
