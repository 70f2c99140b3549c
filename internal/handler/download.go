package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/cache"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/entitlement"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/objectstore"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// Redeemer validates a download token for a user and counts the
// redemption. Satisfied by *entitlement.Gate.
type Redeemer interface {
	Redeem(ctx context.Context, token string, userID uint64) (entitlement.Grant, error)
}

// DownloadLister returns a customer's download history. Satisfied by
// *repository.DownloadRepo.
type DownloadLister interface {
	ListByUser(ctx context.Context, userID uint64) ([]repository.UserDownload, error)
}

// DownloadHandler serves the customer-facing download endpoints.
type DownloadHandler struct {
	Gate      Redeemer
	Downloads DownloadLister
	Signer    *objectstore.Signer
	Cache     cache.Store
}

// listTTL bounds staleness of the cached "my downloads" listing.
// Issuance paths invalidate on write; the TTL only covers writers
// this service does not see.
const listTTL = 30 * time.Second

func NewDownloadHandler(gate Redeemer, downloads DownloadLister, signer *objectstore.Signer, store cache.Store) *DownloadHandler {
	if gate == nil || downloads == nil || signer == nil || store == nil {
		panic("nil dependency passed to NewDownloadHandler")
	}
	return &DownloadHandler{Gate: gate, Downloads: downloads, Signer: signer, Cache: store}
}

// Redeem handles GET /v1/download/:token. On success the redemption
// is counted and the client is redirected to a short-lived signed
// storage URL; the file bytes never pass through this service.
//
// Denials are collapsed on the wire: an unknown token and a token
// owned by another user produce the same 404, so the endpoint cannot
// be used as a token-existence oracle. The precise reason goes to the
// server log only.
func (h *DownloadHandler) Redeem(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	grant, err := h.Gate.Redeem(ctx, token, uid)
	if err != nil {
		switch {
		case errors.Is(err, entitlement.ErrUnknownToken),
			errors.Is(err, entitlement.ErrOwnershipMismatch):
			log.Printf("download: user=%d denied: %v", uid, err)
			return c.JSON(http.StatusNotFound, echo.Map{"error": "download not available"})
		case errors.Is(err, entitlement.ErrExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "download link expired"})
		case errors.Is(err, entitlement.ErrQuotaExhausted):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "download limit reached"})
		default:
			log.Printf("download: user=%d redeem failed: %v", uid, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "download failed"})
		}
	}

	signed, err := h.Signer.SignURL(grant.StorageURL)
	if err != nil {
		log.Printf("download: user=%d sign url failed: %v", uid, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "download failed"})
	}
	return c.Redirect(http.StatusFound, signed)
}

// downloadItem is one row of the "my downloads" response.
type downloadItem struct {
	Token         string     `json:"token"`
	FileName      string     `json:"file_name"`
	Format        string     `json:"format"`
	ExpiresAt     time.Time  `json:"expires_at"`
	DownloadedAt  *time.Time `json:"downloaded_at,omitempty"`
	DownloadCount uint32     `json:"download_count"`
	Expired       bool       `json:"expired"`
}

// MyDownloads handles GET /v1/downloads: the caller's full download
// history, newest first, expired entries included and flagged. The
// rendered payload is cached per user.
func (h *DownloadHandler) MyDownloads(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key := ListCacheKey(uid)
	if bs, ok := h.Cache.Get(ctx, key); ok {
		return c.JSONBlob(http.StatusOK, bs)
	}

	rows, err := h.Downloads.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	now := time.Now().UTC()
	items := lo.Map(rows, func(d repository.UserDownload, _ int) downloadItem {
		return downloadItem{
			Token:         d.Token,
			FileName:      d.FileName,
			Format:        d.Format,
			ExpiresAt:     d.ExpiresAt,
			DownloadedAt:  d.DownloadedAt,
			DownloadCount: d.DownloadCount,
			Expired:       !now.Before(d.ExpiresAt),
		}
	})

	bs, err := json.Marshal(echo.Map{"items": items})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encode failed"})
	}
	h.Cache.Set(ctx, key, bs, listTTL)
	return c.JSONBlob(http.StatusOK, bs)
}

// ListCacheKey names the cached listing of one user. The admin issue
// endpoint and the order.paid consumer delete it after minting new
// tokens.
func ListCacheKey(userID uint64) string {
	return "downloads:user:" + strconv.FormatUint(userID, 10)
}
