package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/cache"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/entitlement"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// TokenIssuer mints ledger tokens for an order item. Satisfied by
// *entitlement.Issuer.
type TokenIssuer interface {
	IssueForOrderItem(ctx context.Context, orderItemID uint64) (entitlement.IssueResult, error)
}

// RepairRunner executes one ledger reconciliation pass. Satisfied by
// *entitlement.Repairer.
type RepairRunner interface {
	Run(ctx context.Context) (entitlement.RepairSummary, error)
}

// OrderItemExpander resolves an order to its digital item ids.
// Satisfied by *repository.OrderItemRepo.
type OrderItemExpander interface {
	DigitalItemIDsByOrder(ctx context.Context, orderID uint64) ([]uint64, error)
}

// FileGetter loads file metadata for issue responses. Satisfied by
// *repository.DigitalFileRepo.
type FileGetter interface {
	GetByID(ctx context.Context, id uint64) (model.DigitalFile, error)
}

// AdminDownloadHandler serves the operator endpoints: manual token
// issuance and the ledger repair pass.
type AdminDownloadHandler struct {
	Issuer   TokenIssuer
	Repairer RepairRunner
	Items    OrderItemExpander
	Files    FileGetter
	Cache    cache.Store
}

func NewAdminDownloadHandler(issuer TokenIssuer, repairer RepairRunner, items OrderItemExpander, files FileGetter, store cache.Store) *AdminDownloadHandler {
	if issuer == nil || repairer == nil || items == nil || files == nil || store == nil {
		panic("nil dependency passed to NewAdminDownloadHandler")
	}
	return &AdminDownloadHandler{Issuer: issuer, Repairer: repairer, Items: items, Files: files, Cache: store}
}

type issueReq struct {
	OrderItemID uint64 `json:"order_item_id"`
	OrderID     uint64 `json:"order_id"`
}

type issuedToken struct {
	Token     string    `json:"token"`
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expires_at"`
}

type issueItemResp struct {
	OrderItemID uint64        `json:"order_item_id"`
	Issued      []issuedToken `json:"issued"`
	AlreadyLive int           `json:"already_live"`
	FailedFiles []uint64      `json:"failed_file_ids,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Error       string        `json:"error,omitempty"`
}

// Issue handles POST /v1/admin/digital-downloads/issue. The body
// names either a single order_item_id or an order_id; the latter is
// expanded to every digital item of that order. Issuance is
// idempotent, so re-posting the same body is safe. Expanded orders
// report per item: a failing line is recorded next to its siblings'
// tokens instead of aborting the request.
func (h *AdminDownloadHandler) Issue(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if (req.OrderItemID == 0) == (req.OrderID == 0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide exactly one of order_item_id, order_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	itemIDs := []uint64{req.OrderItemID}
	if req.OrderID != 0 {
		var err error
		itemIDs, err = h.Items.DigitalItemIDsByOrder(ctx, req.OrderID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(itemIDs) == 0 {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order has no digital items"})
		}
	}

	out := make([]issueItemResp, 0, len(itemIDs))
	for _, id := range itemIDs {
		res, err := h.Issuer.IssueForOrderItem(ctx, id)
		if err != nil {
			if req.OrderItemID != 0 {
				return h.issueError(c, id, err)
			}
			// Siblings may already hold fresh tokens; record the
			// failure in place rather than hiding them behind an
			// error status.
			log.Printf("admin issue: item=%d failed: %v", id, err)
			_, msg := issueStatus(err)
			out = append(out, issueItemResp{OrderItemID: id, Error: msg})
			continue
		}
		out = append(out, h.renderIssued(ctx, id, res))
		h.invalidateListings(ctx, res.Issued)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// issueStatus maps issuer sentinels to an admin-facing status and
// message. Unlike the customer redemption route there is no reason
// to collapse denials here; operators get the precise cause.
func issueStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entitlement.ErrOrderItemNotFound):
		return http.StatusNotFound, "order item not found"
	case errors.Is(err, entitlement.ErrNotDigital):
		return http.StatusBadRequest, "order item is not digital"
	case errors.Is(err, entitlement.ErrOrderNotEligible):
		return http.StatusConflict, "order not paid"
	case errors.Is(err, entitlement.ErrNoDigitalContent):
		return http.StatusConflict, "book has no active files"
	default:
		return http.StatusInternalServerError, "issuance failed"
	}
}

func (h *AdminDownloadHandler) issueError(c echo.Context, itemID uint64, err error) error {
	code, msg := issueStatus(err)
	if code == http.StatusInternalServerError {
		log.Printf("admin issue: item=%d failed: %v", itemID, err)
	}
	return c.JSON(code, echo.Map{"error": msg})
}

func (h *AdminDownloadHandler) renderIssued(ctx context.Context, itemID uint64, res entitlement.IssueResult) issueItemResp {
	resp := issueItemResp{
		OrderItemID: itemID,
		Issued:      make([]issuedToken, 0, len(res.Issued)),
		AlreadyLive: res.AlreadyLive,
		ExpiresAt:   res.ExpiresAt,
		FailedFiles: lo.Map(res.Failed, func(f entitlement.FileFailure, _ int) uint64 { return f.FileID }),
	}
	for _, rec := range res.Issued {
		tok := issuedToken{Token: rec.DownloadToken, ExpiresAt: rec.ExpiresAt}
		if f, err := h.Files.GetByID(ctx, rec.DigitalFileID); err == nil {
			tok.FileName = f.FileName
			tok.Format = f.Format
		}
		resp.Issued = append(resp.Issued, tok)
	}
	return resp
}

// invalidateListings drops the cached "my downloads" payload of every
// user that just received tokens.
func (h *AdminDownloadHandler) invalidateListings(ctx context.Context, issued []model.DigitalDownload) {
	for _, uid := range lo.Uniq(lo.Map(issued, func(d model.DigitalDownload, _ int) uint64 { return d.UserID })) {
		h.Cache.Delete(ctx, ListCacheKey(uid))
	}
}

// Repair handles POST /v1/admin/digital-downloads/repair: one full
// reconciliation pass over incompletely issued items.
func (h *AdminDownloadHandler) Repair(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	summary, err := h.Repairer.Run(ctx)
	if err != nil {
		log.Printf("admin repair: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "repair failed"})
	}
	return c.JSON(http.StatusOK, summary)
}
