package entitlement

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
    "github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// mintAttempts bounds the retry-with-fresh-entropy loop on token
// collisions. One attempt should always be enough.
const mintAttempts = 3

// Issuer mints download tokens for purchased digital order items.
// Issuance is idempotent per (order item, digital file) pair: a live
// token is never duplicated, so the issuer can be re-run freely at
// purchase time, from the broker consumer and from the repair
// utility.
type Issuer struct {
    items  OrderItemStore
    files  FileCatalog
    ledger Ledger
    window time.Duration    // default expiry window for first issuance
    now    func() time.Time // injected clock, UTC
}

// NewIssuer constructs an Issuer. window is the default token
// lifetime applied when an order item has no stored expiry yet.
func NewIssuer(items OrderItemStore, files FileCatalog, ledger Ledger, window time.Duration) *Issuer {
    if items == nil || files == nil || ledger == nil {
        panic("nil dependency passed to NewIssuer")
    }
    if window <= 0 {
        window = 30 * 24 * time.Hour
    }
    return &Issuer{
        items:  items,
        files:  files,
        ledger: ledger,
        window: window,
        now:    func() time.Time { return time.Now().UTC() },
    }
}

// FileFailure records a per-file issuance error. One failing file
// must not abort issuance for its siblings, so failures are
// collected and reported instead of thrown.
type FileFailure struct {
    FileID uint64
    Err    error
}

// IssueResult summarizes one issuance call.
type IssueResult struct {
    Issued      []model.DigitalDownload // tokens minted by this call
    AlreadyLive int                     // pairs skipped because a live token exists
    Failed      []FileFailure           // per-file errors, partial success
    ExpiresAt   time.Time               // shared expiry of every token on this item
}

// IssueForOrderItem determines which digital files the purchaser of
// orderItemID is entitled to and mints a ledger token for each file
// that does not already have a live one.
//
// Every token minted for one item carries the same expiry: the
// item's stored download_expires_at if present, otherwise now+window
// persisted set-once onto the item so later re-issuance reuses it
// and files purchased together always expire together.
func (i *Issuer) IssueForOrderItem(ctx context.Context, orderItemID uint64) (IssueResult, error) {
    item, order, err := i.items.GetWithOrder(ctx, orderItemID)
    if err != nil {
        if errors.Is(err, repository.ErrOrderItemNotFound) {
            return IssueResult{}, ErrOrderItemNotFound
        }
        return IssueResult{}, err
    }
    if !item.IsDigital {
        return IssueResult{}, ErrNotDigital
    }
    if !order.EligibleForDownload() {
        return IssueResult{}, ErrOrderNotEligible
    }

    files, err := i.files.ActiveByBook(ctx, item.BookID)
    if err != nil {
        return IssueResult{}, err
    }
    if len(files) == 0 {
        return IssueResult{}, fmt.Errorf("book %d: %w", item.BookID, ErrNoDigitalContent)
    }

    expiresAt, err := i.effectiveExpiry(ctx, item)
    if err != nil {
        return IssueResult{}, err
    }
    if !expiresAt.After(i.now()) {
        // The stored window has lapsed and is never recomputed, so
        // any token minted now would be dead on arrival. Mint nothing.
        log.Printf("issuer: item=%d download window lapsed at %s, nothing to mint", item.ID, expiresAt.UTC().Format(time.RFC3339))
        return IssueResult{ExpiresAt: expiresAt}, nil
    }

    res := IssueResult{ExpiresAt: expiresAt}
    for _, f := range files {
        created, rec, err := i.mintForFile(ctx, item, order.UserID, f.ID, expiresAt)
        if err != nil {
            res.Failed = append(res.Failed, FileFailure{FileID: f.ID, Err: err})
            log.Printf("issuer: item=%d file=%d mint failed: %v", item.ID, f.ID, err)
            continue
        }
        if created {
            res.Issued = append(res.Issued, rec)
        } else {
            res.AlreadyLive++
        }
    }
    return res, nil
}

// effectiveExpiry returns the expiry every token of this item must
// carry. The stored value always wins; it is written at most once
// and never recomputed, even when re-issuance happens after it has
// already passed.
func (i *Issuer) effectiveExpiry(ctx context.Context, item model.OrderItem) (time.Time, error) {
    if item.DownloadExpiresAt != nil {
        return *item.DownloadExpiresAt, nil
    }
    candidate := i.now().Add(i.window)
    stored, err := i.items.EnsureDownloadExpiry(ctx, item.ID, candidate)
    if err != nil {
        return time.Time{}, err
    }
    return stored, nil
}

// mintForFile creates one ledger row for (item, file) unless a live
// one exists. On the astronomically unlikely token collision it
// retries with fresh entropy; the ledger's unique index backs the
// pre-check.
func (i *Issuer) mintForFile(ctx context.Context, item model.OrderItem, userID, fileID uint64, expiresAt time.Time) (bool, model.DigitalDownload, error) {
    var lastErr error
    for attempt := 0; attempt < mintAttempts; attempt++ {
        token, err := newToken()
        if err != nil {
            return false, model.DigitalDownload{}, err
        }
        taken, err := i.ledger.TokenExists(ctx, token)
        if err != nil {
            return false, model.DigitalDownload{}, err
        }
        if taken {
            lastErr = fmt.Errorf("token collision on attempt %d", attempt+1)
            continue
        }
        rec := model.DigitalDownload{
            OrderItemID:   item.ID,
            DigitalFileID: fileID,
            UserID:        userID,
            DownloadToken: token,
            ExpiresAt:     expiresAt,
        }
        created, err := i.ledger.CreateIfAbsent(ctx, rec)
        if err != nil {
            if errors.Is(err, repository.ErrDuplicateToken) {
                lastErr = err
                continue
            }
            return false, model.DigitalDownload{}, err
        }
        return created, rec, nil
    }
    return false, model.DigitalDownload{}, fmt.Errorf("minting token: %w", lastErr)
}
