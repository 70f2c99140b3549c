package entitlement

import (
    "context"
    "errors"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
    "github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// Gate validates and serves download redemption requests. Each token
// walks a small state machine: unknown, owned-by-someone-else,
// expired and quota-exhausted are terminal denials; otherwise the
// redemption is counted atomically and the file grant returned.
type Gate struct {
    ledger Ledger
    now    func() time.Time
}

// NewGate constructs a redemption Gate over the given ledger.
func NewGate(ledger Ledger) *Gate {
    if ledger == nil {
        panic("nil ledger passed to NewGate")
    }
    return &Gate{
        ledger: ledger,
        now:    func() time.Time { return time.Now().UTC() },
    }
}

// Grant is a successful redemption: the file the caller may now
// fetch. StorageURL points into the object store/CDN; the handler
// signs and redirects, the bytes never pass through this service.
type Grant struct {
    FileName   string
    Format     string
    StorageURL string
    ExpiresAt  time.Time
    FirstUse   bool // true when this redemption set downloaded_at
}

// Redeem validates token for userID and, when every check passes,
// counts the redemption. Denial order matters: existence, then
// ownership, then expiry, then quota. An attacker probing with a
// foreign identity learns nothing beyond "not available", because
// the handler collapses ErrUnknownToken and ErrOwnershipMismatch to
// the same response.
//
// The quota check here is advisory; the authoritative
// check-and-increment is the ledger's conditional Consume, so two
// concurrent redemptions of a one-shot token resolve to exactly one
// success.
func (g *Gate) Redeem(ctx context.Context, token string, userID uint64) (Grant, error) {
    claim, err := g.ledger.ClaimByToken(ctx, token)
    if err != nil {
        if errors.Is(err, repository.ErrTokenNotFound) {
            return Grant{}, ErrUnknownToken
        }
        return Grant{}, err
    }
    if claim.UserID != userID {
        return Grant{}, ErrOwnershipMismatch
    }
    now := g.now()
    if !claim.Live(now) {
        return Grant{}, ErrExpired
    }
    if quotaExhausted(claim) {
        return Grant{}, ErrQuotaExhausted
    }

    ok, err := g.ledger.Consume(ctx, token)
    if err != nil {
        return Grant{}, err
    }
    if !ok {
        // Lost a race between the checks above and the conditional
        // update: either the quota was taken by a concurrent request
        // or the token crossed its expiry. Re-read to classify.
        return Grant{}, g.classifyDenied(ctx, token)
    }
    return Grant{
        FileName:   claim.FileName,
        Format:     claim.Format,
        StorageURL: claim.StorageURL,
        ExpiresAt:  claim.ExpiresAt,
        FirstUse:   claim.DownloadedAt == nil,
    }, nil
}

func quotaExhausted(c model.DownloadClaim) bool {
    return c.MaxDownloads != nil && c.DownloadCount >= *c.MaxDownloads
}

// classifyDenied decides which denial a failed conditional consume
// maps to. Defaults to quota exhaustion, the only way to lose the
// race while the token looked live a moment ago.
func (g *Gate) classifyDenied(ctx context.Context, token string) error {
    claim, err := g.ledger.ClaimByToken(ctx, token)
    if err != nil {
        if errors.Is(err, repository.ErrTokenNotFound) {
            return ErrUnknownToken
        }
        return err
    }
    if !claim.Live(g.now()) {
        return ErrExpired
    }
    return ErrQuotaExhausted
}
