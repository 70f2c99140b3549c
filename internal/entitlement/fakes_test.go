package entitlement

import (
    "context"
    "sync"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
    "github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

// In-memory fakes for the three ports. They reproduce the ledger's
// contractual behavior (live-pair idempotency, token uniqueness,
// conditional consume) so the business rules can be exercised
// without MySQL.

type fakeItems struct {
    mu      sync.Mutex
    items   map[uint64]model.OrderItem
    orders  map[uint64]model.Order
    needing []uint64

    expiryWrites int // how many times EnsureDownloadExpiry actually wrote
}

func newFakeItems() *fakeItems {
    return &fakeItems{
        items:  map[uint64]model.OrderItem{},
        orders: map[uint64]model.Order{},
    }
}

func (s *fakeItems) add(item model.OrderItem, order model.Order) {
    s.items[item.ID] = item
    s.orders[item.OrderID] = order
}

func (s *fakeItems) GetWithOrder(_ context.Context, itemID uint64) (model.OrderItem, model.Order, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    item, ok := s.items[itemID]
    if !ok {
        return model.OrderItem{}, model.Order{}, repository.ErrOrderItemNotFound
    }
    return item, s.orders[item.OrderID], nil
}

func (s *fakeItems) EnsureDownloadExpiry(_ context.Context, itemID uint64, candidate time.Time) (time.Time, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    item, ok := s.items[itemID]
    if !ok {
        return time.Time{}, repository.ErrOrderItemNotFound
    }
    if item.DownloadExpiresAt == nil {
        t := candidate
        item.DownloadExpiresAt = &t
        s.items[itemID] = item
        s.expiryWrites++
    }
    return *item.DownloadExpiresAt, nil
}

func (s *fakeItems) ListNeedingIssuance(context.Context) ([]uint64, error) {
    return s.needing, nil
}

type fakeCatalog struct {
    files map[uint64][]model.DigitalFile
}

func (c *fakeCatalog) ActiveByBook(_ context.Context, bookID uint64) ([]model.DigitalFile, error) {
    return c.files[bookID], nil
}

type fileMeta struct {
    name, format, url string
}

type fakeLedger struct {
    mu      sync.Mutex
    rows    map[string]*model.DigitalDownload // by token
    maxBy   map[uint64]*uint32                // quota by order item id
    meta    map[uint64]fileMeta               // file metadata by file id
    now     func() time.Time

    takenFirst   int              // force the next N TokenExists calls to report a collision
    createErrFor map[uint64]error // injected CreateIfAbsent failure per file id
    consumeDeny  bool             // force the conditional consume to report no rows
}

func newFakeLedger(now func() time.Time) *fakeLedger {
    return &fakeLedger{
        rows:  map[string]*model.DigitalDownload{},
        maxBy: map[uint64]*uint32{},
        meta:  map[uint64]fileMeta{},
        now:   now,
    }
}

func (l *fakeLedger) TokenExists(_ context.Context, token string) (bool, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.takenFirst > 0 {
        l.takenFirst--
        return true, nil
    }
    _, ok := l.rows[token]
    return ok, nil
}

func (l *fakeLedger) CreateIfAbsent(_ context.Context, rec model.DigitalDownload) (bool, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if err := l.createErrFor[rec.DigitalFileID]; err != nil {
        return false, err
    }
    if _, ok := l.rows[rec.DownloadToken]; ok {
        return false, repository.ErrDuplicateToken
    }
    now := l.now()
    for _, r := range l.rows {
        if r.OrderItemID == rec.OrderItemID && r.DigitalFileID == rec.DigitalFileID && now.Before(r.ExpiresAt) {
            return false, nil
        }
    }
    r := rec
    r.CreatedAt = now
    l.rows[rec.DownloadToken] = &r
    return true, nil
}

func (l *fakeLedger) ClaimByToken(_ context.Context, token string) (model.DownloadClaim, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    r, ok := l.rows[token]
    if !ok {
        return model.DownloadClaim{}, repository.ErrTokenNotFound
    }
    m := l.meta[r.DigitalFileID]
    return model.DownloadClaim{
        DigitalDownload: *r,
        MaxDownloads:    l.maxBy[r.OrderItemID],
        FileName:        m.name,
        Format:          m.format,
        StorageURL:      m.url,
    }, nil
}

func (l *fakeLedger) Consume(_ context.Context, token string) (bool, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.consumeDeny {
        return false, nil
    }
    r, ok := l.rows[token]
    if !ok {
        return false, nil
    }
    now := l.now()
    if !now.Before(r.ExpiresAt) {
        return false, nil
    }
    if max := l.maxBy[r.OrderItemID]; max != nil && r.DownloadCount >= *max {
        return false, nil
    }
    r.DownloadCount++
    if r.DownloadedAt == nil {
        t := now
        r.DownloadedAt = &t
    }
    return true, nil
}

// rowCount reports the total ledger size, dead rows included.
func (l *fakeLedger) rowCount() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.rows)
}

// liveCount reports how many rows are still redeemable, across all pairs.
func (l *fakeLedger) liveCount() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    n := 0
    now := l.now()
    for _, r := range l.rows {
        if now.Before(r.ExpiresAt) {
            n++
        }
    }
    return n
}
