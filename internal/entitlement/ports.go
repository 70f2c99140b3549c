package entitlement

import (
    "context"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// OrderItemStore is the slice of the order store this package needs:
// read access to items with their parent order, the set-once expiry
// write, and the repair scan. *repository.OrderItemRepo satisfies it.
type OrderItemStore interface {
    GetWithOrder(ctx context.Context, itemID uint64) (model.OrderItem, model.Order, error)
    EnsureDownloadExpiry(ctx context.Context, itemID uint64, candidate time.Time) (time.Time, error)
    ListNeedingIssuance(ctx context.Context) ([]uint64, error)
}

// FileCatalog is read access to the digital file catalog.
// *repository.DigitalFileRepo satisfies it.
type FileCatalog interface {
    ActiveByBook(ctx context.Context, bookID uint64) ([]model.DigitalFile, error)
}

// Ledger is the download token ledger. CreateIfAbsent and Consume
// are the two atomic operations every mutation goes through;
// *repository.DownloadRepo satisfies it.
type Ledger interface {
    TokenExists(ctx context.Context, token string) (bool, error)
    CreateIfAbsent(ctx context.Context, rec model.DigitalDownload) (bool, error)
    ClaimByToken(ctx context.Context, token string) (model.DownloadClaim, error)
    Consume(ctx context.Context, token string) (bool, error)
}
