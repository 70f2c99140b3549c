package model

import "time"

// Order statuses.  An order becomes eligible for digital delivery
// once payment has been confirmed; DELIVERED orders stay eligible so
// customers can re-fetch their files.
const (
    OrderStatusPending   = "PENDING"
    OrderStatusPaid      = "PAID"
    OrderStatusDelivered = "DELIVERED"
    OrderStatusCancelled = "CANCELLED"
)

// Order is the read model of a customer order as stored in the
// `orders` table.  This service never mutates orders beyond the
// delivery bookkeeping on individual items; everything else belongs
// to the storefront.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – customer who placed the order.
//  Status      – order status (PENDING, PAID, DELIVERED, CANCELLED).
//  CreatedAt   – timestamp of creation.
//  DeliveredAt – when fulfillment completed (null until then).
type Order struct {
    ID          uint64     // orders.id
    UserID      uint64     // orders.user_id
    Status      string     // orders.status
    CreatedAt   time.Time  // orders.created_at
    DeliveredAt *time.Time // orders.delivered_at (nullable)
}

// EligibleForDownload reports whether the order has reached a
// fulfillment state that grants access to digital content.  Minting
// requires confirmed payment; pending and cancelled orders never
// qualify.
func (o Order) EligibleForDownload() bool {
    return o.Status == OrderStatusPaid || o.Status == OrderStatusDelivered
}

// OrderItem is one line of an order as stored in the `order_items`
// table.  An item references either a physical product or a digital
// book; the IsDigital flag decides which, so BookID is only
// meaningful when IsDigital is true.
//
// Fields:
//  ID                – primary key identifier.
//  OrderID           – parent order.
//  BookID            – referenced book when the item is digital.
//  IsDigital         – whether this line grants file downloads.
//  Quantity          – purchased quantity.
//  MaxDownloads      – redemption quota per token (null = unlimited).
//  DownloadExpiresAt – shared expiry for every token minted for this
//                      item.  Null until first issuance, then written
//                      exactly once and never recomputed.
type OrderItem struct {
    ID                uint64     // order_items.id
    OrderID           uint64     // order_items.order_id
    BookID            uint64     // order_items.book_id (0 for physical items)
    IsDigital         bool       // order_items.is_digital
    Quantity          uint32     // order_items.quantity
    MaxDownloads      *uint32    // order_items.max_downloads (nullable)
    DownloadExpiresAt *time.Time // order_items.download_expires_at (nullable)
}
