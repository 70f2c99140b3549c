package model

import "time"

// DigitalDownload is one row of the download ledger as stored in the
// `digital_downloads` table.  Each row ties a single (order item,
// digital file) pair to the user who may redeem it and carries the
// unguessable token handed to the customer.  Rows are never deleted:
// expiry is a read-time check against ExpiresAt, which preserves the
// audit trail of every token ever minted.
//
// Fields:
//  ID            – primary key identifier.
//  OrderItemID   – purchased line that grants this download.
//  DigitalFileID – file the token unlocks.
//  UserID        – customer allowed to redeem the token.
//  DownloadToken – 64-char hex token, unique across the ledger.
//  ExpiresAt     – when the token stops being redeemable.
//  DownloadedAt  – first successful redemption (null until then).
//  DownloadCount – number of successful redemptions so far.
//  CreatedAt     – timestamp of issuance.
type DigitalDownload struct {
    ID            uint64     // digital_downloads.id
    OrderItemID   uint64     // digital_downloads.order_item_id
    DigitalFileID uint64     // digital_downloads.digital_file_id
    UserID        uint64     // digital_downloads.user_id
    DownloadToken string     // digital_downloads.download_token
    ExpiresAt     time.Time  // digital_downloads.expires_at
    DownloadedAt  *time.Time // digital_downloads.downloaded_at (nullable)
    DownloadCount uint32     // digital_downloads.download_count
    CreatedAt     time.Time  // digital_downloads.created_at
}

// Live reports whether the token is still redeemable at the given
// instant, ignoring quota.  Expiry is inclusive: a token whose
// ExpiresAt equals now is already dead.
func (d DigitalDownload) Live(now time.Time) bool {
    return now.Before(d.ExpiresAt)
}

// DownloadClaim is a ledger row joined with everything the redemption
// gate needs to decide and to serve: the per-item quota and the file
// the token unlocks.
type DownloadClaim struct {
    DigitalDownload
    MaxDownloads *uint32 // order_items.max_downloads (nil = unlimited)
    FileName     string  // digital_files.file_name
    Format       string  // digital_files.format
    StorageURL   string  // digital_files.storage_url
}
