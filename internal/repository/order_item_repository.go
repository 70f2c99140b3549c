package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// OrderItemRepo provides read access to orders and order_items plus
// the single write this service is allowed to make against them:
// setting download_expires_at exactly once per item. Everything else
// about orders belongs to the storefront.
type OrderItemRepo struct {
    db *sql.DB
}

// NewOrderItemRepo returns a new OrderItemRepo bound to the provided database.
func NewOrderItemRepo(db *sql.DB) *OrderItemRepo { return &OrderItemRepo{db: db} }

// GetWithOrder loads an order item together with its parent order.
// Returns ErrOrderItemNotFound when the id does not exist.
func (r *OrderItemRepo) GetWithOrder(ctx context.Context, itemID uint64) (model.OrderItem, model.Order, error) {
    var (
        item         model.OrderItem
        order        model.Order
        bookID       sql.NullInt64
        maxDownloads sql.NullInt64
        expiresAt    sql.NullTime
        deliveredAt  sql.NullTime
    )
    err := r.db.QueryRowContext(ctx,
        `SELECT oi.id, oi.order_id, oi.book_id, oi.is_digital, oi.quantity, oi.max_downloads, oi.download_expires_at,
                o.id, o.user_id, o.status, o.created_at, o.delivered_at
         FROM order_items oi
         JOIN orders o ON o.id = oi.order_id
         WHERE oi.id = ?
         LIMIT 1`,
        itemID).Scan(
        &item.ID, &item.OrderID, &bookID, &item.IsDigital, &item.Quantity, &maxDownloads, &expiresAt,
        &order.ID, &order.UserID, &order.Status, &order.CreatedAt, &deliveredAt)
    if errors.Is(err, sql.ErrNoRows) {
        return model.OrderItem{}, model.Order{}, ErrOrderItemNotFound
    }
    if err != nil {
        return model.OrderItem{}, model.Order{}, err
    }
    if bookID.Valid {
        item.BookID = uint64(bookID.Int64)
    }
    if maxDownloads.Valid {
        m := uint32(maxDownloads.Int64)
        item.MaxDownloads = &m
    }
    if expiresAt.Valid {
        t := expiresAt.Time
        item.DownloadExpiresAt = &t
    }
    if deliveredAt.Valid {
        t := deliveredAt.Time
        order.DeliveredAt = &t
    }
    return item, order, nil
}

// EnsureDownloadExpiry persists candidate as the item's shared token
// expiry unless one is already stored, and returns the effective
// stored value either way. The write is conditional on the column
// still being NULL, so two concurrent issuance calls that computed
// different defaults converge on whichever landed first; the loser
// reads the winner's value back. The stored expiry is never
// recomputed after this point, even long after it has passed.
func (r *OrderItemRepo) EnsureDownloadExpiry(ctx context.Context, itemID uint64, candidate time.Time) (time.Time, error) {
    _, err := r.db.ExecContext(ctx,
        `UPDATE order_items SET download_expires_at = ?
         WHERE id = ? AND download_expires_at IS NULL`,
        candidate.UTC().Format("2006-01-02 15:04:05"), itemID)
    if err != nil {
        return time.Time{}, err
    }
    var stored sql.NullTime
    err = r.db.QueryRowContext(ctx,
        `SELECT download_expires_at FROM order_items WHERE id = ? LIMIT 1`,
        itemID).Scan(&stored)
    if errors.Is(err, sql.ErrNoRows) {
        return time.Time{}, ErrOrderItemNotFound
    }
    if err != nil {
        return time.Time{}, err
    }
    if !stored.Valid {
        // column cannot be NULL after the conditional write above
        return time.Time{}, errors.New("download_expires_at unset after write")
    }
    return stored.Time, nil
}

// DigitalItemIDsByOrder returns the ids of every digital line in the
// given order. The order.paid consumer feeds these to the issuer.
func (r *OrderItemRepo) DigitalItemIDsByOrder(ctx context.Context, orderID uint64) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id FROM order_items WHERE order_id = ? AND is_digital = 1`, orderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// ListNeedingIssuance returns the ids of digital order items on
// eligible orders whose ledger coverage is incomplete: either no live
// token at all, or fewer live tokens than the book has active files
// (which happens when files are added to a book after purchase).
// Items whose stored download_expires_at has passed are excluded:
// the expiry is never recomputed, so no issuance can give them a
// live token again and re-scanning them would never converge.
// The repair utility walks this list and re-invokes the issuer; the
// issuer's own per-pair check keeps the whole thing idempotent.
func (r *OrderItemRepo) ListNeedingIssuance(ctx context.Context) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT oi.id
         FROM order_items oi
         JOIN orders o ON o.id = oi.order_id
         WHERE oi.is_digital = 1
           AND o.status IN ('PAID','DELIVERED')
           AND (oi.download_expires_at IS NULL OR oi.download_expires_at > UTC_TIMESTAMP())
           AND (
             (SELECT COUNT(*) FROM digital_downloads dd
              WHERE dd.order_item_id = oi.id AND dd.expires_at > UTC_TIMESTAMP()) = 0
             OR
             (SELECT COUNT(*) FROM digital_downloads dd
              WHERE dd.order_item_id = oi.id AND dd.expires_at > UTC_TIMESTAMP())
             <
             (SELECT COUNT(*) FROM digital_files df
              WHERE df.book_id = oi.book_id AND df.is_active = 1)
           )
         ORDER BY oi.id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}
