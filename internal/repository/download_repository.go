package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// DownloadRepo provides data access to the digital_downloads ledger.
// Rows are append-mostly: issuance inserts, redemption updates the
// counter columns, nothing ever deletes. All expiry comparisons run
// against UTC_TIMESTAMP() inside MySQL so that clock skew between
// application instances cannot widen a token's lifetime.
type DownloadRepo struct {
    db *sql.DB
}

// NewDownloadRepo returns a new DownloadRepo bound to the provided database.
func NewDownloadRepo(db *sql.DB) *DownloadRepo { return &DownloadRepo{db: db} }

// TokenExists reports whether any ledger row carries the given token,
// live or expired. The issuer consults this before insert as a
// defense-in-depth uniqueness check.
func (r *DownloadRepo) TokenExists(ctx context.Context, token string) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx,
        `SELECT 1 FROM digital_downloads WHERE download_token = ? LIMIT 1`, token).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// CreateIfAbsent inserts a new ledger row for rec unless a live
// (non-expired) row already exists for the same (order item, digital
// file) pair. The existence check and the insert run in one
// transaction so two concurrent issuance calls for the same purchase
// cannot both mint a token for the same file. It returns true when a
// row was inserted and false when a live row was already present.
//
// A unique-index violation on download_token is surfaced as
// ErrDuplicateToken so the caller can retry with fresh entropy.
func (r *DownloadRepo) CreateIfAbsent(ctx context.Context, rec model.DigitalDownload) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // FOR UPDATE serializes concurrent issuers on the pair.
    var existing uint64
    err = tx.QueryRowContext(ctx,
        `SELECT id FROM digital_downloads
         WHERE order_item_id = ? AND digital_file_id = ? AND expires_at > UTC_TIMESTAMP()
         LIMIT 1 FOR UPDATE`,
        rec.OrderItemID, rec.DigitalFileID).Scan(&existing)
    switch {
    case err == nil:
        return false, nil // live token already outstanding, keep it
    case errors.Is(err, sql.ErrNoRows):
        // fall through to insert
    default:
        return false, err
    }

    _, err = tx.ExecContext(ctx,
        `INSERT INTO digital_downloads (order_item_id, digital_file_id, user_id, download_token, expires_at)
         VALUES (?,?,?,?,?)`,
        rec.OrderItemID, rec.DigitalFileID, rec.UserID, rec.DownloadToken,
        rec.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        if strings.Contains(err.Error(), "1062") {
            return false, ErrDuplicateToken
        }
        return false, err
    }
    if err := tx.Commit(); err != nil {
        return false, err
    }
    committed = true
    return true, nil
}

// ClaimByToken loads the ledger row for token together with its quota
// and file metadata. Returns ErrTokenNotFound when no row matches.
func (r *DownloadRepo) ClaimByToken(ctx context.Context, token string) (model.DownloadClaim, error) {
    var (
        c            model.DownloadClaim
        downloadedAt sql.NullTime
        maxDownloads sql.NullInt64
    )
    err := r.db.QueryRowContext(ctx,
        `SELECT dd.id, dd.order_item_id, dd.digital_file_id, dd.user_id, dd.download_token,
                dd.expires_at, dd.downloaded_at, dd.download_count, dd.created_at,
                oi.max_downloads, df.file_name, df.format, df.storage_url
         FROM digital_downloads dd
         JOIN order_items  oi ON oi.id = dd.order_item_id
         JOIN digital_files df ON df.id = dd.digital_file_id
         WHERE dd.download_token = ?
         LIMIT 1`,
        token).Scan(
        &c.ID, &c.OrderItemID, &c.DigitalFileID, &c.UserID, &c.DownloadToken,
        &c.ExpiresAt, &downloadedAt, &c.DownloadCount, &c.CreatedAt,
        &maxDownloads, &c.FileName, &c.Format, &c.StorageURL)
    if errors.Is(err, sql.ErrNoRows) {
        return model.DownloadClaim{}, ErrTokenNotFound
    }
    if err != nil {
        return model.DownloadClaim{}, err
    }
    if downloadedAt.Valid {
        t := downloadedAt.Time
        c.DownloadedAt = &t
    }
    if maxDownloads.Valid {
        m := uint32(maxDownloads.Int64)
        c.MaxDownloads = &m
    }
    return c, nil
}

// Consume records one redemption of token if, and only if, the token
// is still live and its quota is not exhausted. The whole
// check-then-mark runs as a single conditional UPDATE, so two
// concurrent redemptions of a one-shot token can never both succeed:
// MySQL serializes the row update and the second statement sees the
// incremented counter. Returns true when the redemption was counted.
func (r *DownloadRepo) Consume(ctx context.Context, token string) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE digital_downloads dd
         JOIN order_items oi ON oi.id = dd.order_item_id
         SET dd.download_count = dd.download_count + 1,
             dd.downloaded_at  = COALESCE(dd.downloaded_at, UTC_TIMESTAMP())
         WHERE dd.download_token = ?
           AND dd.expires_at > UTC_TIMESTAMP()
           AND (oi.max_downloads IS NULL OR dd.download_count < oi.max_downloads)`,
        token)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// UserDownload is one row of a customer's download listing.
type UserDownload struct {
    Token         string
    FileName      string
    Format        string
    ExpiresAt     time.Time
    DownloadedAt  *time.Time
    DownloadCount uint32
}

// ListByUser returns every ledger row belonging to userID, newest
// first, including expired ones; the caller decides how to present
// dead links. Backed by the index on digital_downloads.user_id.
func (r *DownloadRepo) ListByUser(ctx context.Context, userID uint64) ([]UserDownload, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT dd.download_token, df.file_name, df.format, dd.expires_at, dd.downloaded_at, dd.download_count
         FROM digital_downloads dd
         JOIN digital_files df ON df.id = dd.digital_file_id
         WHERE dd.user_id = ?
         ORDER BY dd.created_at DESC`,
        userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []UserDownload
    for rows.Next() {
        var (
            d            UserDownload
            downloadedAt sql.NullTime
        )
        if err := rows.Scan(&d.Token, &d.FileName, &d.Format, &d.ExpiresAt, &downloadedAt, &d.DownloadCount); err != nil {
            return nil, err
        }
        if downloadedAt.Valid {
            t := downloadedAt.Time
            d.DownloadedAt = &t
        }
        out = append(out, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// CountLiveByItem returns how many live tokens exist for the given
// order item across all of its files. Coverage audits compare this
// against the book's active file count.
func (r *DownloadRepo) CountLiveByItem(ctx context.Context, orderItemID uint64) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM digital_downloads
         WHERE order_item_id = ? AND expires_at > UTC_TIMESTAMP()`,
        orderItemID).Scan(&n)
    return n, err
}
