package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// DigitalFileRepo provides data access to the digital_files table.
// Issuance only ever sees active files; deactivating a file stops new
// tokens but leaves already-minted ones redeemable.
type DigitalFileRepo struct {
    db *sql.DB
}

// NewDigitalFileRepo returns a new DigitalFileRepo bound to the provided database.
func NewDigitalFileRepo(db *sql.DB) *DigitalFileRepo { return &DigitalFileRepo{db: db} }

const fileColumns = `id, book_id, format, language, file_name, storage_url, size_bytes, is_active, created_at`

func scanFile(row interface{ Scan(...any) error }) (model.DigitalFile, error) {
    var f model.DigitalFile
    err := row.Scan(&f.ID, &f.BookID, &f.Format, &f.Language, &f.FileName,
        &f.StorageURL, &f.SizeBytes, &f.IsActive, &f.CreatedAt)
    return f, err
}

// GetByID fetches a single file. Returns ErrFileNotFound when the id
// does not exist.
func (r *DigitalFileRepo) GetByID(ctx context.Context, id uint64) (model.DigitalFile, error) {
    f, err := scanFile(r.db.QueryRowContext(ctx,
        `SELECT `+fileColumns+` FROM digital_files WHERE id = ? LIMIT 1`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.DigitalFile{}, ErrFileNotFound
    }
    return f, err
}

// ActiveByBook returns every active file of the given book, ordered
// by format then language so issuance batches are deterministic.
func (r *DigitalFileRepo) ActiveByBook(ctx context.Context, bookID uint64) ([]model.DigitalFile, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+fileColumns+` FROM digital_files
         WHERE book_id = ? AND is_active = 1
         ORDER BY format, language`, bookID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var files []model.DigitalFile
    for rows.Next() {
        f, err := scanFile(rows)
        if err != nil {
            return nil, err
        }
        files = append(files, f)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return files, nil
}

// ListByBook returns every file of a book regardless of the active
// flag; used by the admin catalog endpoints.
func (r *DigitalFileRepo) ListByBook(ctx context.Context, bookID uint64) ([]model.DigitalFile, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+fileColumns+` FROM digital_files
         WHERE book_id = ?
         ORDER BY format, language`, bookID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var files []model.DigitalFile
    for rows.Next() {
        f, err := scanFile(rows)
        if err != nil {
            return nil, err
        }
        files = append(files, f)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return files, nil
}

// Create inserts a new file for a book and returns its id.
func (r *DigitalFileRepo) Create(ctx context.Context, f model.DigitalFile) (uint64, error) {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO digital_files (book_id, format, language, file_name, storage_url, size_bytes, is_active)
         VALUES (?,?,?,?,?,?,?)`,
        f.BookID, f.Format, f.Language, f.FileName, f.StorageURL, f.SizeBytes, f.IsActive)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// SetActive flips the active flag of a file. Returns ErrFileNotFound
// when the id does not exist.
func (r *DigitalFileRepo) SetActive(ctx context.Context, id uint64, active bool) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE digital_files SET is_active = ? WHERE id = ?`, active, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // distinguish "missing" from "already in that state"
        var one int
        if err := r.db.QueryRowContext(ctx,
            `SELECT 1 FROM digital_files WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return ErrFileNotFound
            }
            return err
        }
    }
    return nil
}
