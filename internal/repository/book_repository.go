package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

// BookRepo provides data access to the books table for the public
// catalog browse endpoints and the admin catalog management.
type BookRepo struct {
    db *sql.DB
}

// NewBookRepo returns a new BookRepo bound to the provided database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// GetByID fetches a single book. Returns ErrBookNotFound when the id
// does not exist.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
    var b model.Book
    err := r.db.QueryRowContext(ctx,
        `SELECT id, title, author, is_active, created_at, updated_at
         FROM books WHERE id = ? LIMIT 1`, id).
        Scan(&b.ID, &b.Title, &b.Author, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return model.Book{}, ErrBookNotFound
    }
    return b, err
}

// List returns books ordered by title. When activeOnly is true,
// inactive titles are filtered out (the public catalog view).
func (r *BookRepo) List(ctx context.Context, activeOnly bool) ([]model.Book, error) {
    q := `SELECT id, title, author, is_active, created_at, updated_at FROM books`
    if activeOnly {
        q += ` WHERE is_active = 1`
    }
    q += ` ORDER BY title`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var books []model.Book
    for rows.Next() {
        var b model.Book
        if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
            return nil, err
        }
        books = append(books, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return books, nil
}

// Create inserts a new book and returns its id.
func (r *BookRepo) Create(ctx context.Context, title, author string, active bool) (uint64, error) {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO books (title, author, is_active) VALUES (?,?,?)`,
        title, author, active)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// Update overwrites title, author and active flag of a book.
// Returns ErrBookNotFound when the id does not exist.
func (r *BookRepo) Update(ctx context.Context, id uint64, title, author string, active bool) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE books SET title = ?, author = ?, is_active = ? WHERE id = ?`,
        title, author, active, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var one int
        if err := r.db.QueryRowContext(ctx,
            `SELECT 1 FROM books WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return ErrBookNotFound
            }
            return err
        }
    }
    return nil
}
