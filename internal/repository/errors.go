// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the entitlement services to distinguish between
// failure scenarios with errors.Is instead of string matching. For
// example, ErrTokenNotFound signals an unknown download token while
// ErrDuplicateToken reports a unique-index collision on insert.
package repository

import "errors"

// ErrOrderItemNotFound is returned when an order item id does not
// exist in the store.
var ErrOrderItemNotFound = errors.New("order item not found")

// ErrBookNotFound is returned when a book id does not exist.
var ErrBookNotFound = errors.New("book not found")

// ErrFileNotFound is returned when a digital file id does not exist.
var ErrFileNotFound = errors.New("digital file not found")

// ErrTokenNotFound is returned when a download token has no ledger
// row. Handlers must not expose this distinctly from an ownership
// failure; both collapse to a generic response.
var ErrTokenNotFound = errors.New("download token not found")

// ErrDuplicateToken is returned when an insert hits the unique index
// on download_token. With 256 bits of entropy this should never
// happen; the issuer retries with fresh entropy if it does.
var ErrDuplicateToken = errors.New("download token already exists")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as removing a book
// that still has digital files attached. Handlers translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
