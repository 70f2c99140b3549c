package model

import "time"

// Book represents a sellable digital title as stored in the `books`
// table.  Physical products live in a separate catalog and are not
// modelled here; an order item references either one or the other.
//
// Fields:
//  ID        – primary key identifier.
//  Title     – display title of the book.
//  Author    – author name shown in listings.
//  IsActive  – whether the book is visible in the catalog.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Book struct {
    ID        uint64    // books.id
    Title     string    // books.title
    Author    string    // books.author
    IsActive  bool      // books.is_active
    CreatedAt time.Time // books.created_at
    UpdatedAt time.Time // books.updated_at
}

// DigitalFile is one downloadable rendition of a book as stored in
// the `digital_files` table.  A book typically has several files,
// one per format and language combination.  Inactive files are
// ignored at issuance time but tokens already minted against them
// stay redeemable.
//
// Fields:
//  ID         – primary key identifier.
//  BookID     – book this file belongs to.
//  Format     – file format (EPUB, PDF or KBP).
//  Language   – ISO language code of the rendition.
//  FileName   – name presented to the customer on download.
//  StorageURL – location of the bytes in the object store/CDN.
//  SizeBytes  – size of the stored object.
//  IsActive   – whether the file participates in new issuance.
//  CreatedAt  – timestamp of creation.
type DigitalFile struct {
    ID         uint64    // digital_files.id
    BookID     uint64    // digital_files.book_id
    Format     string    // digital_files.format
    Language   string    // digital_files.language
    FileName   string    // digital_files.file_name
    StorageURL string    // digital_files.storage_url
    SizeBytes  uint64    // digital_files.size_bytes
    IsActive   bool      // digital_files.is_active
    CreatedAt  time.Time // digital_files.created_at
}

// Allowed digital file formats.  The set matches the renditions the
// storefront produces for every title.
const (
    FormatEPUB = "EPUB"
    FormatPDF  = "PDF"
    FormatKBP  = "KBP"
)

// ValidFormat reports whether f is one of the supported file formats.
func ValidFormat(f string) bool {
    switch f {
    case FormatEPUB, FormatPDF, FormatKBP:
        return true
    }
    return false
}
