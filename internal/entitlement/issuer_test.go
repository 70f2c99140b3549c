package entitlement

import (
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

const defaultWindow = 30 * 24 * time.Hour

// testIssuer wires an issuer over fakes with a fixed clock.
func testIssuer(items *fakeItems, catalog *fakeCatalog, ledger *fakeLedger) *Issuer {
    iss := NewIssuer(items, catalog, ledger, defaultWindow)
    iss.now = fixedNow
    return iss
}

func digitalItem(id, orderID, bookID uint64) model.OrderItem {
    return model.OrderItem{ID: id, OrderID: orderID, BookID: bookID, IsDigital: true, Quantity: 1}
}

func paidOrder(id, userID uint64) model.Order {
    return model.Order{ID: id, UserID: userID, Status: model.OrderStatusPaid, CreatedAt: testNow}
}

func bookFiles(bookID uint64, n int) []model.DigitalFile {
    formats := []string{model.FormatEPUB, model.FormatPDF, model.FormatKBP}
    files := make([]model.DigitalFile, 0, n)
    for i := 0; i < n; i++ {
        files = append(files, model.DigitalFile{
            ID:       bookID*100 + uint64(i) + 1,
            BookID:   bookID,
            Format:   formats[i%len(formats)],
            Language: "en",
            FileName: "book.file",
            IsActive: true,
        })
    }
    return files
}

func TestIssueForOrderItem_Preconditions(t *testing.T) {
    items := newFakeItems()
    items.add(model.OrderItem{ID: 2, OrderID: 20, IsDigital: false}, paidOrder(20, 7))
    items.add(digitalItem(3, 30, 5), model.Order{ID: 30, UserID: 7, Status: model.OrderStatusPending})
    items.add(digitalItem(4, 40, 5), model.Order{ID: 40, UserID: 7, Status: model.OrderStatusCancelled})
    items.add(digitalItem(5, 50, 9), paidOrder(50, 7)) // book 9 has no files

    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{}}
    iss := testIssuer(items, catalog, newFakeLedger(fixedNow))

    tests := []struct {
        name    string
        itemID  uint64
        wantErr error
    }{
        {"missing item", 999, ErrOrderItemNotFound},
        {"physical item", 2, ErrNotDigital},
        {"pending order", 3, ErrOrderNotEligible},
        {"cancelled order", 4, ErrOrderNotEligible},
        {"book without active files", 5, ErrNoDigitalContent},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            _, err := iss.IssueForOrderItem(t.Context(), tt.itemID)
            require.Error(t, err)
            assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
        })
    }
}

func TestIssueForOrderItem_MintsOnePerActiveFile(t *testing.T) {
    items := newFakeItems()
    items.add(digitalItem(1, 10, 5), paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 3)}}
    ledger := newFakeLedger(fixedNow)
    iss := testIssuer(items, catalog, ledger)

    res, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, res.Issued, 3)
    assert.Zero(t, res.AlreadyLive)
    assert.Empty(t, res.Failed)

    wantExpiry := testNow.Add(defaultWindow)
    assert.Equal(t, wantExpiry, res.ExpiresAt)
    for _, d := range res.Issued {
        assert.Equal(t, wantExpiry, d.ExpiresAt, "all tokens of one batch share one expiry")
        assert.Equal(t, uint64(7), d.UserID)
        assert.Len(t, d.DownloadToken, 64)
    }

    // tokens are distinct
    seen := map[string]bool{}
    for _, d := range res.Issued {
        assert.False(t, seen[d.DownloadToken])
        seen[d.DownloadToken] = true
    }

    // the computed default was persisted onto the item, exactly once
    assert.Equal(t, 1, items.expiryWrites)
    item, _, err := items.GetWithOrder(t.Context(), 1)
    require.NoError(t, err)
    require.NotNil(t, item.DownloadExpiresAt)
    assert.Equal(t, wantExpiry, *item.DownloadExpiresAt)
}

func TestIssueForOrderItem_Idempotent(t *testing.T) {
    items := newFakeItems()
    items.add(digitalItem(1, 10, 5), paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 2)}}
    ledger := newFakeLedger(fixedNow)
    iss := testIssuer(items, catalog, ledger)

    first, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, first.Issued, 2)

    second, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    assert.Empty(t, second.Issued, "re-running issuance must not mint duplicates")
    assert.Equal(t, 2, second.AlreadyLive)
    assert.Equal(t, 2, ledger.liveCount())
    assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
    assert.Equal(t, 1, items.expiryWrites)
}

func TestIssueForOrderItem_StoredExpiryWins(t *testing.T) {
    // The item already carries an expiry, shorter than the default
    // window. Issuance must reuse it verbatim and never recompute.
    stored := testNow.Add(5 * 24 * time.Hour)
    item := digitalItem(1, 10, 5)
    item.DownloadExpiresAt = &stored
    items := newFakeItems()
    items.add(item, paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 1)}}
    ledger := newFakeLedger(fixedNow)
    iss := testIssuer(items, catalog, ledger)

    res, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, res.Issued, 1)
    assert.Equal(t, stored, res.Issued[0].ExpiresAt)
    assert.Zero(t, items.expiryWrites, "stored expiry must not be rewritten")
}

func TestIssueForOrderItem_LapsedWindowMintsNothing(t *testing.T) {
    // The stored expiry has already passed. Since the expiry is never
    // recomputed, minting would only produce tokens that are dead on
    // arrival; the call must leave the ledger untouched.
    past := testNow.Add(-48 * time.Hour)
    item := digitalItem(1, 10, 5)
    item.DownloadExpiresAt = &past
    items := newFakeItems()
    items.add(item, paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 2)}}
    ledger := newFakeLedger(fixedNow)
    iss := testIssuer(items, catalog, ledger)

    res, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    assert.Empty(t, res.Issued)
    assert.Zero(t, res.AlreadyLive)
    assert.Empty(t, res.Failed)
    assert.Equal(t, past, res.ExpiresAt)
    assert.Zero(t, ledger.rowCount(), "no dead rows may be written")
    assert.Zero(t, items.expiryWrites)
}

func TestIssueForOrderItem_NewFileAfterPurchase(t *testing.T) {
    items := newFakeItems()
    items.add(digitalItem(1, 10, 5), paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 1)}}
    ledger := newFakeLedger(fixedNow)
    iss := testIssuer(items, catalog, ledger)

    first, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, first.Issued, 1)

    // a second rendition is added to the book after purchase
    catalog.files[5] = bookFiles(5, 2)

    second, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, second.Issued, 1, "only the new file gets a token")
    assert.Equal(t, 1, second.AlreadyLive)
    assert.Equal(t, first.ExpiresAt, second.Issued[0].ExpiresAt,
        "late-added file inherits the batch expiry")
}

func TestIssueForOrderItem_PartialFailure(t *testing.T) {
    items := newFakeItems()
    items.add(digitalItem(1, 10, 5), paidOrder(10, 7))
    files := bookFiles(5, 3)
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: files}}
    ledger := newFakeLedger(fixedNow)
    ledger.createErrFor = map[uint64]error{files[1].ID: errors.New("connection reset")}
    iss := testIssuer(items, catalog, ledger)

    res, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err, "sibling failures are reported, not thrown")
    assert.Len(t, res.Issued, 2)
    require.Len(t, res.Failed, 1)
    assert.Equal(t, files[1].ID, res.Failed[0].FileID)
}

func TestIssueForOrderItem_CollisionRetries(t *testing.T) {
    items := newFakeItems()
    items.add(digitalItem(1, 10, 5), paidOrder(10, 7))
    catalog := &fakeCatalog{files: map[uint64][]model.DigitalFile{5: bookFiles(5, 1)}}
    ledger := newFakeLedger(fixedNow)
    ledger.takenFirst = 2 // first two candidate tokens report as taken
    iss := testIssuer(items, catalog, ledger)

    res, err := iss.IssueForOrderItem(t.Context(), 1)
    require.NoError(t, err)
    require.Len(t, res.Issued, 1, "collisions retried with fresh entropy")
    assert.Empty(t, res.Failed)
}
