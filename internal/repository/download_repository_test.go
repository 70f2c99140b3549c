package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/goleak"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/model"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
)

type downloadRepositorySuite struct {
	suite.Suite

	db        *sql.DB
	container testcontainers.Container

	downloads *repository.DownloadRepo
	items     *repository.OrderItemRepo
	users     *repository.UserRepo
	tokens    *repository.TokenRepo
}

// entry point to run the tests in the suite
func TestDownloadRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	suite.Run(t, new(downloadRepositorySuite))
}

// before all tests in the suite
func (s *downloadRepositorySuite) SetupSuite() {
	ctx := s.T().Context()

	var connStr string
	var err error
	s.container, connStr, err = startMySQL(ctx)
	s.Require().NoError(err)

	s.db, err = sql.Open("mysql", connStr)
	s.Require().NoError(err)
	s.Require().NoError(s.db.PingContext(ctx))

	s.downloads = repository.NewDownloadRepo(s.db)
	s.items = repository.NewOrderItemRepo(s.db)
	s.users = repository.NewUserRepo(s.db)
	s.tokens = repository.NewTokenRepo(s.db)
}

// after all tests in the suite
func (s *downloadRepositorySuite) TearDownSuite() {
	ctx := s.T().Context()

	if s.db != nil {
		s.NoError(s.db.Close())
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(ctx))
	}
}

func startMySQL(ctx context.Context) (testcontainers.Container, string, error) {
	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("delivery_test"),
		tcmysql.WithUsername("delivery"),
		tcmysql.WithPassword("delivery"),
		tcmysql.WithScripts(filepath.Join("testdata", "schema.sql")),
	)
	if err != nil {
		return nil, "", fmt.Errorf("start mysql container: %w", err)
	}
	connStr, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	if err != nil {
		return nil, "", fmt.Errorf("connection string: %w", err)
	}
	return ctr, connStr, nil
}

// ----- seed helpers -----

// seed creates user -> book -> file -> order -> item and returns the ids.
type seeded struct {
	userID  uint64
	bookID  uint64
	fileID  uint64
	orderID uint64
	itemID  uint64
}

func (s *downloadRepositorySuite) seed(status string, maxDownloads *uint32) seeded {
	t := s.T()
	ctx := t.Context()

	userID, err := s.users.Create(ctx, uuid.NewString()+"@example.com", "secret", "CUSTOMER", 4)
	require.NoError(t, err)

	res, err := s.db.ExecContext(ctx, `INSERT INTO books (title, author) VALUES (?,?)`, "Space Atlas", "J. Doe")
	require.NoError(t, err)
	bookID := lastID(t, res)

	res, err = s.db.ExecContext(ctx,
		`INSERT INTO digital_files (book_id, format, language, file_name, storage_url, size_bytes)
		 VALUES (?,?,?,?,?,?)`,
		bookID, model.FormatEPUB, "en", "space-atlas.epub", "https://cdn.example.com/f/space-atlas.epub", 1024)
	require.NoError(t, err)
	fileID := lastID(t, res)

	res, err = s.db.ExecContext(ctx, `INSERT INTO orders (user_id, status) VALUES (?,?)`, userID, status)
	require.NoError(t, err)
	orderID := lastID(t, res)

	res, err = s.db.ExecContext(ctx,
		`INSERT INTO order_items (order_id, book_id, is_digital, quantity, max_downloads) VALUES (?,?,1,1,?)`,
		orderID, bookID, maxDownloads)
	require.NoError(t, err)
	itemID := lastID(t, res)

	return seeded{userID: userID, bookID: bookID, fileID: fileID, orderID: orderID, itemID: itemID}
}

func lastID(t *testing.T, res sql.Result) uint64 {
	t.Helper()
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func newLedgerRec(sd seeded, expiresAt time.Time) model.DigitalDownload {
	return model.DigitalDownload{
		OrderItemID:   sd.itemID,
		DigitalFileID: sd.fileID,
		UserID:        sd.userID,
		DownloadToken: uuid.NewString() + uuid.NewString()[:28], // 64 chars
		ExpiresAt:     expiresAt,
	}
}

// ----- ledger -----

func (s *downloadRepositorySuite) TestCreateIfAbsent_Idempotent() {
	t := s.T()
	ctx := t.Context()
	sd := s.seed("PAID", nil)
	future := time.Now().UTC().Add(24 * time.Hour)

	created, err := s.downloads.CreateIfAbsent(ctx, newLedgerRec(sd, future))
	require.NoError(t, err)
	assert.True(t, created)

	// A live token for the pair suppresses a second insert.
	created, err = s.downloads.CreateIfAbsent(ctx, newLedgerRec(sd, future))
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.downloads.CountLiveByItem(ctx, sd.itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func (s *downloadRepositorySuite) TestCreateIfAbsent_ExpiredPairGetsNewToken() {
	t := s.T()
	ctx := t.Context()
	sd := s.seed("PAID", nil)

	created, err := s.downloads.CreateIfAbsent(ctx, newLedgerRec(sd, time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)
	assert.True(t, created)

	// The expired row does not block re-issuance.
	created, err = s.downloads.CreateIfAbsent(ctx, newLedgerRec(sd, time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)
	assert.True(t, created)
}

func (s *downloadRepositorySuite) TestCreateIfAbsent_DuplicateToken() {
	t := s.T()
	ctx := t.Context()
	sd1 := s.seed("PAID", nil)
	sd2 := s.seed("PAID", nil)
	future := time.Now().UTC().Add(24 * time.Hour)

	rec := newLedgerRec(sd1, future)
	created, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)
	require.True(t, created)

	clash := newLedgerRec(sd2, future)
	clash.DownloadToken = rec.DownloadToken
	_, err = s.downloads.CreateIfAbsent(ctx, clash)
	assert.ErrorIs(t, err, repository.ErrDuplicateToken)

	exists, err := s.downloads.TokenExists(ctx, rec.DownloadToken)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *downloadRepositorySuite) TestClaimByToken() {
	t := s.T()
	ctx := t.Context()
	two := uint32(2)
	sd := s.seed("PAID", &two)
	rec := newLedgerRec(sd, time.Now().UTC().Add(24*time.Hour))

	_, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	claim, err := s.downloads.ClaimByToken(ctx, rec.DownloadToken)
	require.NoError(t, err)
	assert.Equal(t, sd.userID, claim.UserID)
	assert.Equal(t, "space-atlas.epub", claim.FileName)
	assert.Equal(t, model.FormatEPUB, claim.Format)
	assert.Equal(t, "https://cdn.example.com/f/space-atlas.epub", claim.StorageURL)
	require.NotNil(t, claim.MaxDownloads)
	assert.Equal(t, uint32(2), *claim.MaxDownloads)
	assert.Nil(t, claim.DownloadedAt)
	assert.Zero(t, claim.DownloadCount)

	_, err = s.downloads.ClaimByToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func (s *downloadRepositorySuite) TestConsume_CountsUntilQuota() {
	t := s.T()
	ctx := t.Context()
	two := uint32(2)
	sd := s.seed("PAID", &two)
	rec := newLedgerRec(sd, time.Now().UTC().Add(24*time.Hour))

	_, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := s.downloads.Consume(ctx, rec.DownloadToken)
		require.NoError(t, err)
		assert.True(t, ok, "redemption %d within quota", i+1)
	}
	ok, err := s.downloads.Consume(ctx, rec.DownloadToken)
	require.NoError(t, err)
	assert.False(t, ok, "third redemption exceeds max_downloads=2")

	claim, err := s.downloads.ClaimByToken(ctx, rec.DownloadToken)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), claim.DownloadCount)
	assert.NotNil(t, claim.DownloadedAt)
}

func (s *downloadRepositorySuite) TestConsume_ExpiredAndUnlimited() {
	t := s.T()
	ctx := t.Context()

	expired := s.seed("PAID", nil)
	rec := newLedgerRec(expired, time.Now().UTC().Add(-time.Minute))
	_, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)
	ok, err := s.downloads.Consume(ctx, rec.DownloadToken)
	require.NoError(t, err)
	assert.False(t, ok, "expired token never counts")

	unlimited := s.seed("PAID", nil)
	rec = newLedgerRec(unlimited, time.Now().UTC().Add(time.Hour))
	_, err = s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		ok, err := s.downloads.Consume(ctx, rec.DownloadToken)
		require.NoError(t, err)
		assert.True(t, ok, "NULL max_downloads means unlimited")
	}
}

func (s *downloadRepositorySuite) TestConsume_ConcurrentOneShotHasOneWinner() {
	t := s.T()
	ctx := t.Context()
	one := uint32(1)
	sd := s.seed("PAID", &one)
	rec := newLedgerRec(sd, time.Now().UTC().Add(time.Hour))

	_, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.downloads.Consume(ctx, rec.DownloadToken)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, collect(wins), 1, "exactly one concurrent redemption may win")
}

func collect(ch <-chan bool) []bool {
	var out []bool
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func (s *downloadRepositorySuite) TestListByUser() {
	t := s.T()
	ctx := t.Context()
	sd := s.seed("PAID", nil)

	first := newLedgerRec(sd, time.Now().UTC().Add(-time.Hour)) // expired
	_, err := s.downloads.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	second := newLedgerRec(sd, time.Now().UTC().Add(time.Hour))
	_, err = s.downloads.CreateIfAbsent(ctx, second)
	require.NoError(t, err)

	rows, err := s.downloads.ListByUser(ctx, sd.userID)
	require.NoError(t, err)
	require.Len(t, rows, 2, "expired rows stay visible in the listing")
	for _, row := range rows {
		assert.Equal(t, "space-atlas.epub", row.FileName)
	}
}

// ----- order items -----

func (s *downloadRepositorySuite) TestEnsureDownloadExpiry_SetOnce() {
	t := s.T()
	ctx := t.Context()
	sd := s.seed("PAID", nil)

	first := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	stored, err := s.items.EnsureDownloadExpiry(ctx, sd.itemID, first)
	require.NoError(t, err)
	assert.Equal(t, first.Unix(), stored.Unix())

	// A later candidate loses; the stored value is immutable.
	stored, err = s.items.EnsureDownloadExpiry(ctx, sd.itemID, first.Add(90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.Unix(), stored.Unix())
}

func (s *downloadRepositorySuite) TestGetWithOrder() {
	t := s.T()
	ctx := t.Context()
	two := uint32(2)
	sd := s.seed("PAID", &two)

	item, order, err := s.items.GetWithOrder(ctx, sd.itemID)
	require.NoError(t, err)
	assert.True(t, item.IsDigital)
	assert.Equal(t, sd.bookID, item.BookID)
	require.NotNil(t, item.MaxDownloads)
	assert.Equal(t, uint32(2), *item.MaxDownloads)
	assert.Nil(t, item.DownloadExpiresAt)
	assert.Equal(t, sd.userID, order.UserID)
	assert.True(t, order.EligibleForDownload())

	_, _, err = s.items.GetWithOrder(ctx, 999999)
	assert.ErrorIs(t, err, repository.ErrOrderItemNotFound)
}

func (s *downloadRepositorySuite) TestListNeedingIssuance() {
	t := s.T()
	ctx := t.Context()

	uncovered := s.seed("PAID", nil)
	pending := s.seed("PENDING", nil)
	covered := s.seed("DELIVERED", nil)
	lapsed := s.seed("PAID", nil)

	rec := newLedgerRec(covered, time.Now().UTC().Add(time.Hour))
	_, err := s.downloads.CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	// The lapsed item's window closed an hour ago. Its tokens expired
	// with it and no issuance can revive them, so the scan must leave
	// it alone on every run.
	_, err = s.db.ExecContext(ctx,
		`UPDATE order_items SET download_expires_at = UTC_TIMESTAMP() - INTERVAL 1 HOUR WHERE id = ?`,
		lapsed.itemID)
	require.NoError(t, err)

	ids, err := s.items.ListNeedingIssuance(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, uncovered.itemID, "paid item without tokens needs issuance")
	assert.NotContains(t, ids, pending.itemID, "unpaid orders are never scanned")
	assert.NotContains(t, ids, covered.itemID, "fully covered item is complete")
	assert.NotContains(t, ids, lapsed.itemID, "lapsed window cannot be repaired")

	// Adding a second active file reopens the covered item.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO digital_files (book_id, format, language, file_name, storage_url)
		 VALUES (?,?,?,?,?)`,
		covered.bookID, model.FormatPDF, "en", "space-atlas.pdf", "https://cdn.example.com/f/space-atlas.pdf")
	require.NoError(t, err)

	ids, err = s.items.ListNeedingIssuance(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, covered.itemID, "new file after purchase needs issuance")
}

// ----- auth tables -----

func (s *downloadRepositorySuite) TestUserAndRefreshTokens() {
	t := s.T()
	ctx := t.Context()

	email := uuid.NewString() + "@example.com"
	uid, err := s.users.Create(ctx, email, "secret", "CUSTOMER", 4)
	require.NoError(t, err)

	_, err = s.users.Create(ctx, email, "secret", "CUSTOMER", 4)
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	u, err := s.users.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, uid, u.ID)

	hash := uuid.NewString() + uuid.NewString()[:28]
	require.NoError(t, s.tokens.StoreRefresh(ctx, uid, hash, time.Now().UTC().Add(time.Hour)))

	got, err := s.tokens.ValidateRefresh(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	require.NoError(t, s.tokens.RevokeByHash(ctx, hash))
	_, err = s.tokens.ValidateRefresh(ctx, hash)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
