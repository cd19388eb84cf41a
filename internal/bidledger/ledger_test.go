package bidledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"surplusbid/internal/domain"
)

type stubDirectory struct {
	profiles map[string]*domain.Profile
}

func (d *stubDirectory) Lookup(_ context.Context, userID string) (*domain.Profile, error) {
	p, ok := d.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p, nil
}

func (d *stubDirectory) Save(_ context.Context, p *domain.Profile) error {
	d.profiles[p.UserID] = p
	return nil
}

func testDirectory() *stubDirectory {
	return &stubDirectory{profiles: map[string]*domain.Profile{
		"buyer1": {UserID: "buyer1", DisplayName: "Dana", CompanyName: "BuyCo", Email: "dana@buyco.example", ProfileComplete: true},
		"buyer2": {UserID: "buyer2", DisplayName: "Riley", CompanyName: "LotWorks", Email: "riley@lotworks.example", ProfileComplete: true},
		"seller1": {UserID: "seller1", DisplayName: "Sam", CompanyName: "SellCo", Email: "sam@sellco.example", ProfileComplete: true},
		"draft1": {UserID: "draft1", ProfileComplete: false},
	}}
}

var auctionCols = []string{"seller_id", "starting_price", "current_bid", "bid_count", "status", "end_time"}

const (
	selectForUpdate = `SELECT seller_id, starting_price, current_bid, bid_count, status, end_time`
	demoteWinning   = `UPDATE bids SET is_winning = FALSE`
	insertBid       = `INSERT INTO bids`
	updateCurrent   = `UPDATE auctions SET current_bid`
)

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdc, rdMock := redismock.NewClientMock()
	return New(db, rdc, testDirectory(), decimal.NewFromInt(1), 3), dbMock, rdMock
}

// expectAttempt wires one full successful transaction for a bid attempt.
func expectAttempt(m sqlmock.Sqlmock, now time.Time, currentBid string, bidCount int) {
	m.ExpectBegin()
	m.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", currentBid, bidCount, "active", now.Add(time.Hour)))
	m.ExpectExec(demoteWinning).WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, int64(min(bidCount, 1))))
	m.ExpectExec(insertBid).
		WithArgs(sqlmock.AnyArg(), "a1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec(updateCurrent).WithArgs(sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()
}

func TestPlaceBidFirstBidAtStartingPrice(t *testing.T) {
	ledger, dbMock, rdMock := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No bids yet: exactly the starting price is acceptable.
	expectAttempt(dbMock, now, "100", 0)
	rdMock.Regexp().ExpectPublish("auc:a1:events", `.*`).SetVal(1)

	bid, err := ledger.PlaceBid(context.Background(), "a1", "buyer1", decimal.NewFromInt(100), now)
	require.NoError(t, err)
	require.True(t, bid.IsWinning)
	require.True(t, bid.Amount.Equal(decimal.NewFromInt(100)))
	require.Equal(t, "buyer1", bid.BidderID)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPlaceBidBelowMinimumLeavesStateUntouched(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Current bid is 100 with one bid on record, so the minimum is 101.
	// A repeat of 100 must be rejected with no writes at all.
	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "active", now.Add(time.Hour)))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(100), now)
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPlaceBidOutbidsPreviousWinner(t *testing.T) {
	ledger, dbMock, rdMock := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expectAttempt(dbMock, now, "100", 1)
	rdMock.Regexp().ExpectPublish("auc:a1:events", `.*`).SetVal(1)

	bid, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(150), now)
	require.NoError(t, err)
	require.True(t, bid.IsWinning)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

// Full price-discovery walk: a lot starts at 100, the first bid of 100 is
// accepted and wins, a second bid of 100 is rejected (minimum is 101), and
// a bid of 150 is accepted, demoting the first winner.
func TestPlaceBidScenario(t *testing.T) {
	ledger, dbMock, rdMock := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expectAttempt(dbMock, now, "100", 0)
	rdMock.Regexp().ExpectPublish("auc:a1:events", `.*`).SetVal(1)

	first, err := ledger.PlaceBid(context.Background(), "a1", "buyer1", decimal.NewFromInt(100), now)
	require.NoError(t, err)
	require.True(t, first.IsWinning)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "active", now.Add(time.Hour)))
	dbMock.ExpectRollback()

	_, err = ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(100), now)
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	expectAttempt(dbMock, now, "100", 1)
	rdMock.Regexp().ExpectPublish("auc:a1:events", `.*`).SetVal(1)

	second, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(150), now)
	require.NoError(t, err)
	require.True(t, second.IsWinning)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPlaceBidClosedByTime(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Stored status still says active, but endTime has passed: the clock
	// wins regardless of amount.
	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "active", now.Add(-time.Minute)))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer1", decimal.NewFromInt(10000), now)
	require.ErrorIs(t, err, domain.ErrAuctionClosed)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPlaceBidClosedByStatus(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "ended", now.Add(time.Hour)))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer1", decimal.NewFromInt(200), now)
	require.ErrorIs(t, err, domain.ErrAuctionClosed)
}

func TestPlaceBidSelfBidForbidden(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 0, "active", now.Add(time.Hour)))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "a1", "seller1", decimal.NewFromInt(500), now)
	require.ErrorIs(t, err, domain.ErrSelfBid)
}

func TestPlaceBidIncompleteProfile(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := ledger.PlaceBid(context.Background(), "a1", "draft1", decimal.NewFromInt(200), now)
	require.ErrorIs(t, err, domain.ErrProfileIncomplete)
	require.NoError(t, dbMock.ExpectationsWereMet()) // never touched the db
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(auctionCols))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "missing", "buyer1", decimal.NewFromInt(200), now)
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestPlaceBidNonPositiveAmount(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer1", decimal.Zero, time.Now())
	require.ErrorIs(t, err, domain.ErrValidation)
}

// Two bidders race. The loser of the row lock retries and must re-evaluate
// the minimum against the winner's committed bid, not its own stale read.
func TestPlaceBidRetrySeesCommittedBid(t *testing.T) {
	ledger, dbMock, rdMock := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	serialization := &pgconn.PgError{Code: "40001"}

	// Attempt 1 aborts with a serialization failure at commit.
	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "active", now.Add(time.Hour)))
	dbMock.ExpectExec(demoteWinning).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(insertBid).
		WithArgs(sqlmock.AnyArg(), "a1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(updateCurrent).WithArgs(sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit().WillReturnError(serialization)

	// Attempt 2 sees the racing bidder's committed 150; 200 still clears it.
	expectAttempt(dbMock, now, "150", 2)
	rdMock.Regexp().ExpectPublish("auc:a1:events", `.*`).SetVal(1)

	bid, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(200), now)
	require.NoError(t, err)
	require.True(t, bid.Amount.Equal(decimal.NewFromInt(200)))
	require.NoError(t, dbMock.ExpectationsWereMet())
}

// After the retry the racing winner's bid is higher than ours: the retry
// must reject rather than overwrite the higher committed bid.
func TestPlaceBidRetryRejectsWhenOutbid(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "100", 1, "active", now.Add(time.Hour)))
	dbMock.ExpectExec(demoteWinning).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(insertBid).
		WithArgs(sqlmock.AnyArg(), "a1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(updateCurrent).WithArgs(sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(auctionCols).
			AddRow("seller1", "100", "180", 2, "active", now.Add(time.Hour)))
	dbMock.ExpectRollback()

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(150), now)
	require.ErrorIs(t, err, domain.ErrBidTooLow)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPlaceBidConflictBudgetExhausted(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery(selectForUpdate).WithArgs("a1").
			WillReturnRows(sqlmock.NewRows(auctionCols).
				AddRow("seller1", "100", "100", 1, "active", now.Add(time.Hour)))
		dbMock.ExpectExec(demoteWinning).WithArgs("a1").
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		dbMock.ExpectRollback()
	}

	_, err := ledger.PlaceBid(context.Background(), "a1", "buyer2", decimal.NewFromInt(300), now)
	require.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

var bidCols = []string{"id", "auction_id", "bidder_id", "bidder_name",
	"bidder_company", "bidder_email", "amount", "placed_at", "is_winning"}

func TestHistoryNewestFirst(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dbMock.ExpectQuery(`FROM bids WHERE auction_id = \$1 ORDER BY seq DESC`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidCols).
			AddRow("b2", "a1", "buyer2", "Riley", "LotWorks", "riley@lotworks.example", "150", now, true).
			AddRow("b1", "a1", "buyer1", "Dana", "BuyCo", "dana@buyco.example", "100", now.Add(-time.Minute), false))

	bids, err := ledger.History(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.True(t, bids[0].IsWinning)
	require.False(t, bids[1].IsWinning)
	require.True(t, bids[0].Amount.GreaterThan(bids[1].Amount))
}

func TestHistoryUnknownAuction(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)

	dbMock.ExpectQuery(`FROM bids WHERE auction_id`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(bidCols))
	dbMock.ExpectQuery(`SELECT 1 FROM auctions`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, err := ledger.History(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestWinningBidNone(t *testing.T) {
	ledger, dbMock, _ := newTestLedger(t)

	dbMock.ExpectQuery(`FROM bids WHERE auction_id = \$1 AND is_winning`).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidCols))
	dbMock.ExpectQuery(`SELECT 1 FROM auctions`).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := ledger.WinningBid(context.Background(), "a1")
	require.ErrorIs(t, err, domain.ErrNoBids)
}
