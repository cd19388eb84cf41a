// Package bidledger is the append-only bid history and the one write path
// with real contention: placing a bid. A bid, the previous winner's flag
// flip and the auction's current-bid update commit as a single transaction
// so two racing bidders are serialized on the auction row.
package bidledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"surplusbid/internal/directory"
	"surplusbid/internal/domain"
	"surplusbid/internal/lifecycle"
)

const bidColumns = `id, auction_id, bidder_id, bidder_name, bidder_company,
	bidder_email, amount, placed_at, is_winning`

// pgSerializationFailure and pgDeadlockDetected are the two Postgres error
// classes worth retrying on a contended auction row.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type Ledger struct {
	db           *sql.DB
	rdc          *redis.Client
	dir          directory.Directory
	minIncrement decimal.Decimal
	retryBudget  int
}

func New(db *sql.DB, rdc *redis.Client, dir directory.Directory, minIncrement decimal.Decimal, retryBudget int) *Ledger {
	if retryBudget < 1 {
		retryBudget = 1
	}
	return &Ledger{
		db:           db,
		rdc:          rdc,
		dir:          dir,
		minIncrement: minIncrement,
		retryBudget:  retryBudget,
	}
}

// PlaceBid validates and records one bid. The first bid may equal the
// starting price; every later bid must add at least the minimum increment
// on top of the committed current bid. `now` is the caller's single clock
// snapshot for the request.
func (l *Ledger) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal, now time.Time) (*domain.Bid, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: bid amount must be positive", domain.ErrValidation)
	}

	bidder, err := l.dir.Lookup(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if !bidder.ProfileComplete {
		return nil, fmt.Errorf("bidder %s: %w", bidderID, domain.ErrProfileIncomplete)
	}

	var bid *domain.Bid
	for attempt := 1; ; attempt++ {
		bid, err = l.tryPlaceBid(ctx, auctionID, bidder, amount, now)
		if err == nil {
			break
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt >= l.retryBudget {
			return nil, fmt.Errorf("auction %s after %d attempts: %w", auctionID, attempt, domain.ErrConflict)
		}
		zap.L().Debug("bidledger.retry",
			zap.String("auction_id", auctionID), zap.Int("attempt", attempt), zap.Error(err))
	}

	l.publishBidEvent(ctx, bid)
	return bid, nil
}

// tryPlaceBid is one attempt: lock the auction row, re-check every gate
// against the committed state, then apply the three writes.
func (l *Ledger) tryPlaceBid(ctx context.Context, auctionID string, bidder *domain.Profile, amount decimal.Decimal, now time.Time) (*domain.Bid, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", auctionID, err)
	}
	defer tx.Rollback()

	var (
		sellerID      string
		startingPrice decimal.Decimal
		currentBid    decimal.Decimal
		bidCount      int
		status        string
		endTime       time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, starting_price, current_bid, bid_count, status, end_time
		   FROM auctions WHERE id = $1 FOR UPDATE`, auctionID).
		Scan(&sellerID, &startingPrice, &currentBid, &bidCount, &status, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionNotFound)
		}
		return nil, fmt.Errorf("place bid on %s: %w", auctionID, err)
	}

	if !lifecycle.IsOpen(domain.Status(status), endTime, now) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionClosed)
	}
	if sellerID == bidder.UserID {
		return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrSelfBid)
	}

	minAcceptable := startingPrice
	if bidCount > 0 {
		minAcceptable = currentBid.Add(l.minIncrement)
	}
	if amount.LessThan(minAcceptable) {
		return nil, fmt.Errorf("auction %s needs at least %s: %w",
			auctionID, minAcceptable.String(), domain.ErrBidTooLow)
	}

	bid := &domain.Bid{
		ID:            uuid.New().String(),
		AuctionID:     auctionID,
		BidderID:      bidder.UserID,
		BidderName:    bidder.DisplayName,
		BidderCompany: bidder.CompanyName,
		BidderEmail:   bidder.Email,
		Amount:        amount,
		PlacedAt:      now.UTC(),
		IsWinning:     true,
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bids SET is_winning = FALSE WHERE auction_id = $1 AND is_winning`,
		auctionID); err != nil {
		return nil, fmt.Errorf("demote winning bid on %s: %w", auctionID, err)
	}

	const ins = `
	  INSERT INTO bids (id, auction_id, bidder_id, bidder_name, bidder_company,
	                    bidder_email, amount, placed_at, is_winning)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)`
	if _, err := tx.ExecContext(ctx, ins,
		bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.BidderCompany,
		bid.BidderEmail, bid.Amount, bid.PlacedAt); err != nil {
		return nil, fmt.Errorf("insert bid on %s: %w", auctionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auctions SET current_bid = $1, bid_count = bid_count + 1 WHERE id = $2`,
		bid.Amount, auctionID); err != nil {
		return nil, fmt.Errorf("update current bid on %s: %w", auctionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bid on %s: %w", auctionID, err)
	}
	return bid, nil
}

// History returns a lot's bids, newest first.
func (l *Ledger) History(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	q := "SELECT " + bidColumns + " FROM bids WHERE auction_id = $1 ORDER BY seq DESC"
	rows, err := l.db.QueryContext(ctx, q, auctionID)
	if err != nil {
		return nil, fmt.Errorf("bid history for %s: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName,
			&b.BidderCompany, &b.BidderEmail, &b.Amount, &b.PlacedAt, &b.IsWinning); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		if err := l.auctionExists(ctx, auctionID); err != nil {
			return nil, err
		}
	}
	return bids, nil
}

// WinningBid returns the single currently winning bid, or ErrNoBids.
func (l *Ledger) WinningBid(ctx context.Context, auctionID string) (*domain.Bid, error) {
	q := "SELECT " + bidColumns + " FROM bids WHERE auction_id = $1 AND is_winning"
	var b domain.Bid
	err := l.db.QueryRowContext(ctx, q, auctionID).
		Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.BidderName,
			&b.BidderCompany, &b.BidderEmail, &b.Amount, &b.PlacedAt, &b.IsWinning)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := l.auctionExists(ctx, auctionID); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNoBids)
		}
		return nil, fmt.Errorf("winning bid for %s: %w", auctionID, err)
	}
	return &b, nil
}

func (l *Ledger) auctionExists(ctx context.Context, auctionID string) error {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM auctions WHERE id = $1`, auctionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("auction %s: %w", auctionID, domain.ErrAuctionNotFound)
	}
	return err
}

// publishBidEvent pushes the accepted bid to the auction's live channel.
// Best effort: the bid is already durable, listeners just catch up later.
func (l *Ledger) publishBidEvent(ctx context.Context, bid *domain.Bid) {
	payload, err := json.Marshal(map[string]any{
		"event":       "bid",
		"auction_id":  bid.AuctionID,
		"amount":      bid.Amount,
		"bidder_name": bid.BidderName,
		"placed_at":   bid.PlacedAt,
	})
	if err != nil {
		zap.L().Warn("bidledger.encode_event", zap.Error(err))
		return
	}
	if err := l.rdc.Publish(ctx, "auc:"+bid.AuctionID+":events", payload).Err(); err != nil {
		zap.L().Warn("bidledger.publish_event",
			zap.String("auction_id", bid.AuctionID), zap.Error(err))
	}
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
