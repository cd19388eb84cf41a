// Package auctionstore owns durable auction records: creation, coarse query
// access, the lossy view counter and owner-initiated removal. Bid writes
// live in bidledger; openness is always re-derived via lifecycle.
package auctionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"surplusbid/internal/directory"
	"surplusbid/internal/domain"
)

const (
	viewKeyPrefix  = "auc_views:"
	viewDirtySet   = "auc_views:dirty"
	timerKeyPrefix = "auc_t:"
	watchKeyPrefix = "auc_watch:"
)

const auctionColumns = `id, title, description, category, condition, reason,
	quantity, starting_price, buy_now_price, current_bid, bid_count, status,
	seller_id, seller_name, seller_company, seller_email, images,
	start_time, end_time, views`

type Store struct {
	db  *sql.DB
	rdc *redis.Client
	dir directory.Directory
	sb  sq.StatementBuilderType
}

func New(db *sql.DB, rdc *redis.Client, dir directory.Directory) *Store {
	return &Store{
		db:  db,
		rdc: rdc,
		dir: dir,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create validates the listing, denormalizes the seller's identity onto the
// record and arms the Redis end-timer key. The seller must have a completed
// company profile.
func (s *Store) Create(ctx context.Context, in *domain.CreateAuctionInput, sellerID string, now time.Time) (*domain.Auction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	seller, err := s.dir.Lookup(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !seller.ProfileComplete {
		return nil, fmt.Errorf("seller %s: %w", sellerID, domain.ErrProfileIncomplete)
	}

	a := &domain.Auction{
		ID:            uuid.New().String(),
		Title:         in.Title,
		Description:   in.Description,
		Category:      in.Category,
		Condition:     in.Condition,
		Reason:        in.Reason,
		Quantity:      in.Quantity,
		StartingPrice: in.StartingPrice,
		CurrentBid:    in.StartingPrice,
		Status:        domain.StatusActive,
		SellerID:      seller.UserID,
		SellerName:    seller.DisplayName,
		SellerCompany: seller.CompanyName,
		SellerEmail:   seller.Email,
		Images:        in.Images,
		StartTime:     now.UTC(),
		EndTime:       now.UTC().Add(time.Duration(in.DurationDays) * 24 * time.Hour),
	}
	if in.BuyNowPrice != nil {
		a.BuyNowPrice = *in.BuyNowPrice
	}
	if a.Images == nil {
		a.Images = []string{}
	}

	images, err := json.Marshal(a.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	buyNow := decimal.NullDecimal{Decimal: a.BuyNowPrice, Valid: a.HasBuyNow()}

	const ins = `
	  INSERT INTO auctions (id, title, description, category, condition, reason,
	                        quantity, starting_price, buy_now_price, current_bid,
	                        bid_count, status, seller_id, seller_name,
	                        seller_company, seller_email, images,
	                        start_time, end_time, views)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,$11,$12,$13,$14,$15,$16,$17,$18,0)`

	if _, err := s.db.ExecContext(ctx, ins,
		a.ID, a.Title, a.Description, a.Category, string(a.Condition), string(a.Reason),
		a.Quantity, a.StartingPrice, buyNow, a.CurrentBid,
		string(a.Status), a.SellerID, a.SellerName, a.SellerCompany, a.SellerEmail,
		images, a.StartTime, a.EndTime); err != nil {
		return nil, fmt.Errorf("insert auction: %w", err)
	}

	// The timer key only triggers the advisory status flip; the lazy clock
	// check still closes the lot on time if Redis is unavailable.
	if err := s.rdc.Set(ctx, timerKeyPrefix+a.ID, 1, a.EndTime.Sub(now)).Err(); err != nil {
		zap.L().Warn("auctionstore.arm_timer", zap.String("id", a.ID), zap.Error(err))
	}
	return a, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Auction, error) {
	q := "SELECT " + auctionColumns + " FROM auctions WHERE id = $1"
	a, err := scanAuction(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("auction %s: %w", id, domain.ErrAuctionNotFound)
		}
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}
	return a, nil
}

// ListOptions narrow List; zero values mean "no filter" / "no limit".
type ListOptions struct {
	Status   domain.Status
	SellerID string
	Limit    uint64
	Offset   uint64
}

// List returns auctions soonest-ending first. Results may be stale under
// concurrent writers; callers re-derive openness via lifecycle.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]domain.Auction, error) {
	b := s.sb.Select(auctionColumns).From("auctions").OrderBy("end_time ASC")
	if opts.Status != "" {
		b = b.Where(sq.Eq{"status": string(opts.Status)})
	}
	if opts.SellerID != "" {
		b = b.Where(sq.Eq{"seller_id": opts.SellerID})
	}
	if opts.Limit > 0 {
		b = b.Limit(opts.Limit).Offset(opts.Offset)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var list []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// ListActive returns every auction still marked active.
func (s *Store) ListActive(ctx context.Context) ([]domain.Auction, error) {
	return s.List(ctx, ListOptions{Status: domain.StatusActive})
}

// IncrementViews bumps the lot's view counter in Redis. Best effort: lost
// updates and Redis outages are tolerated, failures are logged and dropped.
func (s *Store) IncrementViews(ctx context.Context, id string) {
	pipe := s.rdc.Pipeline()
	pipe.Incr(ctx, viewKeyPrefix+id)
	pipe.SAdd(ctx, viewDirtySet, id)
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Warn("auctionstore.increment_views", zap.String("id", id), zap.Error(err))
	}
}

// Delete removes a lot. Only the seller may delete, and only while no bids
// exist; accepted bids must never be orphaned.
func (s *Store) Delete(ctx context.Context, id, requesterID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete auction %s: %w", id, err)
	}
	defer tx.Rollback()

	var sellerID string
	var bidCount int
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id, bid_count FROM auctions WHERE id = $1 FOR UPDATE`, id).
		Scan(&sellerID, &bidCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("auction %s: %w", id, domain.ErrAuctionNotFound)
		}
		return fmt.Errorf("delete auction %s: %w", id, err)
	}
	if sellerID != requesterID {
		return fmt.Errorf("auction %s: %w", id, domain.ErrNotOwner)
	}
	if bidCount > 0 {
		return fmt.Errorf("auction %s: %w", id, domain.ErrAuctionHasBids)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete auction %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete auction %s: %w", id, err)
	}

	if err := s.rdc.Del(ctx,
		timerKeyPrefix+id, viewKeyPrefix+id, watchKeyPrefix+id).Err(); err != nil {
		zap.L().Warn("auctionstore.cleanup_keys", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// Close lets the seller end a lot early. The status flip makes the closure
// explicit; openness checks would honour endTime regardless.
func (s *Store) Close(ctx context.Context, id, requesterID string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.SellerID != requesterID {
		return fmt.Errorf("auction %s: %w", id, domain.ErrNotOwner)
	}
	if err := s.MarkEnded(ctx, id); err != nil {
		return err
	}
	_ = s.rdc.Del(ctx, timerKeyPrefix+id).Err()
	return nil
}

// MarkEnded flips the stored status to ended. Called by the seller's early
// close and by the end-watcher when the timer key expires.
func (s *Store) MarkEnded(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET status = $1 WHERE id = $2`, string(domain.StatusEnded), id)
	if err != nil {
		return fmt.Errorf("mark auction %s ended: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("auction %s: %w", id, domain.ErrAuctionNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	a := &domain.Auction{}
	var buyNow decimal.NullDecimal
	var images []byte
	var condition, reason, status string

	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &condition, &reason,
		&a.Quantity, &a.StartingPrice, &buyNow, &a.CurrentBid, &a.BidCount, &status,
		&a.SellerID, &a.SellerName, &a.SellerCompany, &a.SellerEmail, &images,
		&a.StartTime, &a.EndTime, &a.Views)
	if err != nil {
		return nil, err
	}
	a.Condition = domain.Condition(condition)
	a.Reason = domain.Reason(reason)
	a.Status = domain.Status(status)
	if buyNow.Valid {
		a.BuyNowPrice = buyNow.Decimal
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &a.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	return a, nil
}
