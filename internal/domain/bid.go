package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is one monotonic increment in a lot's price discovery. Bids are
// immutable once accepted; corrections happen through new bids only.
type Bid struct {
	ID            string          `json:"id"`
	AuctionID     string          `json:"auction_id"`
	BidderID      string          `json:"bidder_id"`
	BidderName    string          `json:"bidder_name"`
	BidderCompany string          `json:"bidder_company"`
	BidderEmail   string          `json:"bidder_email"`
	Amount        decimal.Decimal `json:"amount"`
	PlacedAt      time.Time       `json:"placed_at"`
	IsWinning     bool            `json:"is_winning"`
}

// Profile is the slice of the user collaborator this service consumes.
// ProfileComplete gates both selling and bidding.
type Profile struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	CompanyName     string `json:"company_name"`
	Email           string `json:"email"`
	ProfileComplete bool   `json:"profile_complete"`
}
