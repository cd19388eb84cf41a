package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

type Reason string

const (
	ReasonSurplus      Reason = "surplus"
	ReasonOverstock    Reason = "overstock"
	ReasonDiscontinued Reason = "discontinued"
	ReasonDamaged      Reason = "damaged"
	ReasonReturned     Reason = "returned"
	ReasonOther        Reason = "other"
)

// MaxImages caps the ordered image reference list on a lot.
const MaxImages = 5

// AllowedDurations are the selectable auction lengths in whole days.
var AllowedDurations = []int{1, 3, 7, 10, 14}

// Auction is one seller's lot offered for competitive bidding.
// Seller identity is denormalized at creation time; later profile edits do
// not rewrite historical records.
type Auction struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Condition     Condition       `json:"condition"`
	Reason        Reason          `json:"reason"`
	Quantity      int             `json:"quantity"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	BuyNowPrice   decimal.Decimal `json:"buy_now_price,omitempty"` // zero when absent
	CurrentBid    decimal.Decimal `json:"current_bid"`
	BidCount      int             `json:"bid_count"`
	Status        Status          `json:"status"`
	SellerID      string          `json:"seller_id"`
	SellerName    string          `json:"seller_name"`
	SellerCompany string          `json:"seller_company"`
	SellerEmail   string          `json:"seller_email"`
	Images        []string        `json:"images"`
	StartTime     time.Time       `json:"start_time" example:"2026-08-30T16:05:05Z"`
	EndTime       time.Time       `json:"end_time"   example:"2026-09-06T16:05:05Z"`
	Views         int64           `json:"views"`
}

// HasBuyNow reports whether a buy-now price was set on the lot.
func (a *Auction) HasBuyNow() bool { return a.BuyNowPrice.IsPositive() }

// CreateAuctionInput is what a seller submits to list a lot.
type CreateAuctionInput struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Condition     Condition        `json:"condition"`
	Reason        Reason           `json:"reason"`
	Quantity      int              `json:"quantity"`
	StartingPrice decimal.Decimal  `json:"starting_price"`
	BuyNowPrice   *decimal.Decimal `json:"buy_now_price,omitempty"`
	Images        []string         `json:"images"`
	DurationDays  int              `json:"duration_days"`
}

// Validate applies the listing rules. Every failure wraps ErrValidation so
// callers can map the whole class at once.
func (in *CreateAuctionInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if !validCondition(in.Condition) {
		return fmt.Errorf("%w: unknown condition %q", ErrValidation, in.Condition)
	}
	if !validReason(in.Reason) {
		return fmt.Errorf("%w: unknown reason %q", ErrValidation, in.Reason)
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if !in.StartingPrice.IsPositive() {
		return fmt.Errorf("%w: starting price must be positive", ErrValidation)
	}
	if in.BuyNowPrice != nil && in.BuyNowPrice.Cmp(in.StartingPrice) <= 0 {
		return fmt.Errorf("%w: buy-now price must exceed starting price", ErrValidation)
	}
	if len(in.Images) > MaxImages {
		return fmt.Errorf("%w: at most %d images allowed", ErrValidation, MaxImages)
	}
	if !ValidDuration(in.DurationDays) {
		return fmt.Errorf("%w: duration must be one of %v days", ErrValidation, AllowedDurations)
	}
	return nil
}

// ValidDuration reports whether d is a selectable auction length.
func ValidDuration(d int) bool {
	for _, v := range AllowedDurations {
		if v == d {
			return true
		}
	}
	return false
}

func validCondition(c Condition) bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

func validReason(r Reason) bool {
	switch r {
	case ReasonSurplus, ReasonOverstock, ReasonDiscontinued, ReasonDamaged, ReasonReturned, ReasonOther:
		return true
	}
	return false
}
