package auctionhandler

import (
	"github.com/shopspring/decimal"

	"surplusbid/internal/domain"
)

type CreateAuctionBody struct {
	Title         string           `json:"title"          binding:"required"               example:"Pallet of office chairs"`
	Description   string           `json:"description"    binding:"required"               example:"40 units, barely used"`
	Category      string           `json:"category"       binding:"required"               example:"furniture"`
	Condition     string           `json:"condition"      binding:"required,oneof=new like-new good fair poor"`
	Reason        string           `json:"reason"         binding:"required,oneof=surplus overstock discontinued damaged returned other"`
	Quantity      int              `json:"quantity"       binding:"required,gte=1"         example:"40"`
	StartingPrice decimal.Decimal  `json:"starting_price" binding:"required"               example:"200"`
	BuyNowPrice   *decimal.Decimal `json:"buy_now_price,omitempty"                         example:"900"`
	Images        []string         `json:"images"         binding:"omitempty,max=5"`
	DurationDays  int              `json:"duration_days"  binding:"required,oneof=1 3 7 10 14" example:"7"`
} // @name CreateAuctionRequest

func (b *CreateAuctionBody) toInput() *domain.CreateAuctionInput {
	return &domain.CreateAuctionInput{
		Title:         b.Title,
		Description:   b.Description,
		Category:      b.Category,
		Condition:     domain.Condition(b.Condition),
		Reason:        domain.Reason(b.Reason),
		Quantity:      b.Quantity,
		StartingPrice: b.StartingPrice,
		BuyNowPrice:   b.BuyNowPrice,
		Images:        b.Images,
		DurationDays:  b.DurationDays,
	}
}

type PlaceBidBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required" example:"250"`
} // @name PlaceBidRequest

type ProfileBody struct {
	DisplayName     string `json:"display_name" binding:"required" example:"Dana Greer"`
	CompanyName     string `json:"company_name"                    example:"Northside Interiors"`
	Email           string `json:"email"        binding:"required,email" example:"dana@northside.example"`
	ProfileComplete bool   `json:"profile_complete"`
} // @name ProfileRequest

type ListAuctionsQuery struct {
	Search    string `form:"search"`
	Category  string `form:"category"`
	Condition string `form:"condition" binding:"omitempty,oneof=new like-new good fair poor"`
	Reason    string `form:"reason"    binding:"omitempty,oneof=surplus overstock discontinued damaged returned other"`
	Sort      string `form:"sort"      binding:"omitempty,oneof=end_time current_bid starting_price"`
} // @name ListAuctionsQuery

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

// AuctionView decorates the stored record with everything a detail or list
// page needs, computed from one clock snapshot.
type AuctionView struct {
	domain.Auction
	RemainingSeconds int64 `json:"remaining_seconds"`
	Open             bool  `json:"open"`
	Watchers         int64 `json:"watchers,omitempty"`
} // @name Auction
