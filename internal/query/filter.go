// Package query filters and sorts an already-fetched auction snapshot.
// It is stateless and pure; pagination can be layered on top without
// changing the contract.
package query

import (
	"sort"
	"strings"

	"surplusbid/internal/domain"
)

type SortKey string

const (
	SortEndTime       SortKey = "end_time"       // soonest-ending first
	SortCurrentBid    SortKey = "current_bid"    // highest first
	SortStartingPrice SortKey = "starting_price" // highest first
)

// Filter narrows and orders an auction snapshot. Empty strings mean
// "no filter"; a zero SortKey falls back to SortEndTime.
type Filter struct {
	SearchText string
	Category   string
	Condition  domain.Condition
	Reason     domain.Reason
	SortKey    SortKey
}

// Apply returns the matching subset of auctions, sorted. The input slice is
// not modified.
func Apply(auctions []domain.Auction, f Filter) []domain.Auction {
	out := make([]domain.Auction, 0, len(auctions))
	needle := strings.ToLower(strings.TrimSpace(f.SearchText))
	for _, a := range auctions {
		if needle != "" && !matchesText(&a, needle) {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Condition != "" && a.Condition != f.Condition {
			continue
		}
		if f.Reason != "" && a.Reason != f.Reason {
			continue
		}
		out = append(out, a)
	}
	sortAuctions(out, f.SortKey)
	return out
}

// matchesText is a case-insensitive substring match over title, description
// and seller company name (ORed).
func matchesText(a *domain.Auction, needle string) bool {
	return strings.Contains(strings.ToLower(a.Title), needle) ||
		strings.Contains(strings.ToLower(a.Description), needle) ||
		strings.Contains(strings.ToLower(a.SellerCompany), needle)
}

func sortAuctions(auctions []domain.Auction, key SortKey) {
	switch key {
	case SortCurrentBid:
		sort.SliceStable(auctions, func(i, j int) bool {
			return auctions[i].CurrentBid.Cmp(auctions[j].CurrentBid) > 0
		})
	case SortStartingPrice:
		sort.SliceStable(auctions, func(i, j int) bool {
			return auctions[i].StartingPrice.Cmp(auctions[j].StartingPrice) > 0
		})
	default: // SortEndTime
		sort.SliceStable(auctions, func(i, j int) bool {
			return auctions[i].EndTime.Before(auctions[j].EndTime)
		})
	}
}
