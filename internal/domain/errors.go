package domain

import "errors"

// Input and lookup failures.
var (
	ErrValidation      = errors.New("invalid input")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoBids          = errors.New("no bids placed")
)

// Business-rule rejections. Surfaced verbatim to the caller, never coerced.
var (
	ErrAuctionClosed     = errors.New("auction closed")
	ErrSelfBid           = errors.New("sellers cannot bid on their own auction")
	ErrBidTooLow         = errors.New("bid below minimum acceptable amount")
	ErrNotOwner          = errors.New("requester does not own this auction")
	ErrProfileIncomplete = errors.New("company profile incomplete")
	ErrAuctionHasBids    = errors.New("auction with bids cannot be deleted")
)

// ErrConflict means the optimistic retry budget for a contended write ran
// out; the caller should resubmit with fresh data.
var ErrConflict = errors.New("concurrent update conflict")
