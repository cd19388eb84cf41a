package auctionhandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"surplusbid/internal/auctionstore"
	"surplusbid/internal/bidledger"
	"surplusbid/internal/directory"
	"surplusbid/internal/domain"
	"surplusbid/internal/lifecycle"
	"surplusbid/internal/query"
	"surplusbid/internal/watchreg"
)

// callerHeader carries the authenticated user id. Authentication itself is
// the platform's concern; by the time requests reach this service the
// header is trusted.
const callerHeader = "X-User-ID"

type Handler struct {
	store  *auctionstore.Store
	ledger *bidledger.Ledger
	watch  *watchreg.Registry
	dir    directory.Directory
}

func New(store *auctionstore.Store, ledger *bidledger.Ledger, watch *watchreg.Registry, dir directory.Directory) *Handler {
	return &Handler{store: store, ledger: ledger, watch: watch, dir: dir}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.POST("/auctions", h.create)
	r.GET("/auctions/:id", h.info)
	r.DELETE("/auctions/:id", h.remove)
	r.POST("/auctions/:id/close", h.close)
	r.POST("/auctions/:id/bid", h.bid)
	r.GET("/auctions/:id/bids", h.bids)
	r.POST("/auctions/:id/watch", h.watchLot)
	r.POST("/auctions/:id/unwatch", h.unwatchLot)
	r.PUT("/profiles/:id", h.saveProfile)
}

// @Summary		List active auctions
// @Description	Returns open auctions, filtered and sorted in memory.
// @Tags			Auctions
// @Param			search		query		string	false	"Substring over title, description and company"
// @Param			category	query		string	false	"Exact category"
// @Param			condition	query		string	false	"Condition filter"	Enums(new,like-new,good,fair,poor)
// @Param			reason		query		string	false	"Reason filter"		Enums(surplus,overstock,discontinued,damaged,returned,other)
// @Param			sort		query		string	false	"Sort key"			Enums(end_time,current_bid,starting_price)
// @Success		200	{array}		AuctionView
// @Failure		400	{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	active, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	// One clock snapshot for the whole response. The stored status may lag
	// endTime, so drop anything the clock says is already closed.
	now := time.Now()
	open := active[:0]
	for _, a := range active {
		if lifecycle.IsOpen(a.Status, a.EndTime, now) {
			open = append(open, a)
		}
	}

	matched := query.Apply(open, query.Filter{
		SearchText: q.Search,
		Category:   q.Category,
		Condition:  domain.Condition(q.Condition),
		Reason:     domain.Reason(q.Reason),
		SortKey:    query.SortKey(q.Sort),
	})

	out := make([]AuctionView, 0, len(matched))
	for _, a := range matched {
		out = append(out, h.view(c, a, now, false))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Create an auction
// @Description	Seller lists a surplus lot for time-boxed bidding.
// @Tags			Auctions
// @Param			X-User-ID	header		string				true	"Seller user id"
// @Param			body		body		CreateAuctionBody	true	"Listing payload"
// @Success		201	{object}	AuctionView
// @Failure		400	{object}	ErrorResponse
// @Failure		403	{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	sellerID, ok := h.caller(c)
	if !ok {
		return
	}
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	now := time.Now()
	a, err := h.store.Create(c.Request.Context(), body.toInput(), sellerID, now)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(c, *a, now, false))
}

// @Summary		Get auction details
// @Description	Returns one auction and bumps its view counter (best effort).
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	AuctionView
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	a, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.store.IncrementViews(c.Request.Context(), a.ID)
	c.JSON(http.StatusOK, h.view(c, *a, time.Now(), true))
}

// @Summary		Delete an auction
// @Description	Seller removes a lot. Refused once any bid exists.
// @Tags			Auctions
// @Param			X-User-ID	header	string	true	"Seller user id"
// @Param			id			path	string	true	"Auction ID"
// @Success		204
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id} [delete]
func (h *Handler) remove(c *gin.Context) {
	requesterID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), c.Param("id"), requesterID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Close an auction early
// @Description	Seller ends a lot before its endTime.
// @Tags			Auctions
// @Param			X-User-ID	header	string	true	"Seller user id"
// @Param			id			path	string	true	"Auction ID"
// @Success		202
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/close [post]
func (h *Handler) close(c *gin.Context) {
	requesterID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.store.Close(c.Request.Context(), c.Param("id"), requesterID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary		Place a bid
// @Description	Records a bid when it beats the committed current bid.
// @Tags			Bids
// @Param			X-User-ID	header		string			true	"Bidder user id"
// @Param			id			path		string			true	"Auction ID"
// @Param			body		body		PlaceBidBody	true	"Bid payload"
// @Success		201	{object}	domain.Bid
// @Failure		400	{object}	ErrorResponse
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(c *gin.Context) {
	bidderID, ok := h.caller(c)
	if !ok {
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	bid, err := h.ledger.PlaceBid(c.Request.Context(),
		c.Param("id"), bidderID, body.Amount, time.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// @Summary		Bid history
// @Description	All bids on a lot, newest first.
// @Tags			Bids
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{array}		domain.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	history, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if history == nil {
		history = []domain.Bid{}
	}
	c.JSON(http.StatusOK, history)
}

// @Summary		Watch an auction
// @Description	Adds the caller to the lot's watcher set. Idempotent.
// @Tags			Watchers
// @Param			X-User-ID	header	string	true	"User id"
// @Param			id			path	string	true	"Auction ID"
// @Success		204
// @Router			/auctions/{id}/watch [post]
func (h *Handler) watchLot(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.watch.Watch(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Unwatch an auction
// @Description	Removes the caller from the lot's watcher set. Idempotent.
// @Tags			Watchers
// @Param			X-User-ID	header	string	true	"User id"
// @Param			id			path	string	true	"Auction ID"
// @Success		204
// @Router			/auctions/{id}/unwatch [post]
func (h *Handler) unwatchLot(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.watch.Unwatch(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Save a business profile
// @Description	Upserts the directory record gating selling and bidding.
// @Tags			Profiles
// @Param			id		path	string		true	"User id"
// @Param			body	body	ProfileBody	true	"Profile payload"
// @Success		204
// @Failure		400	{object}	ErrorResponse
// @Router			/profiles/{id} [put]
func (h *Handler) saveProfile(c *gin.Context) {
	var body ProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	p := &domain.Profile{
		UserID:          c.Param("id"),
		DisplayName:     body.DisplayName,
		CompanyName:     body.CompanyName,
		Email:           body.Email,
		ProfileComplete: body.ProfileComplete,
	}
	if err := h.dir.Save(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) caller(c *gin.Context) (string, bool) {
	id := c.GetHeader(callerHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: callerHeader + " header is required"})
		return "", false
	}
	return id, true
}

func (h *Handler) view(c *gin.Context, a domain.Auction, now time.Time, withWatchers bool) AuctionView {
	remaining, open := lifecycle.Remaining(a.EndTime, now)
	v := AuctionView{
		Auction:          a,
		RemainingSeconds: int64(remaining.Seconds()),
		Open:             open && a.Status == domain.StatusActive,
	}
	if withWatchers {
		if n, err := h.watch.Count(c.Request.Context(), a.ID); err == nil {
			v.Watchers = n
		}
	}
	return v
}

// fail maps the error taxonomy to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBidTooLow):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNoBids):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrSelfBid),
		errors.Is(err, domain.ErrProfileIncomplete):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrAuctionHasBids),
		errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
