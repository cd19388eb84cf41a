package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"surplusbid/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

// AuctionSource supplies the initial snapshot pushed on join.
type AuctionSource interface {
	Get(ctx context.Context, id string) (*domain.Auction, error)
}

// WsServer is the read-only live feed: clients join an auction room, get a
// snapshot, then receive bid and lifecycle events published by the ledger.
// Bids themselves go through the REST API.
type WsServer struct {
	hub      *Hub
	subMgr   *subscriptionManager
	auctions AuctionSource
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, rdc *redis.Client, auctions AuctionSource) *WsServer {
	return &WsServer{
		hub:      h,
		subMgr:   newSubscriptionManager(rdc, h),
		auctions: auctions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
}

// Handle is the Gin entry-point.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID := ginCtx.Query("auction_id")
	if auctionID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "auction_id is required"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	// ─────────────────── Client joined ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(auctionID, wsConn)
	s.subMgr.Subscribe(auctionID) // may be a no-op (already subscribed)

	// Initial snapshot.
	if err := s.pushSnapshot(ginCtx.Request.Context(), auctionID, wsConn); err != nil &&
		!errors.Is(err, domain.ErrAuctionNotFound) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(auctionID, wsConn)
	go s.pinger(wsConn)
}

func (s *WsServer) pushSnapshot(ctx context.Context, id string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	a, err := s.auctions.Get(ctx, id)
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": "auctions/snapshot",
		"body":  a,
	})
}

// reader drains inbound frames until the client goes away; the feed accepts
// no commands, the loop exists to detect closure and answer pongs.
func (s *WsServer) reader(auctionID string, conn *clientConn) {
	defer func() {
		s.hub.Leave(auctionID, conn)
		s.subMgr.Unsubscribe(auctionID)
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.rawConn.ReadMessage(); err != nil {
			return // client closed or errored
		}
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		err := conn.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		if err != nil {
			_ = conn.rawConn.Close()
			return
		}
	}
}
