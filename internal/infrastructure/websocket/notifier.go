package websocket

import (
	"context"

	"auction-monitor/internal/domain"
)

// WebSocketNotifier wraps bid updates in feed frames and broadcasts them.
type WebSocketNotifier struct {
	connManager *ConnectionManager
}

func NewWebSocketNotifier(connManager *ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.connManager.BroadcastToAuction(auctionID, message)
}

func (n *WebSocketNotifier) BroadcastBid(ctx context.Context, event *domain.BidEvent) error {
	data := event.ToMessage()
	return n.BroadcastToAuction(ctx, event.AuctionID, domain.NewBidUpdateFrame(&data))
}
