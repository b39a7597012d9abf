package services

import (
	"errors"
	"fmt"
	"time"

	"auction-monitor/internal/domain"
)

// RenderAdapter turns lifecycle events and decoded messages into Renderer calls.
type RenderAdapter struct {
	subscriptionID domain.SubscriptionID
	renderer       domain.Renderer
	now            func() time.Time
}

func NewRenderAdapter(subscriptionID domain.SubscriptionID, renderer domain.Renderer) *RenderAdapter {
	return &RenderAdapter{
		subscriptionID: subscriptionID,
		renderer:       renderer,
		now:            time.Now,
	}
}

func (a *RenderAdapter) HandleLifecycle(event domain.LifecycleEvent) {
	switch event.Type {
	case domain.EventConnecting:
		a.notify(fmt.Sprintf("Connecting to auction %s...", a.subscriptionID), domain.KindInfo)
		if event.Endpoint != "" {
			a.notify("WebSocket URL: "+event.Endpoint, domain.KindInfo)
		}
		a.renderer.RenderConnectionState("Connecting...", domain.StatusConnecting)

	case domain.EventConnected:
		a.renderer.RenderConnectionState("Connected", domain.StatusConnected)
		a.notify(fmt.Sprintf("Successfully connected to auction %s!", a.subscriptionID), domain.KindSuccess)

	case domain.EventDisconnected:
		a.renderer.RenderConnectionState("Disconnected", domain.StatusDisconnected)
		a.renderer.ResetAuction()
		a.notify(fmt.Sprintf("Connection closed (Code: %d)", event.CloseCode), domain.KindWarning)

	case domain.EventError:
		a.renderer.RenderConnectionState("Connection Error", domain.StatusError)
		if errors.Is(event.Err, domain.ErrTransportCreation) {
			a.notify(fmt.Sprintf("Failed to create WebSocket: %v", event.Err), domain.KindError)
		} else {
			a.notify("WebSocket connection error occurred", domain.KindError)
		}

	case domain.EventReconnectScheduled:
		a.notify(fmt.Sprintf("Reconnecting... (%d/%d)", event.Attempt, event.MaxAttempts), domain.KindWarning)

	case domain.EventReconnectExhausted:
		a.renderer.RenderConnectionState("Connection Failed", domain.StatusError)
		a.notify("Max reconnection attempts reached. Please try manually.", domain.KindError)

	case domain.EventClosed:
		a.renderer.RenderConnectionState("Disconnected", domain.StatusDisconnected)
		a.renderer.ResetAuction()
		a.notify("Disconnected by user", domain.KindWarning)
	}
}

func (a *RenderAdapter) HandleConnectionInfo(info domain.ConnectionInfo) {
	if info.Message == "" {
		return
	}
	a.notify(info.Message, domain.KindInfo)
}

func (a *RenderAdapter) HandleBidUpdate(bid domain.Bid) {
	a.renderer.RenderBid(bid)

	received := a.now()
	a.renderer.AppendNotification(domain.Notification{
		Message: "New Bid Received!",
		Details: []string{
			fmt.Sprintf("Bid Amount: $%.2f", bid.Amount),
			"Bidder: " + bid.BidderID,
			"Auction Title: " + bid.DisplayTitle(),
			"Auction ID: " + bid.AuctionID.String(),
			"Date: " + received.Format("2006-01-02"),
			"Time: " + received.Format("15:04:05"),
		},
		Kind: domain.KindBid,
		Time: received,
	})
}

func (a *RenderAdapter) HandleUnknownType(tag string) {
	a.notify("Unknown message type: "+tag, domain.KindWarning)
}

func (a *RenderAdapter) HandleDispatchError(err error) {
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		a.notify(fmt.Sprintf("Failed to parse message: %v", parseErr.Err), domain.KindError)
		return
	}
	a.notify(fmt.Sprintf("Invalid message: %v", err), domain.KindError)
}

func (a *RenderAdapter) notify(message string, kind domain.NotificationKind) {
	a.renderer.AppendNotification(domain.Notification{
		Message: message,
		Kind:    kind,
		Time:    a.now(),
	})
}
