package domain

import (
	"context"
	"time"
)

// Transport interfaces

// TransportHandler receives socket events. A transport delivers them serially:
// OnOpen, any number of OnMessage, then OnClose. OnError may precede OnClose.
type TransportHandler interface {
	OnOpen()
	OnMessage(data []byte)
	OnClose(code int, reason string)
	OnError(err error)
}

// Transport creates sockets. Dial must not call the handler before it returns.
type Transport interface {
	Dial(endpoint string, handler TransportHandler) (Socket, error)
}

type Socket interface {
	Close(code int, reason string) error
}

// Scheduler interfaces
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

// Message handling interface
type MessageHandler interface {
	HandleConnectionInfo(info ConnectionInfo)
	HandleBidUpdate(bid Bid)
	HandleUnknownType(tag string)
	HandleDispatchError(err error)
}

// Renderer draws subscription state. Implementations decide the medium.
type Renderer interface {
	RenderConnectionState(status string, kind StatusKind)
	RenderBid(bid Bid)
	AppendNotification(n Notification)
	ResetAuction()
}

// Repository interfaces
type AuctionRepository interface {
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
}

type BidRepository interface {
	SaveBidEvent(ctx context.Context, event *BidEvent) error
	GetBidHistory(ctx context.Context, auctionID string, limit int) ([]*BidEvent, error)
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// BidCache remembers the latest bid of each auction.
type BidCache interface {
	RecordBid(ctx context.Context, event *BidEvent) error
	GetLatestBid(ctx context.Context, auctionID string) (*BidEvent, error)
}

// Feed interfaces
type FeedConnection interface {
	ID() string
	AuctionID() string
	Send(message interface{}) error
	Close() error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

type BidBroadcaster interface {
	BroadcastBid(ctx context.Context, event *BidEvent) error
}

type SessionRegistry interface {
	SessionCount(auctionID string) int
	Snapshot() []AuctionSessions
}
