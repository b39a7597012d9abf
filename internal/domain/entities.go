package domain

import (
	"strconv"
	"time"
)

// SubscriptionID identifies the auction a client subscribes to.
type SubscriptionID string

func SubscriptionIDFromInt(id int64) SubscriptionID {
	return SubscriptionID(strconv.FormatInt(id, 10))
}

func (id SubscriptionID) String() string {
	return string(id)
}

type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	// StateFailed is the terminal substate of Closed reached once reconnects run out.
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Bid is a validated bidUpdate payload.
type Bid struct {
	AuctionID SubscriptionID
	Amount    float64
	BidderID  string
	Title     string
	BidTime   time.Time
}

func (b Bid) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	return "Auction Title #" + string(b.AuctionID)
}

// ConnectionInfo is the informational payload of a connection frame.
type ConnectionInfo struct {
	Message   string
	AuctionID string
}

// Close codes as defined by RFC 6455.
const (
	CloseNormalClosure = 1000
	CloseAbnormal      = 1006
)

const UserDisconnectReason = "User disconnect"

// Frame types understood by the client and emitted by the feed.
const (
	FrameConnection = "connection"
	FrameBidUpdate  = "bidUpdate"
	FrameHeartbeat  = "heartbeat"
)

// BidUpdateMessage is the data object of a bidUpdate frame.
type BidUpdateMessage struct {
	AuctionID      string  `json:"auctionId"`
	AuctionTitle   string  `json:"auctionTitle,omitempty"`
	BidAmount      float64 `json:"bidAmount"`
	BidderUsername string  `json:"bidderUsername"`
	BidTime        string  `json:"bidTime,omitempty"`
}

// BidTimeLayout is the zone-less bidTime layout. It is read in local time and used for
// display. The feed itself writes RFC 3339.
const BidTimeLayout = "2006-01-02 15:04:05"

// BidEvent travels over the bid event channel between publishers and the feed.
type BidEvent struct {
	AuctionID      string    `json:"auction_id"`
	AuctionTitle   string    `json:"auction_title,omitempty"`
	BidderUsername string    `json:"bidder_username"`
	Amount         float64   `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e *BidEvent) ToMessage() BidUpdateMessage {
	msg := BidUpdateMessage{
		AuctionID:      e.AuctionID,
		AuctionTitle:   e.AuctionTitle,
		BidAmount:      e.Amount,
		BidderUsername: e.BidderUsername,
	}
	if !e.Timestamp.IsZero() {
		msg.BidTime = e.Timestamp.Format(time.RFC3339Nano)
	}
	return msg
}

type Auction struct {
	ID    string
	Title string
}

// OutboundFrame is a frame written by the feed.
type OutboundFrame struct {
	Type      string            `json:"type"`
	Message   string            `json:"message,omitempty"`
	AuctionID string            `json:"auctionId,omitempty"`
	Data      *BidUpdateMessage `json:"data,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
}

func NewConnectionFrame(auctionID string) OutboundFrame {
	return OutboundFrame{
		Type:      FrameConnection,
		Message:   "Connected to auction " + auctionID,
		AuctionID: auctionID,
	}
}

func NewHeartbeatFrame(at time.Time) OutboundFrame {
	return OutboundFrame{Type: FrameHeartbeat, Timestamp: at.UnixMilli()}
}

func NewBidUpdateFrame(data *BidUpdateMessage) OutboundFrame {
	return OutboundFrame{Type: FrameBidUpdate, Data: data}
}

// AuctionSessions is the number of feed sessions watching an auction.
type AuctionSessions struct {
	AuctionID string `json:"auction_id"`
	Sessions  int    `json:"sessions"`
}
