package console

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

func TestRendererKeepsNewestBids(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, logger.NewNop())

	for i := 1; i <= MaxBidHistory+5; i++ {
		r.RenderBid(domain.Bid{AuctionID: "1", Amount: float64(i), BidderID: fmt.Sprintf("user%d", i)})
	}

	bids := r.Bids()
	require.Len(t, bids, MaxBidHistory)
	assert.Equal(t, float64(MaxBidHistory+5), bids[0].Amount)
	assert.Equal(t, float64(6), bids[MaxBidHistory-1].Amount)

	highest, ok := r.HighestBid()
	require.True(t, ok)
	assert.Equal(t, "user25", highest.BidderID)
	assert.Contains(t, out.String(), "Auction Title #1  $25.00 by user25")
}

func TestRendererCapsNotifications(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, logger.NewNop())

	for i := 0; i < MaxNotifications+10; i++ {
		r.AppendNotification(domain.Notification{Message: fmt.Sprintf("n%d", i), Kind: domain.KindInfo})
	}

	notifications := r.Notifications()
	require.Len(t, notifications, MaxNotifications)
	assert.Equal(t, "n59", notifications[0].Message)
	assert.Equal(t, MaxNotifications+10, r.NotificationCount())
}

func TestRendererNotificationOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, logger.NewNop())

	r.AppendNotification(domain.Notification{
		Message: "New Bid Received!",
		Details: []string{"Bid Amount: $5.00", "Bidder: alice"},
		Kind:    domain.KindBid,
		Time:    time.Date(2024, 1, 1, 10, 11, 12, 0, time.UTC),
	})

	assert.Equal(t, "10:11:12 [BID] New Bid Received!\n    Bid Amount: $5.00\n    Bidder: alice\n", out.String())
}

func TestRendererResetAndStatus(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, logger.NewNop())
	status, kind := r.Status()
	assert.Equal(t, "Disconnected", status)
	assert.Equal(t, domain.StatusDisconnected, kind)

	r.RenderConnectionState("Connected", domain.StatusConnected)
	r.RenderBid(domain.Bid{AuctionID: "1", Amount: 3, BidderID: "a"})
	r.AppendNotification(domain.Notification{Message: "kept"})
	r.ResetAuction()

	status, kind = r.Status()
	assert.Equal(t, "Connected", status)
	assert.Equal(t, domain.StatusConnected, kind)
	assert.Empty(t, r.Bids())
	_, ok := r.HighestBid()
	assert.False(t, ok)
	assert.Len(t, r.Notifications(), 1)
}
