package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

const (
	MaxBidHistory    = 20
	MaxNotifications = 50
)

// Renderer prints subscription state to a terminal. It keeps the recent bid history
// and notification log in memory so they can be inspected.
type Renderer struct {
	out io.Writer
	log logger.Logger

	mu                sync.Mutex
	status            string
	statusKind        domain.StatusKind
	highestBid        *domain.Bid
	bids              []domain.Bid
	notifications     []domain.Notification
	notificationCount int
}

func NewRenderer(out io.Writer, log logger.Logger) *Renderer {
	return &Renderer{
		out:        out,
		log:        log,
		status:     "Disconnected",
		statusKind: domain.StatusDisconnected,
	}
}

func (r *Renderer) RenderConnectionState(status string, kind domain.StatusKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = status
	r.statusKind = kind
	r.printf("[status] %s (%s)\n", status, kind)
}

func (r *Renderer) RenderBid(bid domain.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := bid
	r.highestBid = &current

	r.bids = append([]domain.Bid{bid}, r.bids...)
	if len(r.bids) > MaxBidHistory {
		r.bids = r.bids[:MaxBidHistory]
	}

	r.printf("[bid] %s  $%.2f by %s at %s\n", bid.DisplayTitle(), bid.Amount, bid.BidderID,
		bid.BidTime.Format("15:04:05"))
}

func (r *Renderer) AppendNotification(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notificationCount++
	r.notifications = append([]domain.Notification{n}, r.notifications...)
	if len(r.notifications) > MaxNotifications {
		r.notifications = r.notifications[:MaxNotifications]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s\n", n.Time.Format("15:04:05"), strings.ToUpper(string(n.Kind)), n.Message)
	for _, detail := range n.Details {
		fmt.Fprintf(&b, "    %s\n", detail)
	}
	r.printf("%s", b.String())

	if n.Kind == domain.KindError {
		r.log.Warn("Notification", "message", n.Message)
	} else {
		r.log.Debug("Notification", "kind", string(n.Kind), "message", n.Message)
	}
}

// ResetAuction clears the current bid display. The notification log is kept.
func (r *Renderer) ResetAuction() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.highestBid = nil
	r.bids = nil
}

func (r *Renderer) Status() (string, domain.StatusKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.statusKind
}

func (r *Renderer) HighestBid() (domain.Bid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.highestBid == nil {
		return domain.Bid{}, false
	}
	return *r.highestBid, true
}

// Bids returns the bid history, newest first.
func (r *Renderer) Bids() []domain.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Bid, len(r.bids))
	copy(out, r.bids)
	return out
}

// Notifications returns the notification log, newest first.
func (r *Renderer) Notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func (r *Renderer) NotificationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notificationCount
}

func (r *Renderer) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.log.Error("Failed to write output", "error", err)
	}
}
