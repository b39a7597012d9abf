package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

// SessionReporter periodically logs how many sessions watch each auction.
type SessionReporter struct {
	cron     *cron.Cron
	registry domain.SessionRegistry
	interval time.Duration
	log      logger.Logger
}

func NewSessionReporter(registry domain.SessionRegistry, interval time.Duration, log logger.Logger) *SessionReporter {
	return &SessionReporter{
		cron:     cron.New(),
		registry: registry,
		interval: interval,
		log:      log,
	}
}

func (r *SessionReporter) Start() error {
	if r.interval <= 0 {
		r.log.Info("Session report disabled")
		return nil
	}

	r.log.Info("Starting session report", "interval", r.interval)
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.Report() }); err != nil {
		return fmt.Errorf("schedule session report: %w", err)
	}

	r.cron.Start()
	return nil
}

func (r *SessionReporter) Stop() {
	r.log.Info("Stopping session report")
	<-r.cron.Stop().Done()
}

// Report logs the current session counts and returns the total.
func (r *SessionReporter) Report() int {
	snapshot := r.registry.Snapshot()
	total := 0
	for _, entry := range snapshot {
		total += entry.Sessions
		r.log.Info("Active sessions", "auction_id", entry.AuctionID, "sessions", entry.Sessions)
	}
	r.log.Info("Session report", "auctions", len(snapshot), "sessions", total)
	return total
}
