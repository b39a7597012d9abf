package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-monitor/internal/domain"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBidEvent(ctx context.Context, event *domain.BidEvent) error {
	query := `
        INSERT INTO bid_events (auction_id, bidder_username, amount, auction_title, timestamp, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		event.AuctionID, event.BidderUsername, event.Amount,
		event.AuctionTitle, event.Timestamp, time.Now())
	if err != nil {
		return fmt.Errorf("save bid event for auction %s: %w", event.AuctionID, err)
	}
	return nil
}

// GetBidHistory returns up to limit bids of the auction, newest first.
func (r *MySQLBidRepository) GetBidHistory(ctx context.Context, auctionID string, limit int) ([]*domain.BidEvent, error) {
	query := `
        SELECT auction_id, bidder_username, amount, auction_title, timestamp
        FROM bid_events
        WHERE auction_id = ?
        ORDER BY timestamp DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query bid history for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var events []*domain.BidEvent
	for rows.Next() {
		var event domain.BidEvent
		var title sql.NullString

		if err := rows.Scan(&event.AuctionID, &event.BidderUsername, &event.Amount,
			&title, &event.Timestamp); err != nil {
			return nil, err
		}

		event.AuctionTitle = title.String
		events = append(events, &event)
	}

	return events, rows.Err()
}
