package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"auction-monitor/internal/domain"
)

type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

// GetAuction returns domain.ErrAuctionNotFound when no row matches.
func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT id, title FROM auctions WHERE id = ?`

	var auction domain.Auction
	var title sql.NullString
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(&auction.ID, &title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}

	auction.Title = title.String
	return &auction, nil
}
