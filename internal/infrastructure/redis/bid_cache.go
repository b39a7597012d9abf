package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"auction-monitor/internal/domain"
)

// RedisBidCache keeps the most recent bid of each auction in a hash.
type RedisBidCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBidCache(client *redis.Client, ttl time.Duration) *RedisBidCache {
	return &RedisBidCache{client: client, ttl: ttl}
}

func bidKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:latest_bid", auctionID)
}

// RecordBid stores event unless a newer bid is already cached.
func (r *RedisBidCache) RecordBid(ctx context.Context, event *domain.BidEvent) error {
	luaScript := `
        local stored = redis.call('HGET', KEYS[1], 'timestamp')
        if stored and tonumber(stored) > tonumber(ARGV[4]) then
            return 0
        end
        redis.call('HSET', KEYS[1],
            'amount', ARGV[1],
            'bidder_username', ARGV[2],
            'auction_title', ARGV[3],
            'timestamp', ARGV[4])
        if tonumber(ARGV[5]) > 0 then
            redis.call('PEXPIRE', KEYS[1], ARGV[5])
        end
        return 1
    `

	err := r.client.Eval(ctx, luaScript, []string{bidKey(event.AuctionID)},
		strconv.FormatFloat(event.Amount, 'f', -1, 64),
		event.BidderUsername,
		event.AuctionTitle,
		strconv.FormatInt(event.Timestamp.UnixMilli(), 10),
		strconv.FormatInt(r.ttl.Milliseconds(), 10),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("record bid for auction %s: %w", event.AuctionID, err)
	}
	return nil
}

// GetLatestBid returns domain.ErrBidNotFound when nothing is cached for the auction.
func (r *RedisBidCache) GetLatestBid(ctx context.Context, auctionID string) (*domain.BidEvent, error) {
	result, err := r.client.HGetAll(ctx, bidKey(auctionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get latest bid for auction %s: %w", auctionID, err)
	}
	if len(result) == 0 {
		return nil, domain.ErrBidNotFound
	}

	amount, err := strconv.ParseFloat(result["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached amount: %w", err)
	}
	millis, err := strconv.ParseInt(result["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached timestamp: %w", err)
	}

	return &domain.BidEvent{
		AuctionID:      auctionID,
		AuctionTitle:   result["auction_title"],
		BidderUsername: result["bidder_username"],
		Amount:         amount,
		Timestamp:      time.UnixMilli(millis),
	}, nil
}
