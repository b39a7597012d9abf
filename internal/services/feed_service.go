package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

// FeedService turns bid events into bidUpdate broadcasts. The auction repository,
// bid repository and cache are optional.
type FeedService struct {
	broadcaster domain.BidBroadcaster
	auctions    domain.AuctionRepository
	bids        domain.BidRepository
	cache       domain.BidCache
	log         logger.Logger
	now         func() time.Time
}

func NewFeedService(broadcaster domain.BidBroadcaster, auctions domain.AuctionRepository,
	bids domain.BidRepository, cache domain.BidCache, log logger.Logger) *FeedService {
	return &FeedService{
		broadcaster: broadcaster,
		auctions:    auctions,
		bids:        bids,
		cache:       cache,
		log:         log,
		now:         time.Now,
	}
}

// Start blocks, feeding events from subscriber until ctx is done.
func (s *FeedService) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	s.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, func(event *domain.BidEvent) error {
		return s.HandleBidEvent(ctx, event)
	})
}

func (s *FeedService) HandleBidEvent(ctx context.Context, event *domain.BidEvent) error {
	if err := validateBidEvent(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	s.log.Info("Handling bid event", "auction_id", event.AuctionID, "bidder", event.BidderUsername,
		"amount", event.Amount)

	if event.AuctionTitle == "" {
		s.enrichTitle(ctx, event)
	}

	if s.bids != nil {
		if err := s.bids.SaveBidEvent(ctx, event); err != nil {
			s.log.Error("Failed to save bid event", "auction_id", event.AuctionID, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.RecordBid(ctx, event); err != nil {
			s.log.Error("Failed to cache bid", "auction_id", event.AuctionID, "error", err)
		}
	}

	if err := s.broadcaster.BroadcastBid(ctx, event); err != nil {
		return fmt.Errorf("broadcast bid for auction %s: %w", event.AuctionID, err)
	}
	return nil
}

func (s *FeedService) enrichTitle(ctx context.Context, event *domain.BidEvent) {
	if s.auctions == nil {
		return
	}
	auction, err := s.auctions.GetAuction(ctx, event.AuctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		s.log.Debug("No auction record for bid", "auction_id", event.AuctionID)
		return
	}
	if err != nil {
		s.log.Warn("Failed to look up auction title", "auction_id", event.AuctionID, "error", err)
		return
	}
	event.AuctionTitle = auction.Title
}

// LatestBid returns the cached latest bid, or domain.ErrBidNotFound.
func (s *FeedService) LatestBid(ctx context.Context, auctionID string) (*domain.BidEvent, error) {
	if s.cache == nil {
		return nil, domain.ErrBidNotFound
	}
	return s.cache.GetLatestBid(ctx, auctionID)
}

// BidHistory returns stored bids, newest first. It is empty without a bid repository.
func (s *FeedService) BidHistory(ctx context.Context, auctionID string, limit int) ([]*domain.BidEvent, error) {
	if s.bids == nil {
		return []*domain.BidEvent{}, nil
	}
	return s.bids.GetBidHistory(ctx, auctionID, limit)
}

func validateBidEvent(event *domain.BidEvent) error {
	switch {
	case event == nil:
		return &domain.ValidationError{MessageType: "bid_event", Field: "event", Reason: "is required"}
	case event.AuctionID == "":
		return &domain.ValidationError{MessageType: "bid_event", Field: "auction_id", Reason: "is required"}
	case event.BidderUsername == "":
		return &domain.ValidationError{MessageType: "bid_event", Field: "bidder_username", Reason: "is required"}
	case math.IsNaN(event.Amount) || math.IsInf(event.Amount, 0) || event.Amount < 0:
		return &domain.ValidationError{MessageType: "bid_event", Field: "amount", Reason: "must be a finite non-negative number"}
	}
	return nil
}
