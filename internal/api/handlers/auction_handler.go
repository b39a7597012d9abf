package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"auction-monitor/internal/domain"
	"auction-monitor/internal/services"
	"auction-monitor/pkg/logger"
)

const maxHistoryLimit = 100

// AuctionHandler serves the feed admin API.
type AuctionHandler struct {
	feed         *services.FeedService
	publisher    domain.EventPublisher
	registry     domain.SessionRegistry
	historyLimit int
	validate     *validator.Validate
	log          logger.Logger
	now          func() time.Time
}

type PlaceBidRequest struct {
	BidAmount      *float64 `json:"bid_amount" validate:"required,gte=0"`
	BidderUsername string   `json:"bidder_username" validate:"required"`
	AuctionTitle   string   `json:"auction_title"`
}

type PlaceBidResponse struct {
	AuctionID string `json:"auction_id"`
	Status    string `json:"status"`
	Published bool   `json:"published"`
}

type SessionsResponse struct {
	AuctionID string `json:"auction_id"`
	Sessions  int    `json:"sessions"`
}

type BidResponse struct {
	AuctionID      string  `json:"auction_id"`
	AuctionTitle   string  `json:"auction_title,omitempty"`
	BidderUsername string  `json:"bidder_username"`
	BidAmount      float64 `json:"bid_amount"`
	BidTime        string  `json:"bid_time"`
}

// NewAuctionHandler builds the handler. When publisher is nil bids are broadcast directly
// instead of going through the event channel.
func NewAuctionHandler(feed *services.FeedService, publisher domain.EventPublisher,
	registry domain.SessionRegistry, historyLimit int, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		feed:         feed,
		publisher:    publisher,
		registry:     registry,
		historyLimit: historyLimit,
		validate:     validator.New(),
		log:          log,
		now:          time.Now,
	}
}

func (h *AuctionHandler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.POST("/auctions/:id/bids", h.PlaceBid)
	api.GET("/auctions/:id/bids", h.GetBidHistory)
	api.GET("/auctions/:id/latest-bid", h.GetLatestBid)
	api.GET("/auctions/:id/sessions", h.GetSessions)
	api.GET("/sessions", h.ListSessions)

	e.GET("/health", h.Health)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")
	h.log.Info("PlaceBid endpoint called",
		"auction_id", auctionID,
		"remote_addr", c.RealIP(),
		"content_type", c.Request().Header.Get("Content-Type"))

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	event := &domain.BidEvent{
		AuctionID:      auctionID,
		AuctionTitle:   req.AuctionTitle,
		BidderUsername: req.BidderUsername,
		Amount:         *req.BidAmount,
		Timestamp:      h.now(),
	}

	ctx := c.Request().Context()
	published := h.publisher != nil
	var err error
	if published {
		err = h.publisher.PublishBidEvent(ctx, event)
	} else {
		err = h.feed.HandleBidEvent(ctx, event)
	}
	if errors.Is(err, domain.ErrValidation) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.log.Error("Failed to submit bid", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to submit bid"})
	}

	return c.JSON(http.StatusAccepted, PlaceBidResponse{
		AuctionID: auctionID,
		Status:    "accepted",
		Published: published,
	})
}

func (h *AuctionHandler) GetSessions(c echo.Context) error {
	auctionID := c.Param("id")
	return c.JSON(http.StatusOK, SessionsResponse{
		AuctionID: auctionID,
		Sessions:  h.registry.SessionCount(auctionID),
	})
}

func (h *AuctionHandler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Snapshot())
}

func (h *AuctionHandler) GetLatestBid(c echo.Context) error {
	auctionID := c.Param("id")

	bid, err := h.feed.LatestBid(c.Request().Context(), auctionID)
	if errors.Is(err, domain.ErrBidNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No bid recorded"})
	}
	if err != nil {
		h.log.Error("Failed to get latest bid", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get latest bid"})
	}

	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *AuctionHandler) GetBidHistory(c echo.Context) error {
	auctionID := c.Param("id")

	limit := h.historyLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
		}
		limit = parsed
	}

	bids, err := h.feed.BidHistory(c.Request().Context(), auctionID, limit)
	if err != nil {
		h.log.Error("Failed to get bid history", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get bid history"})
	}

	response := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		response = append(response, toBidResponse(bid))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *AuctionHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "auction-feed",
		"timestamp": h.now().Format(time.RFC3339),
	})
}

func toBidResponse(bid *domain.BidEvent) BidResponse {
	return BidResponse{
		AuctionID:      bid.AuctionID,
		AuctionTitle:   bid.AuctionTitle,
		BidderUsername: bid.BidderUsername,
		BidAmount:      bid.Amount,
		BidTime:        bid.Timestamp.Format(domain.BidTimeLayout),
	}
}
