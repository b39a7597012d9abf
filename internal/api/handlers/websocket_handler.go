package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"auction-monitor/internal/api/middleware"
	"auction-monitor/internal/infrastructure/websocket"
	"auction-monitor/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
	log       logger.Logger
}

func NewWebSocketHandlers(connManager *websocket.ConnectionManager, writeTimeout time.Duration,
	log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(connManager, writeTimeout, log),
		log:       log,
	}
}

// Router serves the feed endpoint under basePath.
func (h *WebSocketHandlers) Router(basePath string) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.CORSWithLogging(h.log))
	h.wsHandler.Routes(router, basePath)
	return router
}
