package websocket

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler serves /[basePath/]auction-updates/{auctionId}.
type WebSocketHandler struct {
	connManager  *ConnectionManager
	writeTimeout time.Duration
	log          logger.Logger
	now          func() time.Time
}

func NewWebSocketHandler(connManager *ConnectionManager, writeTimeout time.Duration, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		connManager:  connManager,
		writeTimeout: writeTimeout,
		log:          log,
		now:          time.Now,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionId"]
	if auctionID == "" {
		http.Error(w, "auction id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err, "auction_id", auctionID)
		return
	}

	wsConn := NewWebSocketConnection(conn, uuid.New().String(), auctionID, h.writeTimeout)

	// The greeting goes out before registration so no broadcast can overtake it.
	if err := wsConn.Send(domain.NewConnectionFrame(auctionID)); err != nil {
		h.log.Warn("Failed to send connection confirmation", "session_id", wsConn.ID(), "error", err)
		_ = wsConn.Close()
		return
	}
	h.connManager.RegisterConnection(wsConn)

	go h.handleMessages(wsConn)
}

// handleMessages answers every client frame with a heartbeat until the session ends.
func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn.ID(), conn.AuctionID())
		_ = conn.Close()
	}()

	for {
		_, _, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("WebSocket connection closed unexpectedly", "session_id", conn.ID(), "error", err)
			} else {
				h.log.Info("WebSocket connection closed", "session_id", conn.ID(), "auction_id", conn.AuctionID())
			}
			return
		}

		if err := conn.Send(domain.NewHeartbeatFrame(h.now())); err != nil {
			h.log.Warn("Failed to send heartbeat", "session_id", conn.ID(), "error", err)
			return
		}
	}
}

// WebSocketConnection is one feed session.
type WebSocketConnection struct {
	conn         *websocket.Conn
	id           string
	auctionID    string
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, id, auctionID string, writeTimeout time.Duration) *WebSocketConnection {
	return &WebSocketConnection{
		conn:         conn,
		id:           id,
		auctionID:    auctionID,
		writeTimeout: writeTimeout,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	if wsc.writeTimeout > 0 {
		_ = wsc.conn.SetWriteDeadline(time.Now().Add(wsc.writeTimeout))
	}
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}

// Routes registers the feed endpoint on router, under basePath when it is not empty.
func (h *WebSocketHandler) Routes(router *mux.Router, basePath string) {
	path := "/auction-updates/{auctionId}"
	if basePath = strings.Trim(basePath, "/"); basePath != "" {
		path = "/" + basePath + path
	}
	router.HandleFunc(path, h.HandleConnection).Methods(http.MethodGet, http.MethodOptions)
}
