package websocket

import (
	"encoding/json"
	"sort"
	"sync"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

// ConnectionManager tracks feed sessions by auction.
type ConnectionManager struct {
	connections map[string]map[string]domain.FeedConnection // auctionID -> sessionID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.FeedConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn domain.FeedConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionID := conn.AuctionID()
	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.FeedConnection)
	}
	cm.connections[auctionID][conn.ID()] = conn

	cm.log.Info("Connection registered", "session_id", conn.ID(), "auction_id", auctionID,
		"sessions", len(cm.connections[auctionID]))
}

func (cm *ConnectionManager) UnregisterConnection(sessionID, auctionID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists {
		return
	}
	if _, ok := auctionConns[sessionID]; !ok {
		return
	}
	delete(auctionConns, sessionID)
	if len(auctionConns) == 0 {
		delete(cm.connections, auctionID)
	}

	cm.log.Info("Connection unregistered", "session_id", sessionID, "auction_id", auctionID)
}

// CloseAll closes and forgets every session.
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.Lock()
	connections := cm.connections
	cm.connections = make(map[string]map[string]domain.FeedConnection)
	cm.mutex.Unlock()

	for auctionID, auctionConns := range connections {
		for sessionID, conn := range auctionConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "session_id", sessionID,
					"auction_id", auctionID, "error", err)
			}
		}
	}
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.FeedConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.FeedConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) SessionCount(auctionID string) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections[auctionID])
}

// Snapshot returns session counts for every auction with at least one session.
func (cm *ConnectionManager) Snapshot() []domain.AuctionSessions {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	snapshot := make([]domain.AuctionSessions, 0, len(cm.connections))
	for auctionID, conns := range cm.connections {
		snapshot = append(snapshot, domain.AuctionSessions{AuctionID: auctionID, Sessions: len(conns)})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].AuctionID < snapshot[j].AuctionID
	})
	return snapshot
}

// BroadcastToAuction sends message to every session of the auction. Sessions whose
// write fails are closed and dropped.
func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	connections := cm.GetConnectionsForAuction(auctionID)
	cm.log.Debug("Broadcasting to auction", "auction_id", auctionID, "sessions", len(connections))

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(messageBytes)); err != nil {
			cm.log.Error("Failed to send message", "session_id", conn.ID(),
				"auction_id", auctionID, "error", err)
			cm.UnregisterConnection(conn.ID(), auctionID)
			_ = conn.Close()
			continue
		}
	}

	return nil
}
