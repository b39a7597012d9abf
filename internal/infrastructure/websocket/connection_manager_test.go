package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type stubConnection struct {
	id        string
	auctionID string
	sendErr   error

	mu     sync.Mutex
	sent   []string
	closed bool
}

func (c *stubConnection) ID() string        { return c.id }
func (c *stubConnection) AuctionID() string { return c.auctionID }

func (c *stubConnection) Send(message interface{}) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, string(data))
	return nil
}

func (c *stubConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestConnectionManagerRegistry(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	cm.RegisterConnection(&stubConnection{id: "s1", auctionID: "1"})
	cm.RegisterConnection(&stubConnection{id: "s2", auctionID: "1"})
	cm.RegisterConnection(&stubConnection{id: "s3", auctionID: "2"})

	assert.Equal(t, 2, cm.SessionCount("1"))
	assert.Equal(t, []domain.AuctionSessions{{AuctionID: "1", Sessions: 2}, {AuctionID: "2", Sessions: 1}}, cm.Snapshot())

	cm.UnregisterConnection("s3", "2")
	cm.UnregisterConnection("missing", "2")

	assert.Equal(t, 0, cm.SessionCount("2"))
	assert.Equal(t, []domain.AuctionSessions{{AuctionID: "1", Sessions: 2}}, cm.Snapshot())
}

func TestBroadcastDropsFailedSessions(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	good := &stubConnection{id: "good", auctionID: "9"}
	bad := &stubConnection{id: "bad", auctionID: "9", sendErr: errors.New("broken pipe")}
	other := &stubConnection{id: "other", auctionID: "10"}
	cm.RegisterConnection(good)
	cm.RegisterConnection(bad)
	cm.RegisterConnection(other)

	require.NoError(t, cm.BroadcastToAuction("9", map[string]string{"type": "bidUpdate"}))

	assert.Equal(t, []string{`{"type":"bidUpdate"}`}, good.sent)
	assert.Empty(t, other.sent)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, cm.SessionCount("9"))
}

func TestBroadcastMarshalError(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	err := cm.BroadcastToAuction("1", make(chan int))

	assert.Error(t, err)
}

func TestCloseAll(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	a := &stubConnection{id: "a", auctionID: "1"}
	b := &stubConnection{id: "b", auctionID: "2"}
	cm.RegisterConnection(a)
	cm.RegisterConnection(b)

	cm.CloseAll()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Empty(t, cm.Snapshot())
}

func TestNotifierRespectsCancelledContext(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	conn := &stubConnection{id: "a", auctionID: "1"}
	cm.RegisterConnection(conn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWebSocketNotifier(cm).BroadcastToAuction(ctx, "1", map[string]string{"type": "x"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.sent)
}
