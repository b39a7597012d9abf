package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type TransportConfig struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteTimeout     time.Duration
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// ClientTransport dials auction feeds with gorilla/websocket.
type ClientTransport struct {
	cfg    TransportConfig
	dialer *websocket.Dialer
	log    logger.Logger
}

func NewClientTransport(cfg TransportConfig, log logger.Logger) *ClientTransport {
	return &ClientTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: log,
	}
}

// Dial checks the endpoint and starts the handshake in the background. Handler
// callbacks come from a single goroutine per socket.
func (t *ClientTransport) Dial(endpoint string, handler domain.TransportHandler) (domain.Socket, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &domain.TransportCreationError{Endpoint: endpoint, Err: err}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &domain.TransportCreationError{Endpoint: endpoint,
			Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &domain.TransportCreationError{Endpoint: endpoint, Err: errors.New("missing host")}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &clientSocket{
		endpoint: endpoint,
		cfg:      t.cfg,
		handler:  handler,
		log:      t.log,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(ctx, t.dialer)
	return s, nil
}

type clientSocket struct {
	endpoint string
	cfg      TransportConfig
	handler  domain.TransportHandler
	log      logger.Logger
	cancel   context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu  sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

// Close writes a close frame and drops the connection. No callbacks follow.
func (s *clientSocket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	s.stop()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(s.cfg.WriteTimeout))
	s.writeMu.Unlock()
	_ = conn.Close()

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("write close frame: %w", err)
	}
	return nil
}

func (s *clientSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *clientSocket) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *clientSocket) run(ctx context.Context, dialer *websocket.Dialer) {
	defer s.stop()

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		if s.isClosed() {
			return
		}
		s.log.Warn("WebSocket handshake failed", "endpoint", s.endpoint, "error", err)
		s.handler.OnError(err)
		s.handler.OnClose(domain.CloseAbnormal, err.Error())
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	s.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline(conn)
		return nil
	})

	s.handler.OnOpen()
	go s.pingLoop(conn)

	code, reason, readErr := s.readLoop(conn)
	if s.isClosed() {
		return
	}
	if readErr != nil {
		s.handler.OnError(readErr)
	}
	s.handler.OnClose(code, reason)
}

// readLoop returns the close code and reason once the connection ends. A non-nil
// error means the connection ended without a close frame.
func (s *clientSocket) readLoop(conn *websocket.Conn) (int, string, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return closeErr.Code, closeErr.Text, nil
			}
			return domain.CloseAbnormal, err.Error(), err
		}
		if s.isClosed() {
			return domain.CloseNormalClosure, "", nil
		}
		s.extendReadDeadline(conn)
		s.handler.OnMessage(data)
	}
}

func (s *clientSocket) pingLoop(conn *websocket.Conn) {
	if s.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"),
				time.Now().Add(s.cfg.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debug("Failed to send ping", "endpoint", s.endpoint, "error", err)
			}
		}
	}
}

func (s *clientSocket) extendReadDeadline(conn *websocket.Conn) {
	if s.cfg.PongWait <= 0 {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
}
