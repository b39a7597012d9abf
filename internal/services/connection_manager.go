package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// Delay is linear in the attempt number.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// ConnectionManager keeps one logical connection open for a subscription.
//
// State changes happen under mu. Lifecycle events and inbound frames are handed to
// the registered handlers after mu is released, so handlers may call Open or Close.
type ConnectionManager struct {
	subscriptionID domain.SubscriptionID
	endpointCfg    EndpointConfig
	policy         ReconnectPolicy
	transport      domain.Transport
	scheduler      domain.Scheduler
	log            logger.Logger

	onFrame func(frame []byte)
	onEvent domain.LifecycleHandler

	mu          sync.Mutex
	state       domain.ConnectionState
	attempts    int
	generation  uint64 // identifies the current socket; callbacks from older sockets are dropped
	socket      domain.Socket
	endpoint    string
	reopen      domain.Timer
	reopenToken uint64
}

func NewConnectionManager(
	subscriptionID domain.SubscriptionID,
	endpointCfg EndpointConfig,
	policy ReconnectPolicy,
	transport domain.Transport,
	scheduler domain.Scheduler,
	log logger.Logger,
) *ConnectionManager {
	return &ConnectionManager{
		subscriptionID: subscriptionID,
		endpointCfg:    endpointCfg,
		policy:         policy,
		transport:      transport,
		scheduler:      scheduler,
		log:            log,
		state:          domain.StateIdle,
	}
}

func (cm *ConnectionManager) SetFrameHandler(handler func(frame []byte)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onFrame = handler
}

func (cm *ConnectionManager) SetLifecycleHandler(handler domain.LifecycleHandler) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onEvent = handler
}

func (cm *ConnectionManager) State() domain.ConnectionState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

func (cm *ConnectionManager) Attempts() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.attempts
}

func (cm *ConnectionManager) Endpoint() string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.endpoint
}

// Open starts a connection unless one is already connecting or open. After the
// subscription has failed, Open starts over with a fresh attempt counter.
func (cm *ConnectionManager) Open() {
	cm.mu.Lock()
	events := cm.openLocked(true)
	cm.mu.Unlock()

	cm.emit(events)
}

// Close sends a normal closure and cancels any pending reconnect. The connection is
// never reopened automatically afterwards.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	cancelled := cm.cancelReopenLocked()
	active := cm.state == domain.StateOpen || cm.state == domain.StateConnecting
	if !active {
		var events []domain.LifecycleEvent
		if cancelled {
			cm.log.Info("Pending reconnect cancelled", "subscription_id", cm.subscriptionID)
			events = append(events, cm.newEvent(domain.EventClosed, func(e *domain.LifecycleEvent) {
				e.CloseCode = domain.CloseNormalClosure
				e.Reason = domain.UserDisconnectReason
			}))
		}
		cm.mu.Unlock()
		cm.emit(events)
		return nil
	}

	socket := cm.socket
	cm.state = domain.StateClosing
	cm.generation++
	cm.socket = nil
	cm.mu.Unlock()

	var err error
	if socket != nil {
		if closeErr := socket.Close(domain.CloseNormalClosure, domain.UserDisconnectReason); closeErr != nil {
			err = fmt.Errorf("close subscription %s: %w", cm.subscriptionID, closeErr)
		}
	}

	cm.mu.Lock()
	// Open may have run while the socket was closing; leave its state alone.
	if cm.state == domain.StateClosing {
		cm.state = domain.StateClosed
	}
	event := cm.newEvent(domain.EventClosed, func(e *domain.LifecycleEvent) {
		e.CloseCode = domain.CloseNormalClosure
		e.Reason = domain.UserDisconnectReason
		e.Err = err
	})
	cm.mu.Unlock()

	cm.log.Info("Disconnected by user", "subscription_id", cm.subscriptionID)
	cm.emit([]domain.LifecycleEvent{event})
	return err
}

func (cm *ConnectionManager) openLocked(manual bool) []domain.LifecycleEvent {
	if cm.state == domain.StateConnecting || cm.state == domain.StateOpen {
		cm.log.Debug("Already connecting or connected", "subscription_id", cm.subscriptionID,
			"state", cm.state.String())
		return nil
	}

	if manual {
		cm.cancelReopenLocked()
		if cm.state == domain.StateFailed {
			cm.attempts = 0
		}
	}

	cm.generation++
	generation := cm.generation
	cm.state = domain.StateConnecting
	cm.socket = nil

	endpoint, err := BuildEndpoint(cm.endpointCfg, cm.subscriptionID)
	cm.endpoint = endpoint

	events := []domain.LifecycleEvent{cm.newEvent(domain.EventConnecting, nil)}
	if err != nil {
		return append(events, cm.creationFailedLocked(&domain.TransportCreationError{Err: err})...)
	}

	cm.log.Info("Connecting to auction", "subscription_id", cm.subscriptionID, "endpoint", endpoint,
		"attempt", cm.attempts)

	socket, err := cm.transport.Dial(endpoint, &socketHandler{cm: cm, generation: generation})
	if err != nil {
		var creationErr *domain.TransportCreationError
		if !errors.As(err, &creationErr) {
			err = &domain.TransportCreationError{Endpoint: endpoint, Err: err}
		}
		return append(events, cm.creationFailedLocked(err)...)
	}

	cm.socket = socket
	return events
}

// creationFailedLocked treats a transport that could not be created like a failed
// connection.
func (cm *ConnectionManager) creationFailedLocked(err error) []domain.LifecycleEvent {
	cm.log.Error("Failed to create WebSocket", "subscription_id", cm.subscriptionID, "error", err)

	cm.state = domain.StateClosed
	events := []domain.LifecycleEvent{cm.newEvent(domain.EventError, func(e *domain.LifecycleEvent) {
		e.Err = err
	})}
	return append(events, cm.reconnectLocked()...)
}

func (cm *ConnectionManager) reconnectLocked() []domain.LifecycleEvent {
	if cm.attempts >= cm.policy.MaxAttempts {
		cm.state = domain.StateFailed
		cm.log.Warn("Max reconnection attempts reached", "subscription_id", cm.subscriptionID,
			"attempts", cm.attempts)
		return []domain.LifecycleEvent{cm.newEvent(domain.EventReconnectExhausted, func(e *domain.LifecycleEvent) {
			e.Err = &domain.ReconnectExhaustedError{Attempts: cm.attempts}
		})}
	}

	cm.attempts++
	delay := cm.policy.Delay(cm.attempts)

	cm.reopenToken++
	token := cm.reopenToken
	cm.reopen = cm.scheduler.AfterFunc(delay, func() {
		cm.handleReopen(token)
	})

	cm.log.Info("Scheduling reconnect", "subscription_id", cm.subscriptionID,
		"attempt", cm.attempts, "max_attempts", cm.policy.MaxAttempts, "delay", delay)

	return []domain.LifecycleEvent{cm.newEvent(domain.EventReconnectScheduled, func(e *domain.LifecycleEvent) {
		e.Delay = delay
	})}
}

func (cm *ConnectionManager) cancelReopenLocked() bool {
	if cm.reopen == nil {
		return false
	}
	cm.reopen.Stop()
	cm.reopen = nil
	cm.reopenToken++
	return true
}

func (cm *ConnectionManager) handleReopen(token uint64) {
	cm.mu.Lock()
	if token != cm.reopenToken || cm.reopen == nil {
		cm.mu.Unlock()
		return
	}
	cm.reopen = nil

	// Only reconnect if still disconnected.
	if cm.state != domain.StateClosed {
		cm.mu.Unlock()
		return
	}
	events := cm.openLocked(false)
	cm.mu.Unlock()

	cm.emit(events)
}

func (cm *ConnectionManager) handleOpen(generation uint64) {
	cm.mu.Lock()
	if generation != cm.generation || cm.state != domain.StateConnecting {
		cm.mu.Unlock()
		return
	}
	cm.state = domain.StateOpen
	cm.attempts = 0
	event := cm.newEvent(domain.EventConnected, nil)
	cm.mu.Unlock()

	cm.log.Info("WebSocket connected", "subscription_id", cm.subscriptionID, "endpoint", event.Endpoint)
	cm.emit([]domain.LifecycleEvent{event})
}

func (cm *ConnectionManager) handleMessage(generation uint64, frame []byte) {
	cm.mu.Lock()
	live := generation == cm.generation && cm.state == domain.StateOpen
	onFrame := cm.onFrame
	cm.mu.Unlock()

	if !live {
		cm.log.Debug("Dropping frame from inactive socket", "subscription_id", cm.subscriptionID)
		return
	}
	if onFrame != nil {
		onFrame(frame)
	}
}

func (cm *ConnectionManager) handleError(generation uint64, err error) {
	cm.mu.Lock()
	if generation != cm.generation {
		cm.mu.Unlock()
		return
	}
	event := cm.newEvent(domain.EventError, func(e *domain.LifecycleEvent) {
		e.Err = err
	})
	cm.mu.Unlock()

	cm.log.Warn("WebSocket error", "subscription_id", cm.subscriptionID, "error", err)
	cm.emit([]domain.LifecycleEvent{event})
}

func (cm *ConnectionManager) handleClose(generation uint64, code int, reason string) {
	cm.mu.Lock()
	if generation != cm.generation ||
		(cm.state != domain.StateConnecting && cm.state != domain.StateOpen) {
		cm.mu.Unlock()
		return
	}

	cm.state = domain.StateClosed
	cm.socket = nil
	events := []domain.LifecycleEvent{cm.newEvent(domain.EventDisconnected, func(e *domain.LifecycleEvent) {
		e.CloseCode = code
		e.Reason = reason
	})}

	cm.log.Info("WebSocket connection closed", "subscription_id", cm.subscriptionID,
		"code", code, "reason", reason)

	if code != domain.CloseNormalClosure {
		events = append(events, cm.reconnectLocked()...)
	}
	cm.mu.Unlock()

	cm.emit(events)
}

func (cm *ConnectionManager) newEvent(eventType domain.LifecycleEventType, fill func(e *domain.LifecycleEvent)) domain.LifecycleEvent {
	event := domain.LifecycleEvent{
		Type:           eventType,
		SubscriptionID: cm.subscriptionID,
		Endpoint:       cm.endpoint,
		State:          cm.state,
		Attempt:        cm.attempts,
		MaxAttempts:    cm.policy.MaxAttempts,
	}
	if fill != nil {
		fill(&event)
	}
	return event
}

func (cm *ConnectionManager) emit(events []domain.LifecycleEvent) {
	if len(events) == 0 {
		return
	}

	cm.mu.Lock()
	handler := cm.onEvent
	cm.mu.Unlock()

	if handler == nil {
		return
	}
	for _, event := range events {
		handler(event)
	}
}

// socketHandler ties transport callbacks to the dial that created them.
type socketHandler struct {
	cm         *ConnectionManager
	generation uint64
}

func (h *socketHandler) OnOpen() {
	h.cm.handleOpen(h.generation)
}

func (h *socketHandler) OnMessage(data []byte) {
	h.cm.handleMessage(h.generation, data)
}

func (h *socketHandler) OnClose(code int, reason string) {
	h.cm.handleClose(h.generation, code, reason)
}

func (h *socketHandler) OnError(err error) {
	h.cm.handleError(h.generation, err)
}
