package services

import (
	"sync"

	"github.com/google/uuid"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type SubscriptionConfig struct {
	Endpoint EndpointConfig
	Policy   ReconnectPolicy
}

// Subscription watches one auction. Each instance owns its own connection.
type Subscription struct {
	id         domain.SubscriptionID
	sessionID  string
	manager    *ConnectionManager
	dispatcher *MessageDispatcher
	adapter    *RenderAdapter
	log        logger.Logger

	mu        sync.RWMutex
	observers []domain.LifecycleHandler
}

func NewSubscription(
	id domain.SubscriptionID,
	cfg SubscriptionConfig,
	transport domain.Transport,
	scheduler domain.Scheduler,
	renderer domain.Renderer,
	log logger.Logger,
) *Subscription {
	sessionID := uuid.New().String()
	log = log.With("auction_id", id.String(), "session_id", sessionID)

	s := &Subscription{
		id:        id,
		sessionID: sessionID,
		log:       log,
	}
	s.adapter = NewRenderAdapter(id, renderer)
	s.dispatcher = NewMessageDispatcher(id, s.adapter, log)
	s.manager = NewConnectionManager(id, cfg.Endpoint, cfg.Policy, transport, scheduler, log)

	s.manager.SetFrameHandler(func(frame []byte) {
		// Dispatch errors are already rendered; the connection stays up.
		_ = s.dispatcher.Dispatch(frame)
	})
	s.manager.SetLifecycleHandler(s.handleLifecycle)

	return s
}

func (s *Subscription) ID() domain.SubscriptionID {
	return s.id
}

// SessionID distinguishes this subscription in logs.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

func (s *Subscription) Open() {
	s.manager.Open()
}

func (s *Subscription) Close() error {
	return s.manager.Close()
}

func (s *Subscription) State() domain.ConnectionState {
	return s.manager.State()
}

func (s *Subscription) Attempts() int {
	return s.manager.Attempts()
}

func (s *Subscription) Endpoint() string {
	return s.manager.Endpoint()
}

// OnLifecycle registers an extra observer. Observers run after the renderer.
func (s *Subscription) OnLifecycle(handler domain.LifecycleHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, handler)
}

func (s *Subscription) handleLifecycle(event domain.LifecycleEvent) {
	s.adapter.HandleLifecycle(event)

	s.mu.RLock()
	observers := make([]domain.LifecycleHandler, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, observer := range observers {
		observer(event)
	}
}
