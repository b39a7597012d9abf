package services

import (
	"sync"
	"time"

	"auction-monitor/internal/domain"
)

type fakeSocket struct {
	mu     sync.Mutex
	closed bool
	code   int
	reason string
	err    error
}

func (s *fakeSocket) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.code = code
	s.reason = reason
	return s.err
}

type dialRecord struct {
	endpoint string
	handler  domain.TransportHandler
	socket   *fakeSocket
}

type fakeTransport struct {
	mu      sync.Mutex
	dials   []dialRecord
	dialErr error
}

func (t *fakeTransport) Dial(endpoint string, handler domain.TransportHandler) (domain.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialErr != nil {
		t.dials = append(t.dials, dialRecord{endpoint: endpoint, handler: handler})
		return nil, t.dialErr
	}
	socket := &fakeSocket{}
	t.dials = append(t.dials, dialRecord{endpoint: endpoint, handler: handler, socket: socket})
	return socket, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

func (t *fakeTransport) last() dialRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[len(t.dials)-1]
}

func (t *fakeTransport) dial(i int) dialRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[i]
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler runs callbacks only when the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *manualScheduler) timer(i int) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[i]
}

// fire runs a timer even if it was stopped, like a time.AfterFunc that raced Stop.
func (s *manualScheduler) fire(t *manualTimer) {
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.fn()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (r *eventRecorder) handle(event domain.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(eventType domain.LifecycleEventType) []domain.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LifecycleEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) types() []domain.LifecycleEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LifecycleEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingHandler struct {
	infos    []domain.ConnectionInfo
	bids     []domain.Bid
	unknown  []string
	failures []error
}

func (h *recordingHandler) HandleConnectionInfo(info domain.ConnectionInfo) {
	h.infos = append(h.infos, info)
}

func (h *recordingHandler) HandleBidUpdate(bid domain.Bid) {
	h.bids = append(h.bids, bid)
}

func (h *recordingHandler) HandleUnknownType(tag string) {
	h.unknown = append(h.unknown, tag)
}

func (h *recordingHandler) HandleDispatchError(err error) {
	h.failures = append(h.failures, err)
}

type statusCall struct {
	status string
	kind   domain.StatusKind
}

type fakeRenderer struct {
	mu            sync.Mutex
	statuses      []statusCall
	bids          []domain.Bid
	notifications []domain.Notification
	resets        int
}

func (r *fakeRenderer) RenderConnectionState(status string, kind domain.StatusKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusCall{status: status, kind: kind})
}

func (r *fakeRenderer) RenderBid(bid domain.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, bid)
}

func (r *fakeRenderer) AppendNotification(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *fakeRenderer) ResetAuction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *fakeRenderer) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n.Message)
	}
	return out
}

func (r *fakeRenderer) lastStatus() statusCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return statusCall{}
	}
	return r.statuses[len(r.statuses)-1]
}
