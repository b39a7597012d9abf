package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type managerFixture struct {
	manager   *ConnectionManager
	transport *fakeTransport
	scheduler *manualScheduler
	events    *eventRecorder
	frames    [][]byte
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		transport: &fakeTransport{},
		scheduler: &manualScheduler{},
		events:    &eventRecorder{},
	}
	f.manager = NewConnectionManager(
		"42",
		EndpointConfig{PageURL: "http://localhost:8080/auction-web/"},
		DefaultReconnectPolicy(),
		f.transport,
		f.scheduler,
		logger.NewNop(),
	)
	f.manager.SetLifecycleHandler(f.events.handle)
	f.manager.SetFrameHandler(func(frame []byte) {
		f.frames = append(f.frames, frame)
	})
	return f
}

// abnormalClose closes the latest socket with 1006 and fires the scheduled reopen.
func (f *managerFixture) abnormalCloseAndReopen(t *testing.T) {
	t.Helper()
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	pending := f.scheduler.pending()
	require.Len(t, pending, 1)
	f.scheduler.fire(pending[0])
}

func TestOpenBuildsEndpointAndEmitsConnecting(t *testing.T) {
	f := newManagerFixture(t)

	f.manager.Open()

	require.Equal(t, 1, f.transport.dialCount())
	assert.Equal(t, "ws://localhost:8080/auction-web/auction-updates/42", f.transport.last().endpoint)
	assert.Equal(t, domain.StateConnecting, f.manager.State())
	assert.Equal(t, []domain.LifecycleEventType{domain.EventConnecting}, f.events.types())
}

func TestOpenTwiceWhileConnectingDialsOnce(t *testing.T) {
	f := newManagerFixture(t)

	f.manager.Open()
	f.manager.Open()

	assert.Equal(t, 1, f.transport.dialCount())
	assert.Equal(t, domain.StateConnecting, f.manager.State())
}

func TestOpenWhileOpenIsNoop(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().handler.OnOpen()

	f.manager.Open()

	assert.Equal(t, 1, f.transport.dialCount())
	assert.Equal(t, domain.StateOpen, f.manager.State())
}

func TestTransportOpenResetsAttempts(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.abnormalCloseAndReopen(t)
	f.abnormalCloseAndReopen(t)
	require.Equal(t, 2, f.manager.Attempts())

	f.transport.last().handler.OnOpen()

	assert.Equal(t, domain.StateOpen, f.manager.State())
	assert.Equal(t, 0, f.manager.Attempts())
	assert.Len(t, f.events.ofType(domain.EventConnected), 1)
}

func TestNormalClosureNeverReconnects(t *testing.T) {
	for prior := 0; prior < 5; prior++ {
		f := newManagerFixture(t)
		f.manager.Open()
		for i := 0; i < prior; i++ {
			f.abnormalCloseAndReopen(t)
		}
		require.Equal(t, prior, f.manager.Attempts())
		scheduled := f.scheduler.count()

		f.transport.last().handler.OnClose(domain.CloseNormalClosure, "bye")

		assert.Equal(t, scheduled, f.scheduler.count(), "prior attempts %d", prior)
		assert.Empty(t, f.scheduler.pending())
		assert.Equal(t, domain.StateClosed, f.manager.State())
		assert.Empty(t, f.events.ofType(domain.EventReconnectScheduled)[prior:])
	}
}

func TestAbnormalClosureSchedulesLinearBackoff(t *testing.T) {
	for prior := 0; prior < 5; prior++ {
		f := newManagerFixture(t)
		f.manager.Open()
		for i := 0; i < prior; i++ {
			f.abnormalCloseAndReopen(t)
		}

		f.transport.last().handler.OnClose(domain.CloseAbnormal, "")

		pending := f.scheduler.pending()
		require.Len(t, pending, 1)
		assert.Equal(t, time.Duration(prior+1)*time.Second, pending[0].delay)
		assert.Equal(t, prior+1, f.manager.Attempts())

		scheduled := f.events.ofType(domain.EventReconnectScheduled)
		require.Len(t, scheduled, prior+1)
		last := scheduled[len(scheduled)-1]
		assert.Equal(t, prior+1, last.Attempt)
		assert.Equal(t, 5, last.MaxAttempts)
		assert.Equal(t, time.Duration(prior+1)*time.Second, last.Delay)

		dials := f.transport.dialCount()
		f.scheduler.fire(pending[0])
		assert.Equal(t, dials+1, f.transport.dialCount())
	}
}

func TestReconnectExhaustedFiresOnce(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	for i := 0; i < 5; i++ {
		f.abnormalCloseAndReopen(t)
	}
	require.Equal(t, 5, f.manager.Attempts())

	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")

	assert.Empty(t, f.scheduler.pending())
	assert.Equal(t, 5, f.scheduler.count())
	assert.Equal(t, domain.StateFailed, f.manager.State())

	exhausted := f.events.ofType(domain.EventReconnectExhausted)
	require.Len(t, exhausted, 1)
	assert.True(t, errors.Is(exhausted[0].Err, domain.ErrReconnectExhausted))

	// A late duplicate close from the same socket changes nothing.
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	assert.Len(t, f.events.ofType(domain.EventReconnectExhausted), 1)
	assert.Equal(t, 5, f.scheduler.count())
}

func TestManualOpenAfterFailedStartsOver(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	for i := 0; i < 5; i++ {
		f.abnormalCloseAndReopen(t)
	}
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	require.Equal(t, domain.StateFailed, f.manager.State())

	f.manager.Open()

	assert.Equal(t, domain.StateConnecting, f.manager.State())
	assert.Equal(t, 0, f.manager.Attempts())

	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	pending := f.scheduler.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, time.Second, pending[0].delay)
}

func TestCloseSendsNormalClosure(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().handler.OnOpen()
	socket := f.transport.last().socket

	require.NoError(t, f.manager.Close())

	assert.True(t, socket.closed)
	assert.Equal(t, domain.CloseNormalClosure, socket.code)
	assert.Equal(t, domain.UserDisconnectReason, socket.reason)
	assert.Equal(t, domain.StateClosed, f.manager.State())
	assert.Len(t, f.events.ofType(domain.EventClosed), 1)

	// The transport echoes the closure; the callback is stale and must not reconnect.
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	assert.Equal(t, 0, f.scheduler.count())
	assert.Empty(t, f.events.ofType(domain.EventDisconnected))
}

func TestCloseCancelsPendingReopen(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	timer := f.scheduler.timer(0)
	require.False(t, timer.stopped)

	require.NoError(t, f.manager.Close())

	assert.True(t, timer.stopped)
	assert.Len(t, f.events.ofType(domain.EventClosed), 1)

	// Even if the timer already fired, the reopen is ignored.
	f.scheduler.fire(timer)
	assert.Equal(t, 1, f.transport.dialCount())
	assert.Equal(t, domain.StateClosed, f.manager.State())
}

func TestCloseWhenIdleIsNoop(t *testing.T) {
	f := newManagerFixture(t)

	require.NoError(t, f.manager.Close())

	assert.Empty(t, f.events.types())
	assert.Equal(t, domain.StateIdle, f.manager.State())
}

func TestCloseReturnsSocketError(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().socket.err = errors.New("write failed")

	err := f.manager.Close()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
	assert.Equal(t, domain.StateClosed, f.manager.State())
}

func TestManualOpenCancelsPendingReopen(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().handler.OnClose(domain.CloseAbnormal, "")
	timer := f.scheduler.timer(0)

	f.manager.Open()

	assert.True(t, timer.stopped)
	assert.Equal(t, 2, f.transport.dialCount())
	// A manual open outside Failed keeps the counter.
	assert.Equal(t, 1, f.manager.Attempts())

	f.scheduler.fire(timer)
	assert.Equal(t, 2, f.transport.dialCount())
}

func TestStaleSocketCallbacksAreIgnored(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	first := f.transport.last().handler
	f.abnormalCloseAndReopen(t)
	second := f.transport.last().handler

	first.OnOpen()
	assert.Equal(t, domain.StateConnecting, f.manager.State())

	second.OnOpen()
	require.Equal(t, domain.StateOpen, f.manager.State())

	first.OnMessage([]byte(`{"type":"connection"}`))
	first.OnError(errors.New("old"))
	first.OnClose(domain.CloseAbnormal, "")

	assert.Empty(t, f.frames)
	assert.Equal(t, domain.StateOpen, f.manager.State())
	assert.Len(t, f.events.ofType(domain.EventError), 0)
}

func TestMessagesForwardedOnlyWhenOpen(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	handler := f.transport.last().handler

	handler.OnMessage([]byte("early"))
	handler.OnOpen()
	handler.OnMessage([]byte("one"))
	handler.OnMessage([]byte("two"))

	require.Len(t, f.frames, 2)
	assert.Equal(t, "one", string(f.frames[0]))
	assert.Equal(t, "two", string(f.frames[1]))
}

func TestTransportErrorDoesNotChangeState(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.Open()
	f.transport.last().handler.OnOpen()

	f.transport.last().handler.OnError(errors.New("boom"))

	assert.Equal(t, domain.StateOpen, f.manager.State())
	errs := f.events.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0].Err, "boom")
}

func TestDialFailureIsReportedAndRetried(t *testing.T) {
	f := newManagerFixture(t)
	f.transport.dialErr = errors.New("bad handshake")

	f.manager.Open()

	assert.Equal(t, domain.StateClosed, f.manager.State())
	errs := f.events.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0].Err, domain.ErrTransportCreation))
	assert.Len(t, f.scheduler.pending(), 1)
	assert.Equal(t, 1, f.manager.Attempts())
}

func TestInvalidEndpointIsReportedAsCreationError(t *testing.T) {
	f := newManagerFixture(t)
	f.manager = NewConnectionManager("42", EndpointConfig{PageURL: "ftp://host/"},
		DefaultReconnectPolicy(), f.transport, f.scheduler, logger.NewNop())
	f.manager.SetLifecycleHandler(f.events.handle)

	f.manager.Open()

	assert.Equal(t, 0, f.transport.dialCount())
	errs := f.events.ofType(domain.EventError)
	require.Len(t, errs, 1)
	var creationErr *domain.TransportCreationError
	assert.True(t, errors.As(errs[0].Err, &creationErr))
	assert.Len(t, f.scheduler.pending(), 1)
}

func TestLifecycleHandlerMayCallBackIntoManager(t *testing.T) {
	f := newManagerFixture(t)
	f.manager.SetLifecycleHandler(func(event domain.LifecycleEvent) {
		if event.Type == domain.EventConnected {
			_ = f.manager.Close()
		}
	})

	f.manager.Open()
	f.transport.last().handler.OnOpen()

	assert.Equal(t, domain.StateClosed, f.manager.State())
	assert.True(t, f.transport.last().socket.closed)
}

func TestReconnectPolicyDelay(t *testing.T) {
	policy := ReconnectPolicy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond}

	assert.Equal(t, 250*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 750*time.Millisecond, policy.Delay(3))
}
