package domain

import "time"

type LifecycleEventType string

const (
	EventConnecting         LifecycleEventType = "connecting"
	EventConnected          LifecycleEventType = "connected"
	EventDisconnected       LifecycleEventType = "disconnected"
	EventError              LifecycleEventType = "error"
	EventReconnectScheduled LifecycleEventType = "reconnect_scheduled"
	EventReconnectExhausted LifecycleEventType = "reconnect_exhausted"
	EventClosed             LifecycleEventType = "closed"
)

// LifecycleEvent describes a connection transition. Only the fields relevant to
// Type are set.
type LifecycleEvent struct {
	Type           LifecycleEventType
	SubscriptionID SubscriptionID
	Endpoint       string
	State          ConnectionState
	Attempt        int
	MaxAttempts    int
	Delay          time.Duration
	CloseCode      int
	Reason         string
	Err            error
}

type LifecycleHandler func(event LifecycleEvent)

type NotificationKind string

const (
	KindInfo    NotificationKind = "info"
	KindSuccess NotificationKind = "success"
	KindWarning NotificationKind = "warning"
	KindError   NotificationKind = "error"
	KindBid     NotificationKind = "bid"
)

// StatusKind is the visual class of the connection status indicator.
type StatusKind string

const (
	StatusConnecting   StatusKind = "connecting"
	StatusConnected    StatusKind = "connected"
	StatusDisconnected StatusKind = "disconnected"
	StatusError        StatusKind = "error"
)

type Notification struct {
	Message string
	Details []string
	Kind    NotificationKind
	Time    time.Time
}
