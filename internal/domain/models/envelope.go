package models

import "time"

// Push message types.
const (
	MessageNewAlert     = "NEW_ALERT"
	MessageConnected    = "CONNECTED"
	MessageSubscribe    = "SUBSCRIBE"
	MessageUnsubscribe  = "UNSUBSCRIBE"
	MessageSubscribed   = "SUBSCRIBED"
	MessageUnsubscribed = "UNSUBSCRIBED"
	MessagePing         = "PING"
	MessagePong         = "PONG"
	MessageError        = "ERROR"
)

// Envelope wraps every message pushed to subscribers.
type Envelope struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Channels  []string    `json:"channels,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAlertEnvelope builds the NEW_ALERT message for a persisted alert.
func NewAlertEnvelope(a *Alert, now time.Time) Envelope {
	return Envelope{Type: MessageNewAlert, Data: a, Timestamp: now}
}
