/*
Package chat contains the realtime coordination core of Campus Connect: the per-session event bus,
the session connector, the delivery simulator standing in for a backend, the connection-request
state machine and the conversation reconciler.

This file defines the event and intent vocabulary exchanged between those components.
*/
package chat

import "time"

// EventType names an inbound, server-originated event.
type EventType string

const (
	EventConnect                EventType = "connect"
	EventDisconnect             EventType = "disconnect"
	EventNewMessage             EventType = "new_message"
	EventConnectionRequestSent  EventType = "connection_request_sent"
	EventConnectionAccepted     EventType = "connection_accepted"
	EventConnectionRejected     EventType = "connection_rejected"
	EventConversationDiscovered EventType = "conversation_discovered"
)

// IntentType names an outbound action dispatched by the client toward the server.
type IntentType string

const (
	IntentSendMessage           IntentType = "send_message"
	IntentSendConnectionRequest IntentType = "send_connection_request"
)

// Event is one delivery on the bus.
type Event struct {
	Type    EventType
	Payload any

	// Epoch is the connector epoch the event was produced under. Zero means "current".
	Epoch uint64
}

// Intent is an outbound action with its payload.
type Intent struct {
	Type    IntentType
	Payload any
}

// ConnectPayload accompanies EventConnect and EventDisconnect.
type ConnectPayload struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// SendMessagePayload is the payload of IntentSendMessage.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	RecipientID    string `json:"recipientId"`
}

// ConnectionRequestPayload is the payload of IntentSendConnectionRequest.
type ConnectionRequestPayload struct {
	RequesterID string `json:"requesterId"`
	RecipientID string `json:"recipientId"`
}

// ConnectionUpdatePayload accompanies the connection_* events.
type ConnectionUpdatePayload struct {
	RecipientID string           `json:"recipientId"`
	Status      ConnectionStatus `json:"status"`
}
