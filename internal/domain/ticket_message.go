package domain

import "time"

// ActorType indicates who performed an action or authored a message.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeStaff  ActorType = "STAFF"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketMessageType differentiates between replies and notes.
type TicketMessageType string

const (
	MessageTypePublicReply  TicketMessageType = "PUBLIC_REPLY"
	MessageTypeInternalNote TicketMessageType = "INTERNAL_NOTE"
)

// Valid reports whether t is a known message type.
func (t TicketMessageType) Valid() bool {
	return t == MessageTypePublicReply || t == MessageTypeInternalNote
}

// TicketMessage is one entry of a ticket thread.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorType  ActorType
	AuthorID    *string
	MessageType TicketMessageType
	Body        string
	CreatedAt   time.Time
}

// StampsFirstResponse reports whether the message counts as the first
// response for SLA purposes. Only staff public replies do.
func (m TicketMessage) StampsFirstResponse() bool {
	return m.AuthorType == ActorTypeStaff && m.MessageType == MessageTypePublicReply
}
