package transport

import (
	"fmt"

	"chatcore/pkg/logger"
	"chatcore/pkg/models"
	"chatcore/pkg/session"
)

// EventType enumerates the wire events the server pushes to the client.
type EventType string

const (
	EventMessage  EventType = "message"
	EventAck      EventType = "ack"
	EventNack     EventType = "nack"
	EventPresence EventType = "presence"
)

// Event is the envelope for every inbound frame.
type Event struct {
	Type         EventType       `json:"type"`
	Conversation string          `json:"conversation,omitempty"`
	Message      *models.Message `json:"message,omitempty"`
	TempID       string          `json:"temp_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Online       bool            `json:"online,omitempty"`
}

// Sink receives decoded events. *session.Controller satisfies it.
type Sink interface {
	HandleInbound(conversationID string, msg models.Message) error
	HandleSendAck(tempID string, server models.Message) error
	HandleSendFailed(tempID string) error
	HandlePresence(userID string, online bool)
}

var _ Sink = (*session.Controller)(nil)

// Dispatch routes one decoded event into the sink.
func Dispatch(sink Sink, ev Event) error {
	switch ev.Type {
	case EventMessage:
		if ev.Message == nil {
			return fmt.Errorf("message event without message body")
		}
		conv := ev.Conversation
		if conv == "" {
			conv = ev.Message.Conversation
		}
		return sink.HandleInbound(conv, *ev.Message)
	case EventAck:
		if ev.Message == nil {
			return fmt.Errorf("ack event without message body")
		}
		if ev.TempID == "" {
			return fmt.Errorf("ack event without temp id")
		}
		server := *ev.Message
		if server.Conversation == "" {
			server.Conversation = ev.Conversation
		}
		return sink.HandleSendAck(ev.TempID, server)
	case EventNack:
		if ev.TempID == "" {
			return fmt.Errorf("nack event without temp id")
		}
		return sink.HandleSendFailed(ev.TempID)
	case EventPresence:
		if ev.UserID == "" {
			return fmt.Errorf("presence event without user id")
		}
		sink.HandlePresence(ev.UserID, ev.Online)
		return nil
	default:
		logger.Debug("transport_event_ignored", "type", string(ev.Type))
		return nil
	}
}
