// Package protocol defines the JSON frames exchanged with WebSocket clients
// and converts them to and from the typed events handled by the broker.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/room-chat-broker/domain/chat"
)

// EventType tags every frame on the wire.
type EventType string

// Client to server events.
const (
	CreateRoom      EventType = "CREATE_ROOM"
	JoinRoom        EventType = "JOIN_ROOM"
	SendRoomMessage EventType = "SEND_ROOM_MESSAGE"
)

// Server to client events.
const (
	Rooms       EventType = "ROOMS"
	JoinedRoom  EventType = "JOINED_ROOM"
	RoomMessage EventType = "ROOM_MESSAGE"
	Error       EventType = "ERROR"
)

// Error codes carried by ERROR frames.
const (
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeMalformedFrame = "MALFORMED_FRAME"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL"
)

// TimeLayout is the coarse hour:minute rendering of message timestamps.
const TimeLayout = "15:04"

// Decode errors.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrInvalidInput   = errors.New("invalid input")
)

// Inbound is a decoded client event. Only the fields relevant to Type are set.
type Inbound struct {
	Type     EventType `json:"type"`
	RoomName string    `json:"roomName,omitempty"`
	RoomID   string    `json:"roomId,omitempty"`
	Content  string    `json:"content,omitempty"`
	UserName string    `json:"userName,omitempty"`
}

// Decode parses and validates a client frame. On validation failures the
// returned Inbound still carries the decoded Type so the caller can report
// which event was rejected.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return in, Validate(in)
}

// Validate checks the non-empty text fields of an inbound event.
func Validate(in Inbound) error {
	switch in.Type {
	case CreateRoom:
		if strings.TrimSpace(in.RoomName) == "" {
			return fmt.Errorf("%w: roomName is required", ErrInvalidInput)
		}
	case JoinRoom:
		if strings.TrimSpace(in.RoomID) == "" {
			return fmt.Errorf("%w: roomId is required", ErrInvalidInput)
		}
	case SendRoomMessage:
		if strings.TrimSpace(in.RoomID) == "" {
			return fmt.Errorf("%w: roomId is required", ErrInvalidInput)
		}
		if strings.TrimSpace(in.Content) == "" {
			return fmt.Errorf("%w: content is required", ErrInvalidInput)
		}
		if strings.TrimSpace(in.UserName) == "" {
			return fmt.Errorf("%w: userName is required", ErrInvalidInput)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, in.Type)
	}
	return nil
}

// ErrorCode maps a decode error to the code reported in an ERROR frame.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return CodeMalformedFrame
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// Outbound is any server to client frame.
type Outbound interface {
	EventType() EventType
}

// RoomPayload is one entry of a ROOMS frame.
type RoomPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessagePayload is the wire form of a stored message.
type MessagePayload struct {
	Content   string    `json:"content"`
	UserName  string    `json:"userName"`
	Time      string    `json:"time"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomsEvent carries the global room list.
type RoomsEvent struct {
	Type  EventType     `json:"type"`
	Rooms []RoomPayload `json:"rooms"`
}

// JoinedRoomEvent acknowledges a join and replays the room history.
type JoinedRoomEvent struct {
	Type     EventType        `json:"type"`
	RoomID   string           `json:"roomId"`
	Messages []MessagePayload `json:"messages"`
}

// RoomMessageEvent delivers one new message to a room member.
type RoomMessageEvent struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"roomId"`
	MessagePayload
}

// ErrorEvent reports a per-event failure to the originating connection.
type ErrorEvent struct {
	Type    EventType `json:"type"`
	Event   EventType `json:"event,omitempty"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (RoomsEvent) EventType() EventType       { return Rooms }
func (JoinedRoomEvent) EventType() EventType  { return JoinedRoom }
func (RoomMessageEvent) EventType() EventType { return RoomMessage }
func (ErrorEvent) EventType() EventType       { return Error }

// NewRooms builds a ROOMS frame.
func NewRooms(rooms []domain.RoomSummary) RoomsEvent {
	payload := make([]RoomPayload, 0, len(rooms))
	for _, r := range rooms {
		payload = append(payload, RoomPayload{ID: r.ID, Name: r.Name})
	}
	return RoomsEvent{Type: Rooms, Rooms: payload}
}

// NewJoinedRoom builds a JOINED_ROOM frame.
func NewJoinedRoom(roomID string, history []domain.Message) JoinedRoomEvent {
	messages := make([]MessagePayload, 0, len(history))
	for _, msg := range history {
		messages = append(messages, newMessagePayload(msg))
	}
	return JoinedRoomEvent{Type: JoinedRoom, RoomID: roomID, Messages: messages}
}

// NewRoomMessage builds a ROOM_MESSAGE frame.
func NewRoomMessage(msg domain.Message) RoomMessageEvent {
	return RoomMessageEvent{
		Type:           RoomMessage,
		RoomID:         msg.RoomID,
		MessagePayload: newMessagePayload(msg),
	}
}

// NewError builds an ERROR frame.
func NewError(event EventType, code, message string) ErrorEvent {
	return ErrorEvent{Type: Error, Event: event, Code: code, Message: message}
}

func newMessagePayload(msg domain.Message) MessagePayload {
	return MessagePayload{
		Content:   msg.Content,
		UserName:  msg.UserName,
		Time:      msg.SentAt.Format(TimeLayout),
		Timestamp: msg.SentAt,
	}
}

// Encode serializes an outbound frame.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", ev.EventType(), err)
	}
	return data, nil
}
