package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/example/room-chat-broker/domain/chat"
	"github.com/example/room-chat-broker/events"
	"github.com/example/room-chat-broker/protocol"
	"github.com/go-monolith/mono/pkg/types"
)

// Transport reaches live connections. Send must not block: it enqueues on the
// connection's send queue or fails.
type Transport interface {
	Send(connID string, data []byte) error
	ConnectionIDs() []string
}

// Notifier receives domain events produced by the broker.
type Notifier interface {
	RoomCreated(events.RoomCreatedEvent)
	MemberJoined(events.MemberJoinedEvent)
	MemberLeft(events.MemberLeftEvent)
	MessageSent(events.MessageSentEvent)
}

// Outbound is one frame addressed to a set of connections.
type Outbound struct {
	To    []string
	Event protocol.Outbound
}

// Broker validates inbound events, mutates the registry and fans the
// resulting frames out through the transport.
type Broker struct {
	registry  *Registry
	transport Transport
	notifier  Notifier
	logger    types.Logger

	// mu serializes dispatch with enqueueing, so members observe messages of
	// a room in append order.
	mu sync.Mutex
}

// NewBroker creates a broker. notifier may be nil.
func NewBroker(registry *Registry, transport Transport, notifier Notifier, logger types.Logger) *Broker {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Broker{
		registry:  registry,
		transport: transport,
		notifier:  notifier,
		logger:    logger,
	}
}

// Registry returns the room registry the broker mutates.
func (b *Broker) Registry() *Registry {
	return b.registry
}

// Connect greets a new connection with the current room list.
func (b *Broker) Connect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deliver([]Outbound{{
		To:    []string{connID},
		Event: protocol.NewRooms(b.registry.ListRooms()),
	}})
	b.logger.Debug("Connection greeted", "connectionID", connID)
}

// Disconnect removes the connection from its room. Remaining members are not
// notified.
func (b *Broker) Disconnect(connID string) {
	roomID, ok := b.registry.LeaveRoom(connID)
	if !ok {
		return
	}
	b.notifier.MemberLeft(events.MemberLeftEvent{
		RoomID:       roomID,
		ConnectionID: connID,
		Timestamp:    time.Now(),
	})
	b.logger.Info("Connection left room on disconnect", "connectionID", connID, "roomID", roomID)
}

// Handle dispatches one inbound event and enqueues the resulting frames.
// Failures are reported to the sender as an ERROR frame; they never stop the
// broker.
func (b *Broker) Handle(connID string, ev protocol.Inbound) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	out, err := b.Dispatch(connID, ev)
	if err != nil {
		b.logger.Warn("Event rejected", "connectionID", connID, "event", ev.Type, "error", err)
		b.deliver([]Outbound{{
			To:    []string{connID},
			Event: protocol.NewError(ev.Type, errorCode(err), err.Error()),
		}})
		return err
	}

	b.deliver(out)
	return nil
}

// Reject sends an ERROR frame for an event that never reached dispatch, such
// as an undecodable or rate limited frame.
func (b *Broker) Reject(connID string, event protocol.EventType, code, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deliver([]Outbound{{
		To:    []string{connID},
		Event: protocol.NewError(event, code, message),
	}})
}

// CreateRoom creates a room on behalf of a non-connection caller (the REST
// API) and pushes the new room list to every connection.
func (b *Broker) CreateRoom(name, createdBy string) (domain.RoomSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	summary, err := b.registry.CreateRoom(name)
	if err != nil {
		return domain.RoomSummary{}, err
	}
	b.notifier.RoomCreated(events.RoomCreatedEvent{
		RoomID:    summary.ID,
		RoomName:  summary.Name,
		CreatedBy: createdBy,
		Timestamp: time.Now(),
	})

	b.deliver([]Outbound{{
		To:    b.transport.ConnectionIDs(),
		Event: protocol.NewRooms(b.registry.ListRooms()),
	}})
	b.logger.Info("Room created", "roomID", summary.ID, "name", summary.Name, "createdBy", createdBy)
	return summary, nil
}

// Dispatch applies one inbound event to the registry and returns the frames
// to deliver. It does not enqueue anything itself.
func (b *Broker) Dispatch(connID string, ev protocol.Inbound) ([]Outbound, error) {
	switch ev.Type {
	case protocol.CreateRoom:
		return b.createRoom(connID, ev.RoomName)
	case protocol.JoinRoom:
		return b.joinRoom(connID, ev.RoomID)
	case protocol.SendRoomMessage:
		return b.sendMessage(connID, ev)
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownEvent, ev.Type)
	}
}

func (b *Broker) createRoom(connID, name string) ([]Outbound, error) {
	if strings.TrimSpace(name) == "" {
		b.logger.Debug("Ignoring CREATE_ROOM with empty name", "connectionID", connID)
		return nil, nil
	}

	summary, err := b.registry.CreateRoom(name)
	if err != nil {
		return nil, err
	}
	b.notifier.RoomCreated(events.RoomCreatedEvent{
		RoomID:    summary.ID,
		RoomName:  summary.Name,
		CreatedBy: connID,
		Timestamp: time.Now(),
	})

	snap, err := b.registry.JoinRoom(summary.ID, connID)
	if err != nil {
		return nil, fmt.Errorf("failed to join created room: %w", err)
	}
	b.notifyJoin(connID, snap)

	recipients := []string{connID}
	for _, id := range b.transport.ConnectionIDs() {
		if id != connID {
			recipients = append(recipients, id)
		}
	}

	b.logger.Info("Room created", "roomID", summary.ID, "name", summary.Name, "createdBy", connID)
	return []Outbound{
		{To: recipients, Event: protocol.NewRooms(b.registry.ListRooms())},
		{To: []string{connID}, Event: protocol.NewJoinedRoom(snap.RoomID, snap.History)},
	}, nil
}

func (b *Broker) joinRoom(connID, roomID string) ([]Outbound, error) {
	snap, err := b.registry.JoinRoom(roomID, connID)
	if err != nil {
		return nil, err
	}
	b.notifyJoin(connID, snap)

	return []Outbound{
		{To: []string{connID}, Event: protocol.NewJoinedRoom(snap.RoomID, snap.History)},
	}, nil
}

func (b *Broker) sendMessage(connID string, ev protocol.Inbound) ([]Outbound, error) {
	if strings.TrimSpace(ev.Content) == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	delivery, err := b.registry.AppendMessage(ev.RoomID, domain.Message{
		UserName: ev.UserName,
		Content:  ev.Content,
	})
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(delivery.Members))
	for _, id := range delivery.Members {
		if id != connID {
			recipients = append(recipients, id)
		}
	}

	b.notifier.MessageSent(events.MessageSentEvent{
		RoomID:       ev.RoomID,
		ConnectionID: connID,
		UserName:     delivery.Message.UserName,
		Content:      delivery.Message.Content,
		Recipients:   len(recipients),
		Timestamp:    delivery.Message.SentAt,
	})

	if len(recipients) == 0 {
		return nil, nil
	}
	return []Outbound{
		{To: recipients, Event: protocol.NewRoomMessage(delivery.Message)},
	}, nil
}

func (b *Broker) notifyJoin(connID string, snap RoomSnapshot) {
	if snap.Rejoined {
		return
	}
	now := time.Now()
	if snap.Previous != "" {
		b.notifier.MemberLeft(events.MemberLeftEvent{
			RoomID:       snap.Previous,
			ConnectionID: connID,
			Timestamp:    now,
		})
	}
	b.notifier.MemberJoined(events.MemberJoinedEvent{
		RoomID:       snap.RoomID,
		ConnectionID: connID,
		Timestamp:    now,
	})
}

// deliver encodes each frame once and enqueues it for every recipient. A
// failing recipient does not affect the others.
func (b *Broker) deliver(out []Outbound) int {
	failed := 0
	for _, o := range out {
		if len(o.To) == 0 {
			continue
		}
		data, err := protocol.Encode(o.Event)
		if err != nil {
			b.logger.Error("Failed to encode frame", "event", o.Event.EventType(), "error", err)
			failed += len(o.To)
			continue
		}
		for _, id := range o.To {
			if err := b.transport.Send(id, data); err != nil {
				failed++
				b.logger.Warn("Delivery failed",
					"connectionID", id,
					"event", o.Event.EventType(),
					"error", err)
			}
		}
	}
	return failed
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, ErrInvalidInput):
		return protocol.CodeInvalidInput
	default:
		return protocol.ErrorCode(err)
	}
}

type nopNotifier struct{}

func (nopNotifier) RoomCreated(events.RoomCreatedEvent)   {}
func (nopNotifier) MemberJoined(events.MemberJoinedEvent) {}
func (nopNotifier) MemberLeft(events.MemberLeftEvent)     {}
func (nopNotifier) MessageSent(events.MessageSentEvent)   {}
