package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/room-chat-broker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the room registry and the broker, and exposes room
// administration as request-reply services.
type Module struct {
	registry *Registry
	broker   *Broker
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Notifier                   = (*Module)(nil)
)

// NewModule creates the chat module. Frames produced by the broker are
// delivered through transport.
func NewModule(transport Transport, logger types.Logger, opts ...Option) (*Module, error) {
	if transport == nil {
		return nil, fmt.Errorf("chat: transport is nil")
	}

	registry, err := NewRegistry(opts...)
	if err != nil {
		return nil, err
	}

	m := &Module{
		registry: registry,
		logger:   logger,
	}
	m.broker = NewBroker(registry, transport, m, logger)
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
		events.MessageSentV1.ToBase(),
	}
}

// RegisterServices registers the room administration services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetHistory, json.Unmarshal, json.Marshal, m.getHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}

	m.logger.Info("Registered chat services",
		"services", []string{ServiceListRooms, ServiceGetRoom, ServiceGetHistory, ServiceCreateRoom})
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("EventBus not set, chat events will not be published")
	}
	m.logger.Info("Chat module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	stats := m.registry.Stats()
	m.logger.Info("Chat module stopped", "rooms", stats.Rooms, "messages", stats.Messages)
	return nil
}

// Health reports registry totals.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.registry.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       stats.Rooms,
			"memberships": stats.Memberships,
			"messages":    stats.Messages,
		},
	}
}

// Broker returns the broker driven by WebSocket connections.
func (m *Module) Broker() *Broker {
	return m.broker
}

// RoomCreated publishes a RoomCreated event.
func (m *Module) RoomCreated(ev events.RoomCreatedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.RoomCreatedV1.Publish(m.eventBus, ev, nil); err != nil {
		m.logger.Warn("Failed to publish RoomCreated event", "roomID", ev.RoomID, "error", err)
	}
}

// MemberJoined publishes a MemberJoined event.
func (m *Module) MemberJoined(ev events.MemberJoinedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.MemberJoinedV1.Publish(m.eventBus, ev, nil); err != nil {
		m.logger.Warn("Failed to publish MemberJoined event", "roomID", ev.RoomID, "error", err)
	}
}

// MemberLeft publishes a MemberLeft event.
func (m *Module) MemberLeft(ev events.MemberLeftEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.MemberLeftV1.Publish(m.eventBus, ev, nil); err != nil {
		m.logger.Warn("Failed to publish MemberLeft event", "roomID", ev.RoomID, "error", err)
	}
}

// MessageSent publishes a MessageSent event.
func (m *Module) MessageSent(ev events.MessageSentEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.MessageSentV1.Publish(m.eventBus, ev, nil); err != nil {
		m.logger.Warn("Failed to publish MessageSent event", "roomID", ev.RoomID, "error", err)
	}
}
