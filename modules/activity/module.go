package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-chat-broker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ServiceGetActivity is the request-reply service exposing room activity.
const ServiceGetActivity = "get-activity"

// RoomActivity holds the counters kept for one room.
type RoomActivity struct {
	RoomID       string    `json:"room_id"`
	RoomName     string    `json:"room_name"`
	Messages     int       `json:"messages"`
	Joins        int       `json:"joins"`
	Leaves       int       `json:"leaves"`
	LastActivity time.Time `json:"last_activity"`
}

// GetActivityRequest is the request for reading activity. An empty RoomID
// returns every room.
type GetActivityRequest struct {
	RoomID string `json:"room_id,omitempty"`
}

// GetActivityResponse is the response for reading activity.
type GetActivityResponse struct {
	Rooms         []RoomActivity `json:"rooms"`
	TotalMessages int            `json:"total_messages"`
}

// ActivityModule follows chat domain events and keeps per-room counters.
type ActivityModule struct {
	rooms  map[string]*RoomActivity
	logger types.Logger
	mu     sync.RWMutex
}

var _ mono.Module = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)
var _ mono.ServiceProviderModule = (*ActivityModule)(nil)
var _ mono.HealthCheckableModule = (*ActivityModule)(nil)

func NewModule(logger types.Logger) *ActivityModule {
	return &ActivityModule{
		rooms:  make(map[string]*RoomActivity),
		logger: logger,
	}
}

func (m *ActivityModule) Name() string {
	return "activity"
}

func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomCreatedV1, m.handleRoomCreated, m); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberJoinedV1, m.handleMemberJoined, m); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MemberLeftV1, m.handleMemberLeft, m); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "RoomCreated, MemberJoined, MemberLeft, MessageSent")
	return nil
}

func (m *ActivityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetActivity, json.Unmarshal, json.Marshal, m.getActivity,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetActivity, err)
	}
	return nil
}

func (m *ActivityModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.update(event.RoomID, event.Timestamp, func(a *RoomActivity) {
		a.RoomName = event.RoomName
	})
	return nil
}

func (m *ActivityModule) handleMemberJoined(_ context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	m.update(event.RoomID, event.Timestamp, func(a *RoomActivity) {
		a.Joins++
	})
	return nil
}

func (m *ActivityModule) handleMemberLeft(_ context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	m.update(event.RoomID, event.Timestamp, func(a *RoomActivity) {
		a.Leaves++
	})
	return nil
}

func (m *ActivityModule) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.update(event.RoomID, event.Timestamp, func(a *RoomActivity) {
		a.Messages++
	})
	m.logger.Debug("Message recorded", "roomID", event.RoomID, "recipients", event.Recipients)
	return nil
}

// update applies fn to the room's counters. Events may arrive out of order,
// so LastActivity only moves forward.
func (m *ActivityModule) update(roomID string, at time.Time, fn func(*RoomActivity)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.rooms[roomID]
	if !ok {
		a = &RoomActivity{RoomID: roomID}
		m.rooms[roomID] = a
	}
	fn(a)
	if at.After(a.LastActivity) {
		a.LastActivity = at
	}
}

func (m *ActivityModule) getActivity(_ context.Context, req GetActivityRequest, _ *mono.Msg) (GetActivityResponse, error) {
	return m.Snapshot(req.RoomID), nil
}

// Snapshot returns the counters of roomID, or of every room when roomID is
// empty, most recently active first.
func (m *ActivityModule) Snapshot(roomID string) GetActivityResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resp := GetActivityResponse{Rooms: make([]RoomActivity, 0, len(m.rooms))}
	for id, a := range m.rooms {
		resp.TotalMessages += a.Messages
		if roomID == "" || id == roomID {
			resp.Rooms = append(resp.Rooms, *a)
		}
	}
	sort.Slice(resp.Rooms, func(i, j int) bool {
		if resp.Rooms[i].LastActivity.Equal(resp.Rooms[j].LastActivity) {
			return resp.Rooms[i].RoomID < resp.Rooms[j].RoomID
		}
		return resp.Rooms[i].LastActivity.After(resp.Rooms[j].LastActivity)
	})
	return resp
}

func (m *ActivityModule) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"tracked_rooms": len(m.rooms),
		},
	}
}

func (m *ActivityModule) Start(_ context.Context) error {
	m.logger.Info("Activity module started - listening for chat events")
	return nil
}

func (m *ActivityModule) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}
