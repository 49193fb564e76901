package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	domain "github.com/example/room-chat-broker/domain/chat"
)

func newTestModule(t *testing.T, transport Transport, opts ...Option) *Module {
	t.Helper()
	m, err := NewModule(transport, &mockLogger{}, opts...)
	if err != nil {
		t.Fatalf("NewModule() unexpected error: %v", err)
	}
	return m
}

func TestNewModule_NilTransport(t *testing.T) {
	if _, err := NewModule(nil, &mockLogger{}); err == nil {
		t.Error("NewModule() expected error for nil transport, got nil")
	}
}

func TestService_CreateRoom(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		req           CreateRoomRequest
		wantName      string
		wantCreatedBy string
		expectError   bool
	}{
		{
			name:          "valid room creation",
			req:           CreateRoomRequest{Name: "General", CreatedBy: "admin"},
			wantName:      "General",
			wantCreatedBy: "admin",
		},
		{
			name:          "creator defaults to api",
			req:           CreateRoomRequest{Name: "Random"},
			wantName:      "Random",
			wantCreatedBy: "api",
		},
		{
			name:        "empty room name",
			req:         CreateRoomRequest{Name: "  "},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport("conn-1")
			m := newTestModule(t, transport)
			notifier := &recordingNotifier{}
			m.broker.notifier = notifier

			resp, err := m.createRoom(ctx, tt.req, nil)

			if tt.expectError {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("createRoom() error = %v, want ErrInvalidInput", err)
				}
				if frames := transport.take(t, "conn-1"); len(frames) != 0 {
					t.Errorf("createRoom() sent %d frames on failure, want 0", len(frames))
				}
				return
			}

			if err != nil {
				t.Fatalf("createRoom() unexpected error: %v", err)
			}
			if resp.Room.Name != tt.wantName {
				t.Errorf("createRoom() room.Name = %q, want %q", resp.Room.Name, tt.wantName)
			}
			if resp.Room.ID == "" {
				t.Error("createRoom() room.ID should not be empty")
			}

			frames := transport.take(t, "conn-1")
			if len(frames) != 1 || frames[0]["type"] != "ROOMS" {
				t.Errorf("createRoom() frames = %v, want one ROOMS frame", frames)
			}
			if len(notifier.created) != 1 || notifier.created[0].CreatedBy != tt.wantCreatedBy {
				t.Errorf("createRoom() created events = %+v, want createdBy %q", notifier.created, tt.wantCreatedBy)
			}
		})
	}
}

func TestService_GetRoom(t *testing.T) {
	ctx := context.Background()
	m := newTestModule(t, newFakeTransport())

	summary, err := m.registry.CreateRoom("TestRoom")
	if err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}
	if _, err := m.registry.JoinRoom(summary.ID, "conn-1"); err != nil {
		t.Fatalf("Failed to join test room: %v", err)
	}

	tests := []struct {
		name        string
		roomID      string
		expectError bool
	}{
		{
			name:   "existing room",
			roomID: summary.ID,
		},
		{
			name:        "non-existent room",
			roomID:      "non-existent-id",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.getRoom(ctx, GetRoomRequest{RoomID: tt.roomID}, nil)

			if tt.expectError {
				if !errors.Is(err, ErrRoomNotFound) {
					t.Errorf("getRoom() error = %v, want ErrRoomNotFound", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("getRoom() unexpected error: %v", err)
			}
			if resp.Room.ID != summary.ID {
				t.Errorf("getRoom() room.ID = %q, want %q", resp.Room.ID, summary.ID)
			}
			if resp.Room.Members != 1 {
				t.Errorf("getRoom() room.Members = %d, want 1", resp.Room.Members)
			}
			if resp.Room.CreatedAt.IsZero() {
				t.Error("getRoom() room.CreatedAt should not be zero")
			}
		})
	}
}

func TestService_ListRooms(t *testing.T) {
	ctx := context.Background()
	m := newTestModule(t, newFakeTransport())

	resp, err := m.listRooms(ctx, ListRoomsRequest{}, nil)
	if err != nil {
		t.Fatalf("listRooms() unexpected error: %v", err)
	}
	if resp.Total != 0 || len(resp.Rooms) != 0 {
		t.Errorf("listRooms() initial count = %d, want 0", resp.Total)
	}

	for _, name := range []string{"Room1", "Room2", "Room3"} {
		if _, err := m.registry.CreateRoom(name); err != nil {
			t.Fatalf("Failed to create room: %v", err)
		}
	}

	resp, err = m.listRooms(ctx, ListRoomsRequest{}, nil)
	if err != nil {
		t.Fatalf("listRooms() unexpected error: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("listRooms() count = %d, want 3", resp.Total)
	}
	for i, want := range []string{"Room1", "Room2", "Room3"} {
		if resp.Rooms[i].Name != want {
			t.Errorf("listRooms() rooms[%d].Name = %q, want %q", i, resp.Rooms[i].Name, want)
		}
	}
}

func TestService_GetHistory(t *testing.T) {
	ctx := context.Background()
	m := newTestModule(t, newFakeTransport())

	summary, _ := m.registry.CreateRoom("TestRoom")
	for i := 0; i < 10; i++ {
		if _, err := m.registry.AppendMessage(summary.ID, domain.Message{
			UserName: "User1",
			Content:  fmt.Sprintf("message %d", i),
		}); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
	}

	tests := []struct {
		name        string
		roomID      string
		limit       int
		wantCount   int
		wantFirst   string
		expectError bool
	}{
		{
			name:      "all messages",
			roomID:    summary.ID,
			limit:     0,
			wantCount: 10,
			wantFirst: "message 0",
		},
		{
			name:      "limited to newest",
			roomID:    summary.ID,
			limit:     3,
			wantCount: 3,
			wantFirst: "message 7",
		},
		{
			name:      "limit larger than history",
			roomID:    summary.ID,
			limit:     100,
			wantCount: 10,
			wantFirst: "message 0",
		},
		{
			name:        "limit too large",
			roomID:      summary.ID,
			limit:       MaxHistoryPage + 1,
			expectError: true,
		},
		{
			name:        "non-existent room",
			roomID:      "non-existent",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.getHistory(ctx, GetHistoryRequest{RoomID: tt.roomID, Limit: tt.limit}, nil)

			if tt.expectError {
				if err == nil {
					t.Error("getHistory() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("getHistory() unexpected error: %v", err)
			}
			if len(resp.Messages) != tt.wantCount {
				t.Fatalf("getHistory() count = %d, want %d", len(resp.Messages), tt.wantCount)
			}
			if resp.Messages[0].Content != tt.wantFirst {
				t.Errorf("getHistory() first = %q, want %q", resp.Messages[0].Content, tt.wantFirst)
			}
		})
	}
}

func TestModule_Health(t *testing.T) {
	m := newTestModule(t, newFakeTransport())
	summary, _ := m.registry.CreateRoom("lobby")
	_, _ = m.registry.JoinRoom(summary.ID, "conn-1")

	status := m.Health(context.Background())
	if !status.Healthy {
		t.Error("Health() expected healthy")
	}
	if status.Details["rooms"] != 1 {
		t.Errorf("Health() rooms = %v, want 1", status.Details["rooms"])
	}
	if status.Details["memberships"] != 1 {
		t.Errorf("Health() memberships = %v, want 1", status.Details["memberships"])
	}
}

func TestModule_NotifierWithoutEventBus(t *testing.T) {
	transport := newFakeTransport("A")
	m := newTestModule(t, transport)

	// Publishing is skipped without an EventBus; the broker keeps working.
	summary, err := m.Broker().CreateRoom("lobby", "api")
	if err != nil {
		t.Fatalf("CreateRoom() unexpected error: %v", err)
	}
	if _, err := m.registry.Room(summary.ID); err != nil {
		t.Errorf("Room() unexpected error: %v", err)
	}
}

func BenchmarkBroker_SendMessage(b *testing.B) {
	registry, _ := NewRegistry(WithHistoryLimit(100))
	transport := newFakeTransport("A", "B")
	broker := NewBroker(registry, transport, nil, &mockLogger{})
	summary, _ := registry.CreateRoom("bench")
	_, _ = registry.JoinRoom(summary.ID, "B")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = broker.Dispatch("A", inboundMessage(summary.ID, "Benchmark message"))
	}
}

func BenchmarkRegistry_History(b *testing.B) {
	registry, _ := NewRegistry()
	summary, _ := registry.CreateRoom("bench")
	for i := 0; i < 100; i++ {
		_, _ = registry.AppendMessage(summary.ID, domain.Message{UserName: "user", Content: "Message"})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.History(summary.ID, 50)
	}
}
