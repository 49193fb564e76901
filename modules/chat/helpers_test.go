package chat

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/example/room-chat-broker/events"
	"github.com/example/room-chat-broker/protocol"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

var errQueueFull = errors.New("send queue full")

// fakeTransport records every frame enqueued per connection.
type fakeTransport struct {
	mu      sync.Mutex
	conns   map[string]bool
	frames  map[string][][]byte
	failing map[string]bool
}

func newFakeTransport(ids ...string) *fakeTransport {
	ft := &fakeTransport{
		conns:   make(map[string]bool),
		frames:  make(map[string][][]byte),
		failing: make(map[string]bool),
	}
	for _, id := range ids {
		ft.conns[id] = true
	}
	return ft
}

func (f *fakeTransport) Send(connID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[connID] {
		return errQueueFull
	}
	f.frames[connID] = append(f.frames[connID], data)
	return nil
}

func (f *fakeTransport) ConnectionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.conns))
	for id := range f.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeTransport) fail(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[connID] = true
}

// take returns and clears the decoded frames received by connID.
func (f *fakeTransport) take(t *testing.T, connID string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any
	for _, raw := range f.frames[connID] {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(raw, &frame))
		out = append(out, frame)
	}
	delete(f.frames, connID)
	return out
}

// recordingNotifier captures domain events.
type recordingNotifier struct {
	mu      sync.Mutex
	created []events.RoomCreatedEvent
	joined  []events.MemberJoinedEvent
	left    []events.MemberLeftEvent
	sent    []events.MessageSentEvent
}

func (r *recordingNotifier) RoomCreated(ev events.RoomCreatedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, ev)
}

func (r *recordingNotifier) MemberJoined(ev events.MemberJoinedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined = append(r.joined, ev)
}

func (r *recordingNotifier) MemberLeft(ev events.MemberLeftEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, ev)
}

func (r *recordingNotifier) MessageSent(ev events.MessageSentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, ev)
}

func inboundMessage(roomID, content string) protocol.Inbound {
	return protocol.Inbound{
		Type:     protocol.SendRoomMessage,
		RoomID:   roomID,
		Content:  content,
		UserName: "bench",
	}
}
