package chat

import (
	"fmt"
	"testing"

	"github.com/example/room-chat-broker/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestBroker(t *testing.T, transport Transport, notifier Notifier, opts ...Option) *Broker {
	t.Helper()
	return NewBroker(newTestRegistry(t, opts...), transport, notifier, &mockLogger{})
}

func TestBroker_Connect_SendsRoomList(t *testing.T) {
	transport := newFakeTransport("A")
	broker := newTestBroker(t, transport, nil)
	_, err := broker.Registry().CreateRoom("lobby")
	require.NoError(t, err)

	broker.Connect("A")

	frames := transport.take(t, "A")
	require.Len(t, frames, 1)
	assert.Equal(t, "ROOMS", frames[0]["type"])
	assert.Len(t, frames[0]["rooms"], 1)
}

// TestBroker_Scenario walks through create, join, send and rejoin with two
// connections.
func TestBroker_Scenario(t *testing.T) {
	transport := newFakeTransport("A", "B")
	notifier := &recordingNotifier{}
	broker := newTestBroker(t, transport, notifier)

	// A creates "lobby".
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "lobby"}))

	rooms := broker.Registry().ListRooms()
	require.Len(t, rooms, 1)
	r1 := rooms[0].ID

	framesA := transport.take(t, "A")
	require.Len(t, framesA, 2)
	assert.Equal(t, "ROOMS", framesA[0]["type"])
	assert.Equal(t, "JOINED_ROOM", framesA[1]["type"])
	assert.Equal(t, r1, framesA[1]["roomId"])
	assert.Equal(t, []any{}, framesA[1]["messages"])

	framesB := transport.take(t, "B")
	require.Len(t, framesB, 1)
	assert.Equal(t, map[string]any{
		"type":  "ROOMS",
		"rooms": []any{map[string]any{"id": r1, "name": "lobby"}},
	}, framesB[0])

	// B joins R1 and sees an empty history.
	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: r1}))
	framesB = transport.take(t, "B")
	require.Len(t, framesB, 1)
	assert.Equal(t, "JOINED_ROOM", framesB[0]["type"])
	assert.Equal(t, r1, framesB[0]["roomId"])
	assert.Equal(t, []any{}, framesB[0]["messages"])
	assert.Empty(t, transport.take(t, "A"))

	// A says hi; only B receives it.
	require.NoError(t, broker.Handle("A", protocol.Inbound{
		Type:     protocol.SendRoomMessage,
		RoomID:   r1,
		Content:  "hi",
		UserName: "A",
	}))
	assert.Empty(t, transport.take(t, "A"))
	framesB = transport.take(t, "B")
	require.Len(t, framesB, 1)
	assert.Equal(t, "ROOM_MESSAGE", framesB[0]["type"])
	assert.Equal(t, "hi", framesB[0]["content"])
	assert.Equal(t, "A", framesB[0]["userName"])
	sentTime := framesB[0]["time"]
	assert.NotEmpty(t, sentTime)

	// B joins again: membership unchanged, history replayed.
	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: r1}))
	framesB = transport.take(t, "B")
	require.Len(t, framesB, 1)
	assert.Equal(t, "JOINED_ROOM", framesB[0]["type"])
	messages, ok := framesB[0]["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "hi", msg["content"])
	assert.Equal(t, "A", msg["userName"])
	assert.Equal(t, sentTime, msg["time"])

	members, err := broker.Registry().Members(r1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, members)

	// Domain events: one room, two joins (rejoin is not reported), one message.
	assert.Len(t, notifier.created, 1)
	assert.Len(t, notifier.joined, 2)
	assert.Empty(t, notifier.left)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, 1, notifier.sent[0].Recipients)
}

func TestBroker_CreateRoom_IgnoresEmptyName(t *testing.T) {
	transport := newFakeTransport("A", "B")
	broker := newTestBroker(t, transport, nil)

	for _, name := range []string{"", "   "} {
		out, err := broker.Dispatch("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: name})
		assert.NoError(t, err)
		assert.Empty(t, out)
	}

	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: " "}))
	assert.Empty(t, broker.Registry().ListRooms())
	assert.Empty(t, transport.take(t, "A"))
	assert.Empty(t, transport.take(t, "B"))
}

func TestBroker_JoinUnknownRoom(t *testing.T) {
	transport := newFakeTransport("A", "B")
	broker := newTestBroker(t, transport, nil)
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "lobby"}))
	transport.take(t, "A")
	transport.take(t, "B")
	before := broker.Registry().Stats()

	err := broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: "missing"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	framesB := transport.take(t, "B")
	require.Len(t, framesB, 1)
	assert.Equal(t, "ERROR", framesB[0]["type"])
	assert.Equal(t, "JOIN_ROOM", framesB[0]["event"])
	assert.Equal(t, protocol.CodeRoomNotFound, framesB[0]["code"])
	assert.Empty(t, transport.take(t, "A"))
	assert.Equal(t, before, broker.Registry().Stats())

	// Still serving afterwards.
	rooms := broker.Registry().ListRooms()
	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: rooms[0].ID}))
	assert.Equal(t, "JOINED_ROOM", transport.take(t, "B")[0]["type"])
}

func TestBroker_SendToUnknownRoom(t *testing.T) {
	transport := newFakeTransport("A")
	broker := newTestBroker(t, transport, nil)

	err := broker.Handle("A", protocol.Inbound{
		Type:     protocol.SendRoomMessage,
		RoomID:   "missing",
		Content:  "hi",
		UserName: "A",
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	frames := transport.take(t, "A")
	require.Len(t, frames, 1)
	assert.Equal(t, "SEND_ROOM_MESSAGE", frames[0]["event"])
	assert.Equal(t, protocol.CodeRoomNotFound, frames[0]["code"])
}

func TestBroker_SendEmptyContent(t *testing.T) {
	transport := newFakeTransport("A")
	broker := newTestBroker(t, transport, nil)
	summary, _ := broker.Registry().CreateRoom("lobby")

	err := broker.Handle("A", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: summary.ID, UserName: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	history, _ := broker.Registry().History(summary.ID, 0)
	assert.Empty(t, history)
	assert.Equal(t, protocol.CodeInvalidInput, transport.take(t, "A")[0]["code"])
}

func TestBroker_UnknownEvent(t *testing.T) {
	transport := newFakeTransport("A")
	broker := newTestBroker(t, transport, nil)

	err := broker.Handle("A", protocol.Inbound{Type: "DELETE_ROOM"})
	assert.ErrorIs(t, err, protocol.ErrUnknownEvent)
	assert.Equal(t, protocol.CodeUnknownEvent, transport.take(t, "A")[0]["code"])
}

func TestBroker_Disconnect(t *testing.T) {
	transport := newFakeTransport("A", "B")
	notifier := &recordingNotifier{}
	broker := newTestBroker(t, transport, notifier)

	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "lobby"}))
	r1 := broker.Registry().ListRooms()[0].ID
	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: r1}))
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: r1, Content: "hi", UserName: "A"}))
	transport.take(t, "A")
	transport.take(t, "B")

	broker.Disconnect("B")

	members, err := broker.Registry().Members(r1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, members)
	history, _ := broker.Registry().History(r1, 0)
	assert.Len(t, history, 1)
	// Silent to the remaining member.
	assert.Empty(t, transport.take(t, "A"))
	require.Len(t, notifier.left, 1)
	assert.Equal(t, "B", notifier.left[0].ConnectionID)

	// The creator leaving does not delete the room either.
	broker.Disconnect("A")
	assert.Len(t, broker.Registry().ListRooms(), 1)

	// Disconnect without a join is a no-op.
	broker.Disconnect("never-joined")
	assert.Len(t, notifier.left, 2)
}

func TestBroker_JoinMovesConnection(t *testing.T) {
	transport := newFakeTransport("A", "B")
	notifier := &recordingNotifier{}
	broker := newTestBroker(t, transport, notifier)

	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "one"}))
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "two"}))
	rooms := broker.Registry().ListRooms()
	one, two := rooms[0].ID, rooms[1].ID

	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.JoinRoom, RoomID: one}))
	transport.take(t, "B")

	// A moved to "two" when creating it, so messages in "one" reach only B.
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: one, Content: "x", UserName: "A"}))
	assert.Len(t, transport.take(t, "B"), 1)
	transport.take(t, "A")

	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: one, Content: "y", UserName: "B"}))
	assert.Empty(t, transport.take(t, "A"))

	require.NoError(t, broker.Handle("B", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: two, Content: "z", UserName: "B"}))
	assert.Len(t, transport.take(t, "A"), 1)

	roomID, _ := broker.Registry().RoomOf("A")
	assert.Equal(t, two, roomID)
	require.NotEmpty(t, notifier.left)
	assert.Equal(t, one, notifier.left[0].RoomID)
}

func TestBroker_DeliveryFailureIsIsolated(t *testing.T) {
	transport := newFakeTransport("A", "B", "C", "D")
	broker := newTestBroker(t, transport, nil)

	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.CreateRoom, RoomName: "lobby"}))
	r1 := broker.Registry().ListRooms()[0].ID
	for _, id := range []string{"B", "C", "D"} {
		require.NoError(t, broker.Handle(id, protocol.Inbound{Type: protocol.JoinRoom, RoomID: r1}))
		transport.take(t, id)
	}

	transport.fail("C")
	require.NoError(t, broker.Handle("A", protocol.Inbound{Type: protocol.SendRoomMessage, RoomID: r1, Content: "hi", UserName: "A"}))

	assert.Len(t, transport.take(t, "B"), 1)
	assert.Empty(t, transport.take(t, "C"))
	assert.Len(t, transport.take(t, "D"), 1)

	// The message is in history regardless of delivery outcome.
	history, _ := broker.Registry().History(r1, 0)
	assert.Len(t, history, 1)
}

func TestBroker_CreateRoomFromAPI(t *testing.T) {
	transport := newFakeTransport("A", "B")
	notifier := &recordingNotifier{}
	broker := newTestBroker(t, transport, notifier)

	summary, err := broker.CreateRoom("announcements", "api")
	require.NoError(t, err)
	assert.Equal(t, "announcements", summary.Name)

	for _, id := range []string{"A", "B"} {
		frames := transport.take(t, id)
		require.Len(t, frames, 1)
		assert.Equal(t, "ROOMS", frames[0]["type"])
	}
	require.Len(t, notifier.created, 1)
	assert.Equal(t, "api", notifier.created[0].CreatedBy)

	_, err = broker.CreateRoom("", "api")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBroker_PerRoomOrderMatchesHistory(t *testing.T) {
	transport := newFakeTransport("listener")
	broker := newTestBroker(t, transport, nil)

	summary, _ := broker.Registry().CreateRoom("lobby")
	_, err := broker.Registry().JoinRoom(summary.ID, "listener")
	require.NoError(t, err)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		sender := fmt.Sprintf("sender-%d", w)
		g.Go(func() error {
			for i := 0; i < 25; i++ {
				if err := broker.Handle(sender, protocol.Inbound{
					Type:     protocol.SendRoomMessage,
					RoomID:   summary.ID,
					Content:  fmt.Sprintf("%s-%d", sender, i),
					UserName: sender,
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	history, _ := broker.Registry().History(summary.ID, 0)
	frames := transport.take(t, "listener")
	require.Len(t, frames, len(history))
	for i, frame := range frames {
		assert.Equal(t, history[i].Content, frame["content"])
	}
}
