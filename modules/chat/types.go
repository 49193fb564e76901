package chat

import domain "github.com/example/room-chat-broker/domain/chat"

// Service names registered by the chat module.
const (
	ServiceListRooms  = "list-rooms"
	ServiceGetRoom    = "get-room"
	ServiceGetHistory = "get-history"
	ServiceCreateRoom = "create-room"
)

// MaxHistoryPage caps the number of messages returned by get-history.
const MaxHistoryPage = 1000

// ListRoomsRequest is the request for listing rooms.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for listing rooms.
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
	Total int           `json:"total"`
}

// GetRoomRequest is the request for getting a room.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomResponse is the response for getting a room.
type GetRoomResponse struct {
	Room domain.Room `json:"room"`
}

// GetHistoryRequest is the request for reading a room's history.
type GetHistoryRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

// GetHistoryResponse is the response for reading a room's history.
type GetHistoryResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}

// CreateRoomRequest is the request for creating a room outside a WebSocket
// session.
type CreateRoomRequest struct {
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

// CreateRoomResponse is the response for creating a room.
type CreateRoomResponse struct {
	Room domain.RoomSummary `json:"room"`
}
