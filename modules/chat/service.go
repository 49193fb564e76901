package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
)

// listRooms handles the list-rooms service request.
func (m *Module) listRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms := m.registry.Rooms()
	return ListRoomsResponse{Rooms: rooms, Total: len(rooms)}, nil
}

// getRoom handles the get-room service request.
func (m *Module) getRoom(_ context.Context, req GetRoomRequest, _ *mono.Msg) (GetRoomResponse, error) {
	room, err := m.registry.Room(req.RoomID)
	if err != nil {
		return GetRoomResponse{}, err
	}
	return GetRoomResponse{Room: room}, nil
}

// getHistory handles the get-history service request.
func (m *Module) getHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	if req.Limit < 0 || req.Limit > MaxHistoryPage {
		return GetHistoryResponse{}, fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidInput, MaxHistoryPage)
	}

	messages, err := m.registry.History(req.RoomID, req.Limit)
	if err != nil {
		return GetHistoryResponse{}, err
	}
	return GetHistoryResponse{RoomID: req.RoomID, Messages: messages}, nil
}

// createRoom handles the create-room service request. Every connected client
// receives the updated room list.
func (m *Module) createRoom(_ context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = "api"
	}

	summary, err := m.broker.CreateRoom(req.Name, createdBy)
	if err != nil {
		return CreateRoomResponse{}, err
	}
	return CreateRoomResponse{Room: summary}, nil
}
