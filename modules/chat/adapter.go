package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/room-chat-broker/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the room administration operations used by the HTTP API.
type ChatPort interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	CreateRoom(ctx context.Context, name, createdBy string) (domain.RoomSummary, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// ListRooms returns every room in creation order.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]domain.Room, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// GetRoom retrieves a room by ID.
func (a *ChatAdapter) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Room{}, fmt.Errorf("failed to get room: %w", err)
	}
	return resp.Room, nil
}

// GetHistory retrieves the newest limit messages of a room.
func (a *ChatAdapter) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := GetHistoryRequest{RoomID: roomID, Limit: limit}
	var resp GetHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return resp.Messages, nil
}

// CreateRoom creates a room and announces it to every connection.
func (a *ChatAdapter) CreateRoom(ctx context.Context, name, createdBy string) (domain.RoomSummary, error) {
	req := CreateRoomRequest{Name: name, CreatedBy: createdBy}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.RoomSummary{}, fmt.Errorf("failed to create room: %w", err)
	}
	return resp.Room, nil
}
