package api

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/room-chat-broker/modules/chat"
	"github.com/example/room-chat-broker/protocol"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	maxRoomNameLength   = 100
	defaultHistoryLimit = 50
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("server is working")
	})
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := app.Group("/api/v1")

	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/rooms/:id/history", m.getHistory)
	api.Get("/activity", m.getActivity)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	stats := m.broker.Registry().Stats()
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
			"rooms":             stats.Rooms,
			"memberships":       stats.Memberships,
			"messages":          stats.Messages,
		},
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	response := RoomListResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
		Total: len(rooms),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, RoomResponse{
			ID:        room.ID,
			Name:      room.Name,
			CreatedAt: room.CreatedAt,
			Members:   room.Members,
			Messages:  room.Messages,
		})
	}

	return c.JSON(response)
}

// createRoom handles POST /api/v1/rooms. The new room is pushed to every
// connected WebSocket client.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Room name is required",
		})
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Room name too long (max 100 characters)",
		})
	}

	room, err := m.chatAdapter.CreateRoom(c.UserContext(), name, "api")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create room",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(RoomResponse{
		ID:   room.ID,
		Name: room.Name,
	})
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	room, err := m.chatAdapter.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}

	return c.JSON(RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
		Members:   room.Members,
		Messages:  room.Messages,
	})
}

// getHistory handles GET /api/v1/rooms/:id/history.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > chat.MaxHistoryPage {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: "limit must be between 1 and " + strconv.Itoa(chat.MaxHistoryPage),
			})
		}
		limit = parsed
	}

	messages, err := m.chatAdapter.GetHistory(c.UserContext(), roomID, limit)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}

	response := HistoryResponse{
		RoomID:   roomID,
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		response.Messages = append(response.Messages, MessageResponse{
			RoomID:    msg.RoomID,
			UserName:  msg.UserName,
			Content:   msg.Content,
			Time:      msg.SentAt.Format(protocol.TimeLayout),
			Timestamp: msg.SentAt,
		})
	}

	return c.JSON(response)
}

// getActivity handles GET /api/v1/activity. The optional room query narrows
// the result to one room.
func (m *APIModule) getActivity(c *fiber.Ctx) error {
	resp, err := m.activityAdapter.GetActivity(c.UserContext(), c.Query("room"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "activity_failed",
			Message: "Failed to read activity",
		})
	}
	return c.JSON(resp)
}
