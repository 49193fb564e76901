package chat

import "time"

// Room is a read-only view of a chat room.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   int       `json:"members"`
	Messages  int       `json:"messages"`
}

// RoomSummary is the {id, name} pair carried by room list updates.
type RoomSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a chat message stored in a room's history.
// Messages are never mutated after they are appended.
type Message struct {
	RoomID   string    `json:"room_id"`
	UserName string    `json:"user_name"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}
