package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/example/room-chat-broker/domain/chat"
	nanoid "github.com/jaevor/go-nanoid"
)

// roomIDLength is the nanoid length used for generated room ids.
const roomIDLength = 12

type room struct {
	id        string
	name      string
	createdAt time.Time
	members   map[string]struct{}
	history   *History
}

// RoomSnapshot is returned by JoinRoom.
type RoomSnapshot struct {
	RoomID  string
	Name    string
	History []domain.Message
	// Previous is the room the connection was moved out of, if any.
	Previous string
	// Rejoined is set when the connection was already a member.
	Rejoined bool
}

// Delivery is the result of AppendMessage: the stored message and the room
// members at the time of the append, sender included.
type Delivery struct {
	Message domain.Message
	Members []string
}

// Stats summarizes registry contents.
type Stats struct {
	Rooms       int `json:"rooms"`
	Memberships int `json:"memberships"`
	Messages    int `json:"messages"`
}

// Registry owns every room, its member set and its history.
//
// A single RWMutex guards the whole registry, so a member set read for a
// broadcast is never observed mid-update. A connection belongs to at most one
// room: joining another room moves it.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	order        []string
	memberOf     map[string]string // connectionID -> roomID
	historyLimit int
	newID        func() string
	now          func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithHistoryLimit caps each room's history. Zero keeps it unbounded.
func WithHistoryLimit(limit int) Option {
	return func(r *Registry) {
		r.historyLimit = limit
	}
}

// WithIDGenerator overrides the room id generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

// WithClock overrides the wall clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		rooms:    make(map[string]*room),
		memberOf: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.newID == nil {
		gen, err := nanoid.Standard(roomIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create room id generator: %w", err)
		}
		r.newID = gen
	}

	return r, nil
}

// CreateRoom inserts an empty room and returns its summary. Names need not be
// unique; ids always are.
func (r *Registry) CreateRoom(name string) (domain.RoomSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.RoomSummary{}, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, taken := r.rooms[id]; !taken {
			break
		}
		id = r.newID()
	}

	r.rooms[id] = &room{
		id:        id,
		name:      name,
		createdAt: r.now(),
		members:   make(map[string]struct{}),
		history:   NewHistory(r.historyLimit),
	}
	r.order = append(r.order, id)

	return domain.RoomSummary{ID: id, Name: name}, nil
}

// JoinRoom makes connID a member of roomID and returns the room history.
// Joining the current room again changes nothing. An unknown room leaves the
// registry untouched.
func (r *Registry) JoinRoom(roomID, connID string) (RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	snap := RoomSnapshot{
		RoomID:  target.id,
		Name:    target.name,
		History: target.history.Snapshot(),
	}

	if current, ok := r.memberOf[connID]; ok {
		if current == roomID {
			snap.Rejoined = true
			return snap, nil
		}
		if prev, ok := r.rooms[current]; ok {
			delete(prev.members, connID)
		}
		snap.Previous = current
	}

	target.members[connID] = struct{}{}
	r.memberOf[connID] = roomID
	return snap, nil
}

// LeaveRoom removes connID from its room and returns that room's id.
// It is a no-op for connections that never joined.
func (r *Registry) LeaveRoom(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.memberOf[connID]
	if !ok {
		return "", false
	}
	delete(r.memberOf, connID)
	if rm, ok := r.rooms[roomID]; ok {
		delete(rm.members, connID)
	}
	return roomID, true
}

// ListRooms returns every room in creation order.
func (r *Registry) ListRooms() []domain.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		rm := r.rooms[id]
		result = append(result, domain.RoomSummary{ID: rm.id, Name: rm.name})
	}
	return result
}

// AppendMessage stamps msg, appends it to the room history and returns it
// with the current member set. Timestamps never go backwards within a room.
func (r *Registry) AppendMessage(roomID string, msg domain.Message) (Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Delivery{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	msg.RoomID = roomID
	msg.SentAt = r.now()
	if last, ok := rm.history.Last(); ok && msg.SentAt.Before(last.SentAt) {
		msg.SentAt = last.SentAt
	}
	rm.history.Append(msg)

	members := make([]string, 0, len(rm.members))
	for id := range rm.members {
		members = append(members, id)
	}

	return Delivery{Message: msg, Members: members}, nil
}

// Room returns a view of a single room.
func (r *Registry) Room(roomID string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return domain.Room{
		ID:        rm.id,
		Name:      rm.name,
		CreatedAt: rm.createdAt,
		Members:   len(rm.members),
		Messages:  rm.history.Len(),
	}, nil
}

// Rooms returns a view of every room in creation order.
func (r *Registry) Rooms() []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Room, 0, len(r.order))
	for _, id := range r.order {
		rm := r.rooms[id]
		result = append(result, domain.Room{
			ID:        rm.id,
			Name:      rm.name,
			CreatedAt: rm.createdAt,
			Members:   len(rm.members),
			Messages:  rm.history.Len(),
		})
	}
	return result
}

// History returns the newest limit messages of a room; limit <= 0 returns all.
func (r *Registry) History(roomID string, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return rm.history.Tail(limit), nil
}

// Members returns the connection ids currently in a room.
func (r *Registry) Members(roomID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	members := make([]string, 0, len(rm.members))
	for id := range rm.members {
		members = append(members, id)
	}
	return members, nil
}

// RoomOf returns the room a connection is in.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.memberOf[connID]
	return roomID, ok
}

// Stats returns registry totals.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Rooms: len(r.rooms), Memberships: len(r.memberOf)}
	for _, rm := range r.rooms {
		stats.Messages += rm.history.Len()
	}
	return stats
}
