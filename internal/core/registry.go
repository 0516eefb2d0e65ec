package core

import "sync"

// Registry owns the live state of every room that has connected participants.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*LiveRoom
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*LiveRoom)}
}

// Ensure returns the live room for roomID, seeding it from the given code and
// language when it does not exist yet. created is true only for the call that seeded it.
func (r *Registry) Ensure(roomID, seedCode, seedLanguage string) (*LiveRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room, false
	}
	room := newLiveRoom(roomID, seedCode, seedLanguage)
	r.rooms[roomID] = room
	return room, true
}

// Get returns the live room for roomID.
func (r *Registry) Get(roomID string) (*LiveRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// RemoveIfEmpty discards the live room when it has no participants left.
// The pending save of a discarded room is cancelled.
func (r *Registry) RemoveIfEmpty(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || room.ParticipantCount() > 0 {
		return false
	}
	room.discard()
	delete(r.rooms, roomID)
	return true
}

// Stats returns the number of live rooms and connected participants.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		participants += room.ParticipantCount()
	}
	return len(r.rooms), participants
}

// FlushPending runs every pending save immediately and returns how many ran.
func (r *Registry) FlushPending() int {
	r.mu.Lock()
	rooms := make([]*LiveRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	flushed := 0
	for _, room := range rooms {
		if room.FlushSave() {
			flushed++
		}
	}
	return flushed
}
