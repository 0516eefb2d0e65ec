package core

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Participant is a connected member of a live room.
type Participant struct {
	ID       string
	Username string
	JoinedAt time.Time
}

// Cursor is the last reported cursor of a participant.
// Position and Selection are editor-defined JSON passed through untouched.
type Cursor struct {
	UserID    string
	Position  json.RawMessage
	Selection json.RawMessage
	Timestamp time.Time
}

// LiveRoom is the in-memory state of a room with at least one connected participant.
type LiveRoom struct {
	ID string

	mu           sync.RWMutex
	code         string
	language     string
	participants map[string]Participant
	cursors      map[string]Cursor

	saveTimer *time.Timer
	saveFn    func()
	saveSeq   uint64
	discarded bool
}

func newLiveRoom(id, code, language string) *LiveRoom {
	return &LiveRoom{
		ID:           id,
		code:         code,
		language:     language,
		participants: make(map[string]Participant),
		cursors:      make(map[string]Cursor),
	}
}

// Code returns the current buffer.
func (r *LiveRoom) Code() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.code
}

// Language returns the current language.
func (r *LiveRoom) Language() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.language
}

// SetCode overwrites the buffer, and the language when one is given.
func (r *LiveRoom) SetCode(code, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
	if language != "" {
		r.language = language
	}
}

// SetLanguage overwrites the language.
func (r *LiveRoom) SetLanguage(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.language = language
}

// AddParticipant inserts or replaces a participant.
func (r *LiveRoom) AddParticipant(id, username string, joinedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[id] = Participant{ID: id, Username: username, JoinedAt: joinedAt}
}

// SetUsername renames an existing participant. It reports whether the name changed.
func (r *LiveRoom) SetUsername(id, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok || p.Username == username {
		return false
	}
	p.Username = username
	r.participants[id] = p
	return true
}

// RemoveParticipant drops a participant and its cursor.
func (r *LiveRoom) RemoveParticipant(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	delete(r.cursors, id)
	return true
}

// HasParticipant reports whether id is connected to the room.
func (r *LiveRoom) HasParticipant(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[id]
	return ok
}

// ParticipantCount returns the number of connected participants.
func (r *LiveRoom) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Participants returns a snapshot ordered by join time.
func (r *LiveRoom) Participants() []Participant {
	r.mu.RLock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetCursor overwrites the cursor of a participant.
func (r *LiveRoom) SetCursor(c Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[c.UserID] = c
}

// Cursors returns a snapshot ordered by user id.
func (r *LiveRoom) Cursors() []Cursor {
	r.mu.RLock()
	out := make([]Cursor, 0, len(r.cursors))
	for _, c := range r.cursors {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// ScheduleSave replaces any pending save with fn, run after delay.
// A superseded or cancelled save never runs.
func (r *LiveRoom) ScheduleSave(delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded {
		return
	}
	if r.saveTimer != nil {
		r.saveTimer.Stop()
	}
	r.saveSeq++
	seq := r.saveSeq
	r.saveFn = fn
	r.saveTimer = time.AfterFunc(delay, func() {
		if run := r.takeSave(seq); run != nil {
			run()
		}
	})
}

// HasPendingSave reports whether a save is scheduled.
func (r *LiveRoom) HasPendingSave() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveFn != nil
}

// CancelSave drops the pending save, if any.
func (r *LiveRoom) CancelSave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSaveLocked()
}

// FlushSave runs the pending save now. It reports whether one was pending.
func (r *LiveRoom) FlushSave() bool {
	r.mu.Lock()
	run := r.saveFn
	r.clearSaveLocked()
	r.mu.Unlock()

	if run == nil {
		return false
	}
	run()
	return true
}

// takeSave claims the save for generation seq if it is still current.
func (r *LiveRoom) takeSave(seq uint64) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discarded || seq != r.saveSeq || r.saveFn == nil {
		return nil
	}
	run := r.saveFn
	r.saveFn = nil
	r.saveTimer = nil
	return run
}

func (r *LiveRoom) clearSaveLocked() {
	if r.saveTimer != nil {
		r.saveTimer.Stop()
		r.saveTimer = nil
	}
	r.saveFn = nil
	r.saveSeq++
}

func (r *LiveRoom) discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearSaveLocked()
	r.discarded = true
}
