package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/codecollab-server/internal/store"
)

// Options tunes the hub.
type Options struct {
	// SaveDebounce is the quiet period before a code change is persisted.
	SaveDebounce time.Duration
	// MaxRoomsPerSession caps joined plus joining rooms per client. Zero disables the cap.
	MaxRoomsPerSession int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		SaveDebounce:       time.Second,
		MaxRoomsPerSession: 16,
	}
}

// Hub routes client commands to room state. Every mutation of live room
// state happens on the goroutine running Run; store I/O runs on the Writer.
type Hub struct {
	store    store.RoomStore
	registry *Registry
	writer   *Writer
	opts     Options
	log      *zerolog.Logger

	register chan *Client
	inbox    chan inbound
	results  chan joinResult
	done     chan struct{}

	clients map[string]*Client
	groups  map[string]*Group
	evict   []*Client
}

// inbound is a command from a client. A nil cmd means the client disconnected.
type inbound struct {
	client *Client
	cmd    *Command
}

type joinResult struct {
	client   *Client
	roomID   string
	username string
	room     *store.Room
	err      error
}

// NewHub creates a hub. Run must be called to start dispatching.
func NewHub(st store.RoomStore, registry *Registry, writer *Writer, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:    st,
		registry: registry,
		writer:   writer,
		opts:     opts,
		log:      logger,
		register: make(chan *Client),
		inbox:    make(chan inbound, 256),
		results:  make(chan joinResult, 64),
		done:     make(chan struct{}),
		clients:  make(map[string]*Client),
		groups:   make(map[string]*Group),
	}
}

// Registry returns the live room registry used by the hub.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RegisterClient attaches a client to the hub and starts consuming its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient ends the client's command stream. The hub then removes the
// client from every room it joined and closes its Events channel.
func (h *Hub) UnregisterClient(c *Client) {
	c.closeCommands()
}

// Run dispatches commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c.ID] = c
			go h.pump(c)
		case in := <-h.inbox:
			if in.cmd == nil {
				h.closeClient(in.client)
			} else {
				h.dispatch(in.client, in.cmd)
			}
		case res := <-h.results:
			h.finishJoin(res)
		case <-ctx.Done():
			h.shutdown()
			return
		}
		h.evictSlow()
	}
}

func (h *Hub) pump(c *Client) {
	for cmd := range c.Commands {
		if cmd == nil {
			continue
		}
		select {
		case h.inbox <- inbound{client: c, cmd: cmd}:
		case <-h.done:
			return
		}
	}
	select {
	case h.inbox <- inbound{client: c}:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	if n := h.registry.FlushPending(); n > 0 {
		h.log.Info().Int("rooms", n).Msg("flushed pending saves")
	}
	for _, c := range h.clients {
		h.closeClient(c)
	}
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	if c.closed {
		return
	}
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(c, cmd)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd.Room)
	case CommandCodeChange:
		h.handleCodeChange(c, cmd)
	case CommandCursorChange:
		h.handleCursorChange(c, cmd)
	case CommandChatMessage:
		h.handleChat(c, cmd)
	case CommandTyping:
		h.broadcast(cmd.Room, &Event{Kind: EventUserTyping, Room: cmd.Room, User: c.ID, IsTyping: cmd.IsTyping}, c)
	case CommandLanguageChange:
		h.handleLanguageChange(c, cmd)
	case CommandRoomUpdate:
		h.handleRoomUpdate(c, cmd)
	default:
		h.send(c, errorEvent(cmd.Room, ErrCodeUnknownEvent, "unknown command"))
	}
}

func (h *Hub) handleJoin(c *Client, cmd *Command) {
	roomID := cmd.Room
	username := cmd.Username
	if username == "" {
		username = DefaultUsername
	}
	c.Name = username

	if _, joined := c.Rooms[roomID]; joined {
		// Re-join refreshes the name and the snapshot instead of adding a second membership.
		if live, ok := h.registry.Get(roomID); ok {
			if live.SetUsername(c.ID, username) {
				h.renameStoredParticipant(roomID, c.ID, username)
				h.broadcast(roomID, &Event{
					Kind:         EventUserJoined,
					Room:         roomID,
					User:         c.ID,
					Username:     username,
					Participants: live.Participants(),
				}, c)
			}
			h.send(c, snapshotEvent(live))
		}
		return
	}
	if _, inFlight := c.pending[roomID]; inFlight {
		c.pending[roomID] = true
		return
	}
	if limit := h.opts.MaxRoomsPerSession; limit > 0 && len(c.Rooms)+len(c.pending) >= limit {
		h.send(c, errorEvent(roomID, ErrCodeTooManyRooms, "Too many rooms joined"))
		return
	}

	c.pending[roomID] = true
	clientID := c.ID
	submitted := h.writer.Submit(roomID, func(ctx context.Context) {
		room, err := h.loadOrCreateRoom(ctx, roomID, username)
		if err == nil {
			_, err = h.store.AddParticipant(ctx, roomID, clientID, username)
		}
		h.postJoinResult(joinResult{client: c, roomID: roomID, username: username, room: room, err: err})
	})
	if !submitted {
		delete(c.pending, roomID)
		h.send(c, errorEvent(roomID, ErrCodeJoinFailed, "Failed to join room"))
	}
}

func (h *Hub) loadOrCreateRoom(ctx context.Context, roomID, username string) (*store.Room, error) {
	room, err := h.store.GetRoom(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	room, err = h.store.CreateRoom(ctx, store.CreateRoomParams{
		RoomID:    roomID,
		Title:     store.DefaultTitle,
		Language:  store.DefaultLanguage,
		CreatedBy: username,
	})
	if errors.Is(err, store.ErrDuplicateRoom) {
		return h.store.GetRoom(ctx, roomID)
	}
	return room, err
}

// postJoinResult hands a join result back to the hub without blocking the writer.
func (h *Hub) postJoinResult(res joinResult) {
	go func() {
		select {
		case h.results <- res:
		case <-h.done:
		}
	}()
}

func (h *Hub) finishJoin(res joinResult) {
	c := res.client
	active := c.pending[res.roomID]
	delete(c.pending, res.roomID)

	if c.closed || !active {
		if res.err == nil {
			h.removeStoredParticipant(res.roomID, c.ID)
		}
		return
	}
	if res.err != nil {
		h.log.Error().Err(res.err).Str("room_id", res.roomID).Str("client_id", c.ID).Msg("join room")
		h.send(c, errorEvent(res.roomID, ErrCodeJoinFailed, "Failed to join room"))
		return
	}

	live, created := h.registry.Ensure(res.roomID, res.room.Code, res.room.Language)
	if created {
		h.log.Debug().Str("room_id", res.roomID).Msg("live room created")
	}
	live.AddParticipant(c.ID, res.username, time.Now())

	group, ok := h.groups[res.roomID]
	if !ok {
		group = NewGroup(res.roomID)
		h.groups[res.roomID] = group
	}
	group.Add(c)
	c.Rooms[res.roomID] = struct{}{}

	h.send(c, snapshotEvent(live))
	h.broadcast(res.roomID, &Event{
		Kind:         EventUserJoined,
		Room:         res.roomID,
		User:         c.ID,
		Username:     res.username,
		Participants: live.Participants(),
	}, c)
}

func (h *Hub) handleLeave(c *Client, roomID string) {
	if _, inFlight := c.pending[roomID]; inFlight {
		c.pending[roomID] = false
	}
	if _, joined := c.Rooms[roomID]; !joined {
		return
	}
	h.leave(c, roomID)
}

func (h *Hub) leave(c *Client, roomID string) {
	delete(c.Rooms, roomID)
	if group, ok := h.groups[roomID]; ok {
		group.Remove(c)
		if group.Empty() {
			delete(h.groups, roomID)
		}
	}
	h.removeStoredParticipant(roomID, c.ID)

	live, ok := h.registry.Get(roomID)
	if !ok {
		return
	}
	live.RemoveParticipant(c.ID)
	h.broadcast(roomID, &Event{
		Kind:         EventUserLeft,
		Room:         roomID,
		User:         c.ID,
		Participants: live.Participants(),
	}, c)
	if h.registry.RemoveIfEmpty(roomID) {
		h.log.Debug().Str("room_id", roomID).Msg("live room discarded")
	}
}

func (h *Hub) removeStoredParticipant(roomID, userID string) {
	h.writer.Submit(roomID, func(ctx context.Context) {
		_, err := h.store.RemoveParticipant(ctx, roomID, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.log.Error().Err(err).Str("room_id", roomID).Str("client_id", userID).Msg("remove participant")
		}
	})
}

func (h *Hub) renameStoredParticipant(roomID, userID, username string) {
	h.writer.Submit(roomID, func(ctx context.Context) {
		if _, err := h.store.RenameParticipant(ctx, roomID, userID, username); err != nil && !errors.Is(err, store.ErrNotFound) {
			h.log.Error().Err(err).Str("room_id", roomID).Str("client_id", userID).Msg("rename participant")
		}
	})
}

func (h *Hub) handleCodeChange(c *Client, cmd *Command) {
	live, ok := h.registry.Get(cmd.Room)
	if !ok {
		return
	}
	live.SetCode(cmd.Code, cmd.Language)
	h.broadcast(cmd.Room, &Event{
		Kind:     EventCodeUpdated,
		Room:     cmd.Room,
		User:     c.ID,
		Code:     cmd.Code,
		Language: cmd.Language,
	}, c)

	roomID := cmd.Room
	code := cmd.Code
	withLanguage := cmd.Language != ""
	live.ScheduleSave(h.opts.SaveDebounce, func() {
		update := store.RoomUpdate{Code: &code}
		// Language is read when the timer fires, not when the save is scheduled.
		if withLanguage {
			language := live.Language()
			update.Language = &language
		}
		h.writer.Submit(roomID, func(ctx context.Context) {
			if _, err := h.store.UpdateRoom(ctx, roomID, update); err != nil {
				h.log.Error().Err(err).Str("room_id", roomID).Msg("save code")
			}
		})
	})
}

func (h *Hub) handleCursorChange(c *Client, cmd *Command) {
	live, ok := h.registry.Get(cmd.Room)
	if !ok {
		return
	}
	cursor := Cursor{
		UserID:    c.ID,
		Position:  cmd.Position,
		Selection: cmd.Selection,
		Timestamp: time.Now(),
	}
	live.SetCursor(cursor)
	h.broadcast(cmd.Room, &Event{Kind: EventCursorUpdated, Room: cmd.Room, User: c.ID, Cursor: &cursor}, c)
}

func (h *Hub) handleChat(c *Client, cmd *Command) {
	username := cmd.Username
	if username == "" {
		username = DefaultUsername
	}
	h.broadcast(cmd.Room, &Event{
		Kind: EventChatMessage,
		Room: cmd.Room,
		User: c.ID,
		Message: Message{
			From:      c.ID,
			Username:  username,
			Text:      cmd.Message,
			CreatedAt: time.Now(),
		},
	}, nil)
}

func (h *Hub) handleLanguageChange(c *Client, cmd *Command) {
	if live, ok := h.registry.Get(cmd.Room); ok {
		live.SetLanguage(cmd.Language)
	}
	h.broadcast(cmd.Room, &Event{Kind: EventLanguageUpdated, Room: cmd.Room, User: c.ID, Language: cmd.Language}, nil)

	roomID := cmd.Room
	language := cmd.Language
	h.writer.Submit(roomID, func(ctx context.Context) {
		if _, err := h.store.UpdateRoom(ctx, roomID, store.RoomUpdate{Language: &language}); err != nil {
			h.log.Error().Err(err).Str("room_id", roomID).Msg("save language")
		}
	})
}

func (h *Hub) handleRoomUpdate(c *Client, cmd *Command) {
	h.broadcast(cmd.Room, &Event{
		Kind:        EventRoomUpdated,
		Room:        cmd.Room,
		User:        c.ID,
		Title:       cmd.Title,
		Description: cmd.Description,
	}, nil)

	roomID := cmd.Room
	update := store.RoomUpdate{Title: cmd.Title, Description: cmd.Description}
	h.writer.Submit(roomID, func(ctx context.Context) {
		if _, err := h.store.UpdateRoom(ctx, roomID, update); err != nil {
			h.log.Error().Err(err).Str("room_id", roomID).Msg("save room metadata")
		}
	})
}

// broadcast delivers ev to every member of the room except the given client.
func (h *Hub) broadcast(roomID string, ev *Event, except *Client) {
	group, ok := h.groups[roomID]
	if !ok {
		return
	}
	for _, c := range group.Members(except) {
		h.send(c, ev)
	}
}

// send delivers ev without blocking. A client whose buffer is full is evicted
// after the current command finishes.
func (h *Hub) send(c *Client, ev *Event) {
	if c.closed {
		return
	}
	select {
	case c.Events <- ev:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("client event buffer full, disconnecting")
		h.evict = append(h.evict, c)
	}
}

func (h *Hub) evictSlow() {
	for len(h.evict) > 0 {
		c := h.evict[0]
		h.evict = h.evict[1:]
		h.closeClient(c)
	}
}

// closeClient leaves every room the client joined and closes its Events channel.
func (h *Hub) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	for roomID := range c.pending {
		c.pending[roomID] = false
	}
	for roomID := range c.Rooms {
		h.leave(c, roomID)
	}
	delete(h.clients, c.ID)
	close(c.Events)
}

func snapshotEvent(live *LiveRoom) *Event {
	return &Event{
		Kind:         EventRoomJoined,
		Room:         live.ID,
		Code:         live.Code(),
		Language:     live.Language(),
		Participants: live.Participants(),
		Cursors:      live.Cursors(),
	}
}
