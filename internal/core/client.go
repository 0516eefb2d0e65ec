package core

import "sync"

const (
	commandBuffer = 64
	eventBuffer   = 256
)

// Client is a connection session as seen by the core layer.
// Rooms and pending are owned by the hub goroutine.
type Client struct {
	ID       string
	Name     string
	Commands chan *Command
	Events   chan *Event
	Rooms    map[string]struct{}

	// pending tracks joins whose store round-trip is in flight.
	// A false value marks a join cancelled by a leave before it completed.
	pending map[string]bool
	closed  bool

	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	if name == "" {
		name = DefaultUsername
	}
	return &Client{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
		Rooms:    make(map[string]struct{}),
		pending:  make(map[string]bool),
	}
}

// closeCommands ends the command stream. The hub treats it as a disconnect.
func (c *Client) closeCommands() {
	c.closeOnce.Do(func() { close(c.Commands) })
}
