package core

// Group is the broadcast set of clients subscribed to one room.
type Group struct {
	Name    string
	clients map[*Client]struct{}
}

// NewGroup constructs a group with no clients.
func NewGroup(name string) *Group {
	return &Group{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// Add inserts a client into the group. Returns true if newly added.
func (g *Group) Add(c *Client) bool {
	if _, exists := g.clients[c]; exists {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

// Remove deletes a client from the group. Returns true if removed.
func (g *Group) Remove(c *Client) bool {
	if _, exists := g.clients[c]; !exists {
		return false
	}
	delete(g.clients, c)
	return true
}

// Members returns the clients of the group, skipping except when it is non-nil.
func (g *Group) Members(except *Client) []*Client {
	out := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

// Empty returns true if no clients are in the group.
func (g *Group) Empty() bool {
	return len(g.clients) == 0
}
