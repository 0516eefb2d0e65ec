package core

import "time"

// DefaultUsername is used when a client does not name itself.
const DefaultUsername = "Anonymous"

// Message is a relayed chat line. It is never persisted.
type Message struct {
	From      string
	Username  string
	Text      string
	CreatedAt time.Time
}
