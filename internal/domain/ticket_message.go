package domain

import "time"

// TicketMessage is one entry in a ticket's ordered message thread.
type TicketMessage struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
