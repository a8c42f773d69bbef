package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status is one of the enumerated values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is one of the enumerated values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Field length ceilings enforced at write time.
const (
	TicketTitleMaxLen       = 30
	TicketDescriptionMaxLen = 150
)

// Ticket is the aggregate for support requests. CreatorEmail is captured
// at creation and never mutated afterwards. AssignedTo, when set, must
// reference an existing user.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Priority     TicketPriority
	Status       TicketStatus
	CreatorEmail string
	AssignedTo   *string
	Image        string
	MessageIDs   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
