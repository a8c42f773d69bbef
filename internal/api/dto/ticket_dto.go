package dto

import (
	"encoding/json"
	"time"

	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// NullableString distinguishes an explicit JSON null from an absent
// field. The assignment endpoint accepts null to clear the assignee.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records presence and decodes the value.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	CreatorEmail string                `json:"creatorEmail"`
	Image        string                `json:"image"`
}

// UpdateTicketRequest carries the partial-update allow-list. Fields
// outside it simply have nowhere to land.
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus   `json:"status"`
	Priority   *domain.TicketPriority `json:"priority"`
	AssignedTo NullableString         `json:"assignedTo"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the public ticket representation.
type TicketResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	CreatorEmail string                `json:"creatorEmail"`
	AssignedTo   *string               `json:"assignedTo"`
	Image        string                `json:"image"`
	Messages     []string              `json:"messages"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	messages := ticket.MessageIDs
	if messages == nil {
		messages = []string{}
	}
	return TicketResponse{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		CreatorEmail: ticket.CreatorEmail,
		AssignedTo:   ticket.AssignedTo,
		Image:        ticket.Image,
		Messages:     messages,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

// NewTicketListResponse maps a slice of domain tickets.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		result = append(result, NewTicketResponse(&tickets[i]))
	}
	return result
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessageResponse maps a domain message.
func NewMessageResponse(msg *domain.TicketMessage) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		TicketID:  msg.TicketID,
		AuthorID:  msg.AuthorID,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
}

// NewMessageListResponse maps a message thread.
func NewMessageListResponse(messages []domain.TicketMessage) []MessageResponse {
	result := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		result = append(result, NewMessageResponse(&messages[i]))
	}
	return result
}

// HistoryResponse represents one audit entry.
type HistoryResponse struct {
	ID         string                  `json:"id"`
	TicketID   string                  `json:"ticketId"`
	ActorID    string                  `json:"actorId"`
	ChangeType domain.TicketChangeType `json:"changeType"`
	OldValue   map[string]any          `json:"oldValue"`
	NewValue   map[string]any          `json:"newValue"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// NewHistoryListResponse maps audit entries.
func NewHistoryListResponse(entries []domain.TicketHistory) []HistoryResponse {
	result := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, HistoryResponse{
			ID:         entry.ID,
			TicketID:   entry.TicketID,
			ActorID:    entry.ActorID,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return result
}
