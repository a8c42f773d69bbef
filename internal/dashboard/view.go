package dashboard

import (
	"context"
	"sort"

	"github.com/opsdesk/helpdesk-service/internal/api/dto"
	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// Filter narrows the rendered rows. Empty fields match everything.
type Filter struct {
	Status     string
	AssignedTo string
	Priority   string
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable columns. Date columns compare as timestamps, the rest
// lexicographically.
const (
	ColumnTitle      = "title"
	ColumnStatus     = "status"
	ColumnPriority   = "priority"
	ColumnCreator    = "creatorEmail"
	ColumnAssignedTo = "assignedTo"
	ColumnCreatedAt  = "createdAt"
	ColumnUpdatedAt  = "updatedAt"
)

// Project applies filter-then-sort to a fetched ticket set. The input
// slice is not modified.
func Project(tickets []dto.TicketResponse, filter Filter, sortBy string, order SortOrder) []dto.TicketResponse {
	filtered := make([]dto.TicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		if filter.Status != "" && string(ticket.Status) != filter.Status {
			continue
		}
		if filter.Priority != "" && string(ticket.Priority) != filter.Priority {
			continue
		}
		if filter.AssignedTo != "" {
			if ticket.AssignedTo == nil || *ticket.AssignedTo != filter.AssignedTo {
				continue
			}
		}
		filtered = append(filtered, ticket)
	}

	if sortBy == "" {
		return filtered
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if order == SortDesc {
			return ticketLess(filtered[j], filtered[i], sortBy)
		}
		return ticketLess(filtered[i], filtered[j], sortBy)
	})
	return filtered
}

// ticketLess is a total order: ties on the sort key fall back to the id,
// so descending is always the exact reverse of ascending.
func ticketLess(a, b dto.TicketResponse, column string) bool {
	switch column {
	case ColumnCreatedAt:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	case ColumnUpdatedAt:
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	default:
		av, bv := columnValue(a, column), columnValue(b, column)
		if av != bv {
			return av < bv
		}
	}
	return a.ID < b.ID
}

func columnValue(t dto.TicketResponse, column string) string {
	switch column {
	case ColumnTitle:
		return t.Title
	case ColumnStatus:
		return string(t.Status)
	case ColumnPriority:
		return string(t.Priority)
	case ColumnCreator:
		return t.CreatorEmail
	case ColumnAssignedTo:
		if t.AssignedTo == nil {
			return ""
		}
		return *t.AssignedTo
	default:
		return t.ID
	}
}

// TicketList is the view-state behind a rendered ticket table: the
// fetched rows plus the active filter and sort. Mutations patch the
// local copy first and then re-fetch so the table converges on what
// the store holds.
type TicketList struct {
	client  *Client
	fetch   func(ctx context.Context) ([]dto.TicketResponse, error)
	tickets []dto.TicketResponse
	filter  Filter
	sortBy  string
	order   SortOrder
	Err     error
}

// NewAdminTicketList backs the global admin table.
func NewAdminTicketList(client *Client) *TicketList {
	return &TicketList{client: client, fetch: client.AllTickets, order: SortAsc}
}

// NewUserTicketList backs the personal (assigned or created) table.
func NewUserTicketList(client *Client, userID string) *TicketList {
	return &TicketList{
		client: client,
		fetch: func(ctx context.Context) ([]dto.TicketResponse, error) {
			return client.UserTickets(ctx, userID)
		},
		order: SortAsc,
	}
}

// Refresh re-fetches the ticket set. A failure is recorded on Err and
// leaves the previous rows rendered; it never panics the view.
func (l *TicketList) Refresh(ctx context.Context) error {
	tickets, err := l.fetch(ctx)
	if err != nil {
		l.Err = err
		return err
	}
	l.Err = nil
	l.tickets = tickets
	return nil
}

// SetFilter replaces the active filter.
func (l *TicketList) SetFilter(filter Filter) {
	l.filter = filter
}

// SortBy selects a sort column; selecting the active column again
// toggles the direction.
func (l *TicketList) SortBy(column string) {
	if l.sortBy == column {
		if l.order == SortAsc {
			l.order = SortDesc
		} else {
			l.order = SortAsc
		}
		return
	}
	l.sortBy = column
	l.order = SortAsc
}

// Rows returns the filtered, sorted projection to render.
func (l *TicketList) Rows() []dto.TicketResponse {
	return Project(l.tickets, l.filter, l.sortBy, l.order)
}

// ChangeStatus patches a row locally, round-trips the mutation and
// re-fetches.
func (l *TicketList) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	l.patchLocal(ticketID, func(t *dto.TicketResponse) { t.Status = status })
	return l.mutate(ctx, ticketID, dto.UpdateTicketRequest{Status: &status})
}

// ChangePriority patches a row locally, round-trips the mutation and
// re-fetches.
func (l *TicketList) ChangePriority(ctx context.Context, ticketID string, priority domain.TicketPriority) error {
	l.patchLocal(ticketID, func(t *dto.TicketResponse) { t.Priority = priority })
	return l.mutate(ctx, ticketID, dto.UpdateTicketRequest{Priority: &priority})
}

// Assign patches the assignee locally, round-trips the mutation and
// re-fetches. A nil userID clears the assignment.
func (l *TicketList) Assign(ctx context.Context, ticketID string, userID *string) error {
	l.patchLocal(ticketID, func(t *dto.TicketResponse) { t.AssignedTo = userID })
	return l.mutate(ctx, ticketID, dto.UpdateTicketRequest{
		AssignedTo: dto.NullableString{Set: true, Value: userID},
	})
}

func (l *TicketList) patchLocal(ticketID string, apply func(*dto.TicketResponse)) {
	for i := range l.tickets {
		if l.tickets[i].ID == ticketID {
			apply(&l.tickets[i])
			return
		}
	}
}

func (l *TicketList) mutate(ctx context.Context, ticketID string, patch dto.UpdateTicketRequest) error {
	if _, err := l.client.UpdateTicket(ctx, ticketID, patch); err != nil {
		l.Err = err
		return err
	}
	return l.Refresh(ctx)
}
