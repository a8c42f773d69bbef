package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/helpdesk-service/internal/domain"
	"github.com/opsdesk/helpdesk-service/internal/events"
	"github.com/opsdesk/helpdesk-service/internal/repository"
	apperrors "github.com/opsdesk/helpdesk-service/pkg/util"
)

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	policy     StatusPolicy
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Policy      StatusPolicy
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	policy := deps.Policy
	if policy == nil {
		policy = AnyTransitionPolicy{}
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		policy:     policy,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Priority     domain.TicketPriority
	CreatorEmail string
	Image        string
}

// TicketListInput describes admin listing filters.
type TicketListInput struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssignedTo *string
}

// TicketUpdateInput is the partial update allow-list. AssignedToSet
// distinguishes an explicit null (clear assignment) from absence.
type TicketUpdateInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	AssignedTo    *string
	AssignedToSet bool
}

func (in TicketUpdateInput) empty() bool {
	return in.Status == nil && in.Priority == nil && !in.AssignedToSet
}

// Create validates and stores a new ticket. Defaults: status open,
// priority low, unassigned. The creator email falls back to the
// authenticated principal's address.
func (s *TicketService) Create(ctx context.Context, principal *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if utf8.RuneCountInString(title) > domain.TicketTitleMaxLen {
		return nil, apperrors.NewValidationError("title cannot be more than 30 characters", map[string]any{"field": "title"})
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", map[string]any{"field": "description"})
	}
	if utf8.RuneCountInString(description) > domain.TicketDescriptionMaxLen {
		return nil, apperrors.NewValidationError("description cannot be more than 150 characters", map[string]any{"field": "description"})
	}
	if input.Image == "" {
		return nil, apperrors.NewValidationError("image is required", map[string]any{"field": "image"})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityLow
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(priority)})
	}

	creatorEmail := strings.TrimSpace(input.CreatorEmail)
	if creatorEmail == "" && principal != nil {
		creatorEmail = principal.Email
	}
	if !domain.ValidEmail(creatorEmail) {
		return nil, apperrors.NewValidationError("invalid email address", map[string]any{"field": "creatorEmail"})
	}

	ticket := &domain.Ticket{
		Title:        title,
		Description:  description,
		Priority:     priority,
		Status:       domain.TicketStatusOpen,
		CreatorEmail: creatorEmail,
		Image:        input.Image,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, principal, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Title:        ticket.Title,
			Priority:     ticket.Priority,
			CreatorEmail: ticket.CreatorEmail,
		},
	})
	return ticket, nil
}

// ListAll returns every ticket, newest first, with optional filters
// pushed to the store. Admin-gated at the route.
func (s *TicketService) ListAll(ctx context.Context, input TicketListInput) ([]domain.Ticket, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(*input.Status)})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(*input.Priority)})
	}

	filter := repository.TicketFilter{AssignedTo: input.AssignedTo}
	if input.Status != nil {
		filter.Statuses = []domain.TicketStatus{*input.Status}
	}
	if input.Priority != nil {
		filter.Priorities = []domain.TicketPriority{*input.Priority}
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachMessageIDsBatch(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ListForUser returns the tickets visible to the given account:
// requesters see what they created, support sees what is assigned to
// them, admins see everything.
func (s *TicketService) ListForUser(ctx context.Context, user *domain.User) ([]domain.Ticket, error) {
	var filter repository.TicketFilter
	switch user.Role {
	case domain.RoleUser:
		filter.CreatorEmail = &user.Email
	case domain.RoleSupport:
		filter.AssignedTo = &user.ID
	case domain.RoleAdmin:
		// unscoped
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachMessageIDsBatch(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetByID fetches a single ticket with its ordered message id list.
func (s *TicketService) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.attachMessageIDs(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Update applies a partial update of status, priority or assignment.
// Plain users cannot mutate tickets; assignment changes are admin-only.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	switch actor.Role {
	case domain.RoleUser:
		return nil, apperrors.NewForbidden("tickets can only be modified by support staff")
	case domain.RoleSupport, domain.RoleAdmin:
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	if input.empty() {
		return nil, apperrors.NewValidationError("no updatable fields provided", nil)
	}
	if input.AssignedToSet && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("assignment changes require an administrator")
	}

	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	update := repository.TicketUpdate{}

	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(*input.Status)})
		}
		if !s.policy.Allow(current.Status, *input.Status) {
			return nil, apperrors.NewValidationError("status transition not allowed",
				map[string]any{"from": string(current.Status), "to": string(*input.Status)})
		}
		update.Status = input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(*input.Priority)})
		}
		update.Priority = input.Priority
	}
	if input.AssignedToSet {
		if input.AssignedTo == nil {
			update.ClearAssignee = true
		} else {
			if _, err := s.users.GetByID(ctx, *input.AssignedTo); err != nil {
				if err == pgx.ErrNoRows {
					return nil, apperrors.NewValidationError("assignee does not exist", map[string]any{"assignedTo": *input.AssignedTo})
				}
				return nil, apperrors.MapError(err)
			}
			update.AssignedTo = input.AssignedTo
		}
	}

	updated, err := s.tickets.UpdateFields(ctx, id, update)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	s.recordChanges(ctx, actor, current, updated, input)
	if err := s.attachMessageIDs(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// AddMessage appends a message to the ticket's thread. The creator, the
// assignee and admins may post.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", map[string]any{"field": "body"})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !canPost(actor, ticket) {
		return nil, apperrors.NewForbidden("not a participant of this ticket")
	}

	msg := &domain.TicketMessage{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actor, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorID:    msg.AuthorID,
			BodyPreview: preview(msg.Body, 120),
		},
	})
	return msg, nil
}

// Messages returns the full message thread for a ticket, oldest first.
func (s *TicketService) Messages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return messages, nil
}

// History returns the audit trail for a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func canPost(actor *domain.User, ticket *domain.Ticket) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if ticket.CreatorEmail == actor.Email {
		return true
	}
	return ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID
}

func (s *TicketService) attachMessageIDs(ctx context.Context, ticket *domain.Ticket) error {
	if s.messages == nil {
		return nil
	}
	ids, err := s.messages.ListIDsByTicket(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	ticket.MessageIDs = ids
	return nil
}

// attachMessageIDsBatch resolves message id lists for a whole page of
// tickets with one query.
func (s *TicketService) attachMessageIDsBatch(ctx context.Context, tickets []domain.Ticket) error {
	if s.messages == nil || len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	byTicket, err := s.messages.ListIDsForTickets(ctx, ids)
	if err != nil {
		return apperrors.MapError(err)
	}
	for i := range tickets {
		tickets[i].MessageIDs = byTicket[tickets[i].ID]
	}
	return nil
}

func (s *TicketService) recordChanges(ctx context.Context, actor *domain.User, before, after *domain.Ticket, input TicketUpdateInput) {
	if input.Status != nil && before.Status != after.Status {
		s.recordHistory(ctx, actor, before.ID, domain.ChangeTypeStatus,
			map[string]any{"status": before.Status},
			map[string]any{"status": after.Status})
		s.publish(ctx, actor, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: before.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: before.Status,
				NewStatus: after.Status,
			},
		})
	}
	if input.Priority != nil && before.Priority != after.Priority {
		s.recordHistory(ctx, actor, before.ID, domain.ChangeTypePriority,
			map[string]any{"priority": before.Priority},
			map[string]any{"priority": after.Priority})
		s.publish(ctx, actor, events.Event{
			Type:     events.EventTicketPriorityChanged,
			TicketID: before.ID,
			Payload: events.TicketPriorityChangedPayload{
				OldPriority: before.Priority,
				NewPriority: after.Priority,
			},
		})
	}
	if input.AssignedToSet {
		s.recordHistory(ctx, actor, before.ID, domain.ChangeTypeAssignee,
			map[string]any{"assignedTo": before.AssignedTo},
			map[string]any{"assignedTo": after.AssignedTo})
		s.publish(ctx, actor, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: before.ID,
			Payload: events.TicketAssignedPayload{
				OldAssignee: before.AssignedTo,
				NewAssignee: after.AssignedTo,
			},
		})
	}
}

func (s *TicketService) recordHistory(ctx context.Context, actor *domain.User, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ActorID:    actor.ID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	_ = s.history.Create(ctx, entry)
}

func (s *TicketService) publish(ctx context.Context, actor *domain.User, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if actor != nil {
		event.Actor = events.Actor{UserID: actor.ID, Role: actor.Role}
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
