package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/helpdesk-service/internal/domain"
	"github.com/opsdesk/helpdesk-service/internal/events"
	"github.com/opsdesk/helpdesk-service/internal/repository"
	apperrors "github.com/opsdesk/helpdesk-service/pkg/util"
)

// DirectoryService exposes account lookup and role administration.
type DirectoryService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// NewDirectoryService builds the service.
func NewDirectoryService(users repository.UserRepository, dispatcher events.Dispatcher) *DirectoryService {
	return &DirectoryService{users: users, dispatcher: dispatcher}
}

// GetByID fetches a single account.
func (s *DirectoryService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns accounts ordered by creation time, optionally filtered
// by role.
func (s *DirectoryService) List(ctx context.Context, roleFilter *domain.Role) ([]domain.User, error) {
	if roleFilter != nil && !roleFilter.Valid() {
		return nil, apperrors.NewValidationError("unknown role filter", map[string]any{"role": string(*roleFilter)})
	}
	users, err := s.users.List(ctx, roleFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdateRole moves an account to a new role in the closed enum.
func (s *DirectoryService) UpdateRole(ctx context.Context, actor *domain.User, userID string, newRole domain.Role) (*domain.User, error) {
	if !newRole.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(newRole)})
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	updated, err := s.users.UpdateRole(ctx, userID, newRole)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actor, events.Event{
		Type: events.EventUserRoleChanged,
		Payload: events.UserRoleChangedPayload{
			TargetUserID: userID,
			OldRole:      current.Role,
			NewRole:      newRole,
		},
	})
	return updated, nil
}

func (s *DirectoryService) publish(ctx context.Context, actor *domain.User, event events.Event) {
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
