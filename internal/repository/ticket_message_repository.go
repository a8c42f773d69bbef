package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// TicketMessageRepository persists ticket thread messages.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	ListIDsByTicket(ctx context.Context, ticketID string) ([]string, error)
	ListIDsForTickets(ctx context.Context, ticketIDs []string) (map[string][]string, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository instantiates repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_id, body)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_id, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(&msg.ID, &msg.TicketID, &msg.AuthorID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *ticketMessageRepository) ListIDsByTicket(ctx context.Context, ticketID string) ([]string, error) {
	const query = `
        SELECT id FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketMessageRepository) ListIDsForTickets(ctx context.Context, ticketIDs []string) (map[string][]string, error) {
	const query = `
        SELECT id, ticket_id FROM ticket_messages
        WHERE ticket_id = ANY($1::uuid[]) ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string, len(ticketIDs))
	for rows.Next() {
		var id, ticketID string
		if err := rows.Scan(&id, &ticketID); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], id)
	}
	return result, rows.Err()
}
