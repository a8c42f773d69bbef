package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/helpdesk-service/internal/api/dto"
	"github.com/opsdesk/helpdesk-service/internal/domain"
)

func sampleTickets() []dto.TicketResponse {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	agent := "u-agent"
	return []dto.TicketResponse{
		{
			ID: "t-1", Title: "Broken monitor", Status: domain.TicketStatusOpen,
			Priority: domain.TicketPriorityLow, CreatorEmail: "carol@example.com",
			CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour),
		},
		{
			ID: "t-2", Title: "Account locked", Status: domain.TicketStatusInProgress,
			Priority: domain.TicketPriorityHigh, CreatorEmail: "alice@example.com",
			AssignedTo: &agent,
			CreatedAt:  base, UpdatedAt: base.Add(3 * time.Hour),
		},
		{
			ID: "t-3", Title: "VPN flaky", Status: domain.TicketStatusOpen,
			Priority: domain.TicketPriorityMedium, CreatorEmail: "bob@example.com",
			CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
		},
	}
}

func ids(tickets []dto.TicketResponse) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func TestProject_FilterByStatus(t *testing.T) {
	rows := Project(sampleTickets(), Filter{Status: "open"}, "", SortAsc)
	assert.Equal(t, []string{"t-1", "t-3"}, ids(rows))
}

func TestProject_FilterByAssignee(t *testing.T) {
	rows := Project(sampleTickets(), Filter{AssignedTo: "u-agent"}, "", SortAsc)
	assert.Equal(t, []string{"t-2"}, ids(rows))

	rows = Project(sampleTickets(), Filter{AssignedTo: "nobody"}, "", SortAsc)
	assert.Empty(t, rows)
}

func TestProject_FilterThenSort(t *testing.T) {
	rows := Project(sampleTickets(), Filter{Status: "open"}, ColumnTitle, SortAsc)
	assert.Equal(t, []string{"t-1", "t-3"}, ids(rows))
}

func TestProject_SortByTitle(t *testing.T) {
	rows := Project(sampleTickets(), Filter{}, ColumnTitle, SortAsc)
	assert.Equal(t, []string{"t-2", "t-1", "t-3"}, ids(rows))

	rows = Project(sampleTickets(), Filter{}, ColumnTitle, SortDesc)
	assert.Equal(t, []string{"t-3", "t-1", "t-2"}, ids(rows))
}

func TestProject_SortByCreatedAt(t *testing.T) {
	asc := Project(sampleTickets(), Filter{}, ColumnCreatedAt, SortAsc)
	assert.Equal(t, []string{"t-2", "t-3", "t-1"}, ids(asc))

	desc := Project(sampleTickets(), Filter{}, ColumnCreatedAt, SortDesc)
	assert.Equal(t, []string{"t-1", "t-3", "t-2"}, ids(desc))
}

func TestProject_DescIsExactReverseOfAscOnTies(t *testing.T) {
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tickets := []dto.TicketResponse{
		{ID: "t-b", CreatedAt: when},
		{ID: "t-a", CreatedAt: when},
		{ID: "t-c", CreatedAt: when.Add(time.Hour)},
	}

	asc := ids(Project(tickets, Filter{}, ColumnCreatedAt, SortAsc))
	desc := ids(Project(tickets, Filter{}, ColumnCreatedAt, SortDesc))

	assert.Equal(t, []string{"t-a", "t-b", "t-c"}, asc)
	for i := range asc {
		assert.Equal(t, asc[len(asc)-1-i], desc[i])
	}
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	input := sampleTickets()
	_ = Project(input, Filter{}, ColumnTitle, SortDesc)
	assert.Equal(t, []string{"t-1", "t-2", "t-3"}, ids(input))
}

func TestTicketList_SortByToggles(t *testing.T) {
	list := &TicketList{order: SortAsc}

	list.SortBy(ColumnCreatedAt)
	assert.Equal(t, ColumnCreatedAt, list.sortBy)
	assert.Equal(t, SortAsc, list.order)

	list.SortBy(ColumnCreatedAt)
	assert.Equal(t, SortDesc, list.order)

	list.SortBy(ColumnCreatedAt)
	assert.Equal(t, SortAsc, list.order)

	list.SortBy(ColumnPriority)
	assert.Equal(t, ColumnPriority, list.sortBy)
	assert.Equal(t, SortAsc, list.order)
}

func TestTicketList_RefreshFailureKeepsRows(t *testing.T) {
	fetchErr := errors.New("api unreachable")
	calls := 0
	list := &TicketList{
		fetch: func(context.Context) ([]dto.TicketResponse, error) {
			calls++
			if calls > 1 {
				return nil, fetchErr
			}
			return sampleTickets(), nil
		},
		order: SortAsc,
	}

	require.NoError(t, list.Refresh(context.Background()))
	assert.Len(t, list.Rows(), 3)

	err := list.Refresh(context.Background())
	assert.ErrorIs(t, err, fetchErr)
	assert.ErrorIs(t, list.Err, fetchErr)
	assert.Len(t, list.Rows(), 3, "stale rows stay rendered after a failed refresh")
}

func TestTicketList_FilteredRows(t *testing.T) {
	list := &TicketList{
		fetch: func(context.Context) ([]dto.TicketResponse, error) {
			return sampleTickets(), nil
		},
		order: SortAsc,
	}
	require.NoError(t, list.Refresh(context.Background()))

	list.SetFilter(Filter{Priority: "high"})
	rows := list.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "t-2", rows[0].ID)

	list.SetFilter(Filter{})
	assert.Len(t, list.Rows(), 3)
}
