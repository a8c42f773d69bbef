package dashboard

import (
	"github.com/opsdesk/helpdesk-service/internal/auth"
	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// View is the closed set of dashboard screens. Adding a role forces a
// compile-visible decision here instead of an untested string branch.
type View int

const (
	// ViewError is shown when no usable token is present.
	ViewError View = iota
	// ViewAdminTickets is the global ticket table with assignment controls.
	ViewAdminTickets
	// ViewAssignedTickets is the personal assigned-ticket table.
	ViewAssignedTickets
	// ViewAccessDenied tells plain users the ticket dashboard is
	// unavailable to them. Product has not confirmed whether requesters
	// should instead see their own submitted tickets here.
	ViewAccessDenied
)

// SelectView decodes the role claim from the locally held token and
// picks the screen to render. The decode is unverified, mirroring how
// a browser reads its stored token; the API re-checks every request.
func SelectView(token string) View {
	if token == "" {
		return ViewError
	}
	claims, err := auth.DecodeUnverified(token)
	if err != nil {
		return ViewError
	}
	switch claims.Role {
	case domain.RoleAdmin:
		return ViewAdminTickets
	case domain.RoleSupport:
		return ViewAssignedTickets
	case domain.RoleUser:
		return ViewAccessDenied
	default:
		return ViewError
	}
}
