package service

import (
	"github.com/opsdesk/helpdesk-service/internal/config"
	"github.com/opsdesk/helpdesk-service/internal/domain"
)

// StatusPolicy decides whether a status change is permitted. The
// observed product lets any authorized caller set any status; whether
// out-of-order transitions should be rejected is an explicit policy
// here rather than an implicit absence of checks.
type StatusPolicy interface {
	Allow(current, next domain.TicketStatus) bool
}

// AnyTransitionPolicy permits every transition between valid statuses.
type AnyTransitionPolicy struct{}

func (AnyTransitionPolicy) Allow(current, next domain.TicketStatus) bool {
	return true
}

// OrderedTransitionPolicy only permits forward movement along
// open -> in progress -> closed. Setting the current status again is
// allowed as a no-op.
type OrderedTransitionPolicy struct{}

var statusRank = map[domain.TicketStatus]int{
	domain.TicketStatusOpen:       0,
	domain.TicketStatusInProgress: 1,
	domain.TicketStatusClosed:     2,
}

func (OrderedTransitionPolicy) Allow(current, next domain.TicketStatus) bool {
	return statusRank[next] >= statusRank[current]
}

// StatusPolicyFromConfig selects the configured policy.
func StatusPolicyFromConfig(cfg config.TicketsConfig) StatusPolicy {
	if cfg.EnforceStatusOrder {
		return OrderedTransitionPolicy{}
	}
	return AnyTransitionPolicy{}
}
