package approvals

import (
	"errors"
	"time"
)

// EntityType names the kind of record an approval guards.
type EntityType string

const EntityPeriodClose EntityType = "PERIOD_CLOSE"

// Approval statuses. PENDING is the only state a decision can act on.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

var (
	ErrNotFound              = errors.New("approvals: approval not found")
	ErrAlreadyProcessed      = errors.New("approvals: approval already processed")
	ErrUnsupportedEntityType = errors.New("approvals: no handler registered for entity type")
)

// Approval is one pending or decided review of an entity transition.
type Approval struct {
	ID          int64      `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    int64      `json:"entity_id"`
	Status      string     `json:"status"`
	RequestedBy int64      `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	Comments    string     `json:"comments,omitempty"`
}
