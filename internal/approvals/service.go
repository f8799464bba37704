package approvals

import (
	"context"
	"fmt"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// EntityHandler performs the entity-specific side effects of a
// decision. Implementations own their own transaction, lock the
// approval row within it and record the decision atomically with the
// transition, so a handler error leaves the approval PENDING.
type EntityHandler interface {
	Approve(ctx context.Context, approval Approval, actor shared.Actor, comments string) (any, error)
	Reject(ctx context.Context, approval Approval, actor shared.Actor, comments string) error
}

// ReaderPort abstracts the read side used for dispatch and queries.
type ReaderPort interface {
	Get(ctx context.Context, id int64) (Approval, error)
	List(ctx context.Context, status string, limit int) ([]Approval, error)
}

// Service dispatches approval decisions to the handler registered for
// the entity type.
type Service struct {
	reader   ReaderPort
	handlers map[EntityType]EntityHandler
}

func NewService(reader ReaderPort) *Service {
	return &Service{reader: reader, handlers: map[EntityType]EntityHandler{}}
}

// Register binds an entity type to its handler. Not safe for
// concurrent use; call during startup wiring only.
func (s *Service) Register(entityType EntityType, handler EntityHandler) {
	s.handlers[entityType] = handler
}

func (s *Service) Get(ctx context.Context, id int64) (Approval, error) {
	return s.reader.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit int) ([]Approval, error) {
	return s.reader.List(ctx, status, limit)
}

// Approve dispatches an approval to its entity handler. The fast
// status check here is advisory; the handler re-checks under lock.
func (s *Service) Approve(ctx context.Context, id int64, actor shared.Actor, comments string) (any, error) {
	handler, approval, err := s.dispatch(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := handler.Approve(ctx, approval, actor, comments)
	if err != nil {
		return nil, fmt.Errorf("approve %s %d: %w", approval.EntityType, approval.EntityID, err)
	}
	return result, nil
}

// Reject dispatches a rejection to the entity handler.
func (s *Service) Reject(ctx context.Context, id int64, actor shared.Actor, comments string) error {
	handler, approval, err := s.dispatch(ctx, id)
	if err != nil {
		return err
	}
	if err := handler.Reject(ctx, approval, actor, comments); err != nil {
		return fmt.Errorf("reject %s %d: %w", approval.EntityType, approval.EntityID, err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, id int64) (EntityHandler, Approval, error) {
	approval, err := s.reader.Get(ctx, id)
	if err != nil {
		return nil, Approval{}, err
	}
	if approval.Status != StatusPending {
		return nil, Approval{}, ErrAlreadyProcessed
	}
	handler, ok := s.handlers[approval.EntityType]
	if !ok {
		return nil, Approval{}, ErrUnsupportedEntityType
	}
	return handler, approval, nil
}
