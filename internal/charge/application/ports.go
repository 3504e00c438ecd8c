package application

import (
	"context"

	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

// Mutation changes a locked charge and names the outbox event describing the
// change. An empty event type leaves the charge unsaved. A non-nil error aborts
// the whole unit of work.
type Mutation func(c *domain.Charge) (eventType string, payload []byte, err error)

type ChargeRepository interface {
	Create(ctx context.Context, c *domain.Charge) error
	Get(ctx context.Context, id int64) (*domain.Charge, error)
	GetByGatewayID(ctx context.Context, gatewayID string) (*domain.Charge, error)

	// Update and UpdateByGatewayID hold the charge exclusively from load to
	// commit, so concurrent mutations of one charge apply one after another.
	// The ledger, its transactions and the outbox event are saved atomically.
	Update(ctx context.Context, id int64, headers map[string]string, traceparent string, fn Mutation) (*domain.Charge, error)
	UpdateByGatewayID(ctx context.Context, gatewayID string, headers map[string]string, traceparent string, fn Mutation) (*domain.Charge, error)
}

// TransitionRecorder observes ledger transitions, e.g. for metrics.
type TransitionRecorder interface {
	Transition(operation string, from, to domain.ChargeStatus)
}

type noopRecorder struct{}

func (noopRecorder) Transition(string, domain.ChargeStatus, domain.ChargeStatus) {}
