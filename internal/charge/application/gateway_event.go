package application

import (
	"context"
	"fmt"

	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

// Gateway webhook types that move the ledger. Other types only record the
// transaction they carry.
const (
	GatewayChargePaid     = "charge.paid"
	GatewayChargeCanceled = "charge.canceled"
	GatewayChargeRefunded = "charge.refunded"
)

type GatewayEvent struct {
	ID              string
	Type            string
	ChargeGatewayID string
	Amount          int64
	Transaction     *domain.Transaction
}

// ApplyGatewayEvent resolves the charge by its gateway id, records the carried
// transaction (keeping the local id of a transaction already held) and applies
// the ledger operation the event type implies.
//
// When the ledger rejects the operation the carried transaction is still
// saved, and the rejection is returned together with the charge.
func (s *Service) ApplyGatewayEvent(ctx context.Context, ev GatewayEvent, headers map[string]string, traceparent string) (*domain.Charge, error) {
	var (
		from      domain.ChargeStatus
		operation string
		rejected  error
	)
	c, err := s.repo.UpdateByGatewayID(ctx, ev.ChargeGatewayID, headers, traceparent, func(c *domain.Charge) (string, []byte, error) {
		if ev.Transaction != nil {
			ev.Transaction.ChargeGatewayID = c.GatewayID()
			c.UpdateTransaction(ev.Transaction, true)
		}

		from = c.Status()
		switch ev.Type {
		case GatewayChargePaid:
			if err := c.Pay(ev.Amount); err != nil {
				err = fmt.Errorf("gateway event %s: %w", ev.ID, err)
				if ev.Transaction == nil {
					return "", nil, err
				}
				rejected = err
				return encode(domain.EventTransactionRecorded, transactionEvent(c, ev.Transaction))
			}
			operation = "pay"
			return encode(domain.EventChargePaid, paidEvent(c))
		case GatewayChargeCanceled, GatewayChargeRefunded:
			c.Cancel(ev.Amount)
			operation = "cancel"
			return encode(cancelEvent(c, from))
		default:
			if ev.Transaction == nil {
				return "", nil, nil
			}
			return encode(domain.EventTransactionRecorded, transactionEvent(c, ev.Transaction))
		}
	})
	if err != nil {
		return nil, err
	}
	if operation != "" {
		s.metrics.Transition(operation, from, c.Status())
	}
	return c, rejected
}
