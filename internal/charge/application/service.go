package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

var ErrChargeNotFound = errors.New("charge not found")

type Service struct {
	repo    ChargeRepository
	metrics TransitionRecorder
}

func NewService(repo ChargeRepository, metrics TransitionRecorder) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{repo: repo, metrics: metrics}
}

// Open registers a new pending charge of an order.
func (s *Service) Open(ctx context.Context, orderID, gatewayID, code string, amount int64) (*domain.Charge, error) {
	c, err := domain.NewCharge(orderID, gatewayID, code, amount)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Charge, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Pay(ctx context.Context, id, amount int64, headers map[string]string, traceparent string) (*domain.Charge, error) {
	var from domain.ChargeStatus
	c, err := s.repo.Update(ctx, id, headers, traceparent, func(c *domain.Charge) (string, []byte, error) {
		from = c.Status()
		if err := c.Pay(amount); err != nil {
			return "", nil, err
		}
		return encode(domain.EventChargePaid, paidEvent(c))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("pay", from, c.Status())
	return c, nil
}

// Cancel voids a pending charge or refunds a paid one; see domain.Charge.Cancel.
func (s *Service) Cancel(ctx context.Context, id, amount int64, headers map[string]string, traceparent string) (*domain.Charge, error) {
	var from domain.ChargeStatus
	c, err := s.repo.Update(ctx, id, headers, traceparent, func(c *domain.Charge) (string, []byte, error) {
		from = c.Status()
		c.Cancel(amount)
		return encode(cancelEvent(c, from))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("cancel", from, c.Status())
	return c, nil
}

// cancelEvent names what Cancel did, based on the status before the call.
func cancelEvent(c *domain.Charge, from domain.ChargeStatus) (string, any) {
	if from.Equals(domain.StatusPaid) {
		return domain.EventChargeRefunded, domain.ChargeRefunded{ChargeID: c.ID(), OrderID: c.OrderID(), RefundedCents: c.RefundedAmount()}
	}
	return domain.EventChargeCanceled, domain.ChargeCanceled{ChargeID: c.ID(), OrderID: c.OrderID(), CanceledCents: c.CanceledAmount()}
}

func paidEvent(c *domain.Charge) domain.ChargePaid {
	return domain.ChargePaid{
		ChargeID:      c.ID(),
		OrderID:       c.OrderID(),
		PaidCents:     c.PaidAmount(),
		CanceledCents: c.CanceledAmount(),
	}
}

func transactionEvent(c *domain.Charge, t *domain.Transaction) domain.TransactionRecorded {
	return domain.TransactionRecorded{
		ChargeID:             c.ID(),
		TransactionGatewayID: t.GatewayID,
		Type:                 t.Type,
		AmountCents:          t.AmountCents,
	}
}

// RecordTransaction stores a gateway-reported transaction on the charge. A
// transaction already held under the same gateway id is replaced in place.
func (s *Service) RecordTransaction(ctx context.Context, id int64, t *domain.Transaction, overwriteID bool, headers map[string]string, traceparent string) (*domain.Charge, error) {
	return s.repo.Update(ctx, id, headers, traceparent, func(c *domain.Charge) (string, []byte, error) {
		c.UpdateTransaction(t, overwriteID)
		return encode(domain.EventTransactionRecorded, transactionEvent(c, t))
	})
}

func encode(eventType string, event any) (string, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return eventType, payload, nil
}
