package domain

import (
	"encoding/json"
	"time"
)

// Charge is one authorization/capture cycle of an order against a payment method.
//
// The ledger keeps four amounts in minor currency units:
//   - amount: the total the charge represents, never negative
//   - paidAmount: what was captured
//   - canceledAmount: what will never be captured, within [0, amount]
//   - refundedAmount: what was captured and returned, within [0, paidAmount]
//
// A Charge is not safe for concurrent mutation; callers serialize load-mutate-save.
type Charge struct {
	id             int64
	gatewayID      string
	orderID        string
	amount         int64
	paidAmount     int64
	canceledAmount int64
	refundedAmount int64
	code           string
	status         ChargeStatus
	transactions   []*Transaction
	createdAt      time.Time
	updatedAt      time.Time
}

func NewCharge(orderID, gatewayID, code string, amount int64) (*Charge, error) {
	now := time.Now().UTC()
	c := &Charge{
		gatewayID: gatewayID,
		orderID:   orderID,
		code:      code,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}
	if err := c.SetAmount(amount); err != nil {
		return nil, err
	}
	return c, nil
}

// ChargeState is the persisted form of a charge, used to rebuild it from storage.
type ChargeState struct {
	ID             int64
	GatewayID      string
	OrderID        string
	Amount         int64
	PaidAmount     int64
	CanceledAmount int64
	RefundedAmount int64
	Code           string
	Status         ChargeStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RestoreCharge rebuilds a charge without running any transition. Ledger values
// still pass through the setters so stored data cannot break the invariants.
func RestoreCharge(st ChargeState, transactions []*Transaction) (*Charge, error) {
	if !st.Status.Valid() {
		return nil, NewInvalidParamError("unknown charge status", st.Status)
	}
	c := &Charge{
		id:        st.ID,
		gatewayID: st.GatewayID,
		orderID:   st.OrderID,
		code:      st.Code,
		status:    st.Status,
		createdAt: st.CreatedAt,
		updatedAt: st.UpdatedAt,
	}
	if err := c.SetAmount(st.Amount); err != nil {
		return nil, err
	}
	c.SetPaidAmount(st.PaidAmount)
	c.SetCanceledAmount(st.CanceledAmount)
	c.SetRefundedAmount(st.RefundedAmount)
	for _, t := range transactions {
		c.AddTransaction(t)
	}
	return c, nil
}

func (c *Charge) State() ChargeState {
	return ChargeState{
		ID:             c.id,
		GatewayID:      c.gatewayID,
		OrderID:        c.orderID,
		Amount:         c.amount,
		PaidAmount:     c.paidAmount,
		CanceledAmount: c.canceledAmount,
		RefundedAmount: c.refundedAmount,
		Code:           c.code,
		Status:         c.status,
		CreatedAt:      c.createdAt,
		UpdatedAt:      c.updatedAt,
	}
}

func (c *Charge) ID() int64         { return c.id }
func (c *Charge) SetID(id int64)    { c.id = id }
func (c *Charge) GatewayID() string { return c.gatewayID }
func (c *Charge) OrderID() string   { return c.orderID }

func (c *Charge) SetOrderID(orderID string) { c.orderID = orderID }

func (c *Charge) Code() string        { return c.code }
func (c *Charge) SetCode(code string) { c.code = code }

func (c *Charge) Status() ChargeStatus { return c.status }

// SetStatus overrides the status without any ledger effect. Only valid statuses are accepted.
func (c *Charge) SetStatus(status ChargeStatus) error {
	if !status.Valid() {
		return NewInvalidParamError("unknown charge status", status)
	}
	c.status = status
	return nil
}

func (c *Charge) UpdatedAt() time.Time { return c.updatedAt }

// Pay captures amount. Whatever is left of the total is released as canceled,
// not refunded.
func (c *Charge) Pay(amount int64) error {
	if c.status.Equals(StatusPaid) {
		return NewInvalidOperationError("can't pay a charge that was already paid")
	}
	if !c.status.Equals(StatusPending) {
		return NewInvalidOperationError("can't pay a charge that isn't pending")
	}

	c.SetPaidAmount(amount)
	c.SetCanceledAmount(c.amount - c.PaidAmount())
	c.status = StatusPaid
	c.touch()
	return nil
}

// Cancel means refund once money was captured and void before that; the
// charge picks the meaning from its own status.
//   - paid: refundedAmount = amount (clamped), status stays paid
//   - pending or canceled: the whole total is canceled, amount is ignored
func (c *Charge) Cancel(amount int64) {
	if c.status.Equals(StatusPaid) {
		c.refund(amount)
		return
	}
	c.void()
}

func (c *Charge) refund(amount int64) {
	c.SetRefundedAmount(amount)
	c.touch()
}

func (c *Charge) void() {
	c.SetCanceledAmount(c.amount)
	c.status = StatusCanceled
	c.touch()
}

func (c *Charge) Amount() int64 { return c.amount }

// SetAmount is the only strict ledger setter; the others clamp.
func (c *Charge) SetAmount(amount int64) error {
	if err := validateNonNegative(amount); err != nil {
		return err
	}
	c.amount = amount
	return nil
}

func (c *Charge) PaidAmount() int64 { return c.paidAmount }

func (c *Charge) SetPaidAmount(paid int64) {
	if paid < 0 {
		paid = 0
	}
	c.paidAmount = paid
}

func (c *Charge) CanceledAmount() int64 { return c.canceledAmount }

func (c *Charge) SetCanceledAmount(canceled int64) {
	c.canceledAmount = clamp(canceled, 0, c.amount)
}

func (c *Charge) RefundedAmount() int64 { return c.refundedAmount }

func (c *Charge) SetRefundedAmount(refunded int64) {
	c.refundedAmount = clamp(refunded, 0, c.paidAmount)
}

// Transactions returns the held transactions in insertion order.
func (c *Charge) Transactions() []*Transaction {
	out := make([]*Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// AddTransaction appends t unless a transaction with the same gateway id is
// already held, in which case it is a no-op.
func (c *Charge) AddTransaction(t *Transaction) {
	if c.indexOf(t.GatewayID) >= 0 {
		return
	}
	c.transactions = append(c.transactions, t)
}

// UpdateTransaction replaces the held transaction with the same gateway id in
// place. With overwriteID the replacement takes the local id of the one it
// replaces. When nothing matches, t is added.
func (c *Charge) UpdateTransaction(t *Transaction, overwriteID bool) {
	i := c.indexOf(t.GatewayID)
	if i < 0 {
		c.AddTransaction(t)
		return
	}
	if overwriteID {
		t.SetID(c.transactions[i].ID())
	}
	c.transactions[i] = t
}

// LastTransaction returns the newest transaction, or nil when there is none.
// On equal timestamps the first one held wins.
func (c *Charge) LastTransaction() *Transaction {
	if len(c.transactions) == 0 {
		return nil
	}
	newest := c.transactions[0]
	for _, t := range c.transactions {
		if newest.CreatedAt.Before(t.CreatedAt) {
			newest = t
		}
	}
	return newest
}

func (c *Charge) indexOf(gatewayID string) int {
	for i, t := range c.transactions {
		if t.GatewayID == gatewayID {
			return i
		}
	}
	return -1
}

func (c *Charge) touch() { c.updatedAt = time.Now().UTC() }

// Snapshot is the serializable view of a charge. The last transaction is
// intentionally not part of it.
type Snapshot struct {
	ID             int64        `json:"id"`
	GatewayID      string       `json:"mundipaggId"`
	OrderID        string       `json:"orderId"`
	Amount         int64        `json:"amount"`
	PaidAmount     int64        `json:"paidAmount"`
	CanceledAmount int64        `json:"canceledAmount"`
	RefundedAmount int64        `json:"refundedAmount"`
	Code           string       `json:"code"`
	Status         ChargeStatus `json:"status"`
}

func (c *Charge) Snapshot() Snapshot {
	return Snapshot{
		ID:             c.id,
		GatewayID:      c.gatewayID,
		OrderID:        c.orderID,
		Amount:         c.amount,
		PaidAmount:     c.PaidAmount(),
		CanceledAmount: c.CanceledAmount(),
		RefundedAmount: c.RefundedAmount(),
		Code:           c.code,
		Status:         c.status,
	}
}

func (c *Charge) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

func validateNonNegative(amount int64) error {
	if amount < 0 {
		return NewInvalidParamError("amount should be greater or equal to 0", amount)
	}
	return nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
