package domain

import "time"

type TransactionType string

const (
	TransactionAuthorization  TransactionType = "authorization"
	TransactionCapture        TransactionType = "capture"
	TransactionAuthAndCapture TransactionType = "auth_and_capture"
	TransactionVoid           TransactionType = "void"
	TransactionRefund         TransactionType = "refund"
)

// Transaction is a single event reported by the gateway for a charge.
type Transaction struct {
	id              int64
	GatewayID       string
	ChargeGatewayID string
	Type            TransactionType
	Status          string
	AmountCents     int64
	CreatedAt       time.Time
}

func NewTransaction(gatewayID string, typ TransactionType, amount int64, createdAt time.Time) *Transaction {
	return &Transaction{
		GatewayID:   gatewayID,
		Type:        typ,
		AmountCents: amount,
		CreatedAt:   createdAt.UTC(),
	}
}

// ID is the local persistence identifier, zero until stored.
func (t *Transaction) ID() int64 { return t.id }

func (t *Transaction) SetID(id int64) { t.id = id }
