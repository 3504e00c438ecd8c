package domain

const (
	EventChargePaid          = "ChargePaid"
	EventChargeCanceled      = "ChargeCanceled"
	EventChargeRefunded      = "ChargeRefunded"
	EventTransactionRecorded = "TransactionRecorded"
)

type ChargePaid struct {
	ChargeID      int64
	OrderID       string
	PaidCents     int64
	CanceledCents int64
}

type ChargeCanceled struct {
	ChargeID      int64
	OrderID       string
	CanceledCents int64
}

type ChargeRefunded struct {
	ChargeID      int64
	OrderID       string
	RefundedCents int64
}

type TransactionRecorded struct {
	ChargeID             int64
	TransactionGatewayID string
	Type                 TransactionType
	AmountCents          int64
}
