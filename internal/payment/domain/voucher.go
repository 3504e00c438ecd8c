package domain

type OrderRef struct {
	Code string
}

type Customer struct {
	ID    string
	Name  string
	Email string
}

// VoucherSettings is the part of the module configuration the voucher
// payment reads.
type VoucherSettings interface {
	IsSaveCards() bool
}

// CreditCardPayment carries what every card-like payment needs.
type CreditCardPayment struct {
	amount              int64
	installments        int
	capture             bool
	statementDescriptor string
	identifier          CardIdentifier
	order               *OrderRef
	customer            *Customer
}

func (p *CreditCardPayment) Amount() int64           { return p.amount }
func (p *CreditCardPayment) SetAmount(amount int64)  { p.amount = amount }
func (p *CreditCardPayment) Installments() int       { return p.installments }
func (p *CreditCardPayment) SetCapture(capture bool) { p.capture = capture }
func (p *CreditCardPayment) Identifier() CardIdentifier {
	return p.identifier
}

func (p *CreditCardPayment) SetStatementDescriptor(d string) { p.statementDescriptor = d }
func (p *CreditCardPayment) SetOrder(o *OrderRef)            { p.order = o }
func (p *CreditCardPayment) Order() *OrderRef                { return p.order }
func (p *CreditCardPayment) SetCustomer(c *Customer)         { p.customer = c }
func (p *CreditCardPayment) Customer() *Customer             { return p.customer }

// SetInstallments rejects counts below one.
func (p *CreditCardPayment) SetInstallments(n int) error {
	if n < 1 {
		return &ParamError{Msg: "installments should be at least 1", Value: n}
	}
	p.installments = n
	return nil
}

// NewVoucherPayment pays with a voucher card that was tokenized on the client.
type NewVoucherPayment struct {
	CreditCardPayment
	saveOnSuccess bool
}

func NewVoucher() *NewVoucherPayment {
	return &NewVoucherPayment{
		CreditCardPayment: CreditCardPayment{installments: 1, capture: true},
	}
}

func (NewVoucherPayment) BaseCode() PaymentMethod { return MethodVoucher }

func (p *NewVoucherPayment) SetIdentifier(id CardIdentifier) { p.identifier = id }

func (p *NewVoucherPayment) SetCardToken(token CardToken) { p.SetIdentifier(token) }

func (p *NewVoucherPayment) SetSaveOnSuccess(save bool) { p.saveOnSuccess = save }

// SaveOnSuccess holds only when there is an order, the module allows saving
// voucher cards, there is a customer and the payment itself asked for it.
func (p *NewVoucherPayment) SaveOnSuccess(cfg VoucherSettings) bool {
	if p.order == nil {
		return false
	}
	if cfg == nil || !cfg.IsSaveCards() {
		return false
	}
	if p.customer == nil {
		return false
	}
	return p.saveOnSuccess
}

type PaymentMetadata struct {
	SaveOnSuccess bool `json:"saveOnSuccess"`
}

type CreateCreditCardPaymentRequest struct {
	CardToken           string `json:"card_token,omitempty"`
	Installments        int    `json:"installments"`
	Capture             bool   `json:"capture"`
	StatementDescriptor string `json:"statement_descriptor,omitempty"`
}

type CreatePaymentRequest struct {
	PaymentMethod PaymentMethod                   `json:"payment_method"`
	Amount        int64                           `json:"amount"`
	Voucher       *CreateCreditCardPaymentRequest `json:"voucher,omitempty"`
	Metadata      PaymentMetadata                 `json:"metadata"`
}

// ToPrimitiveRequest builds the request sent to the gateway.
func (p *NewVoucherPayment) ToPrimitiveRequest(cfg VoucherSettings) (CreatePaymentRequest, error) {
	if p.identifier == nil {
		return CreatePaymentRequest{}, &ParamError{Msg: "voucher payment has no card token"}
	}
	return CreatePaymentRequest{
		PaymentMethod: p.BaseCode(),
		Amount:        p.amount,
		Voucher: &CreateCreditCardPaymentRequest{
			CardToken:           p.identifier.Value(),
			Installments:        p.installments,
			Capture:             p.capture,
			StatementDescriptor: p.statementDescriptor,
		},
		Metadata: PaymentMetadata{SaveOnSuccess: p.SaveOnSuccess(cfg)},
	}, nil
}
