package application

import (
	"github.com/dmehra2102/charge-ledger/internal/payment/domain"
)

type VoucherRequest struct {
	OrderCode     string
	CustomerID    string
	CustomerEmail string
	CardToken     string
	Amount        int64
	Installments  *int
	SaveOnSuccess bool
}

type Service struct {
	voucher domain.VoucherSettings
}

func NewService(voucher domain.VoucherSettings) *Service {
	return &Service{voucher: voucher}
}

// BuildVoucherPayment turns a checkout request into the gateway request.
func (s *Service) BuildVoucherPayment(req VoucherRequest) (domain.CreatePaymentRequest, error) {
	token, err := domain.NewCardToken(req.CardToken)
	if err != nil {
		return domain.CreatePaymentRequest{}, err
	}

	p := domain.NewVoucher()
	p.SetCardToken(token)
	p.SetAmount(req.Amount)
	if req.Installments != nil {
		if err := p.SetInstallments(*req.Installments); err != nil {
			return domain.CreatePaymentRequest{}, err
		}
	}
	if req.OrderCode != "" {
		p.SetOrder(&domain.OrderRef{Code: req.OrderCode})
	}
	if req.CustomerID != "" {
		p.SetCustomer(&domain.Customer{ID: req.CustomerID, Email: req.CustomerEmail})
	}
	p.SetSaveOnSuccess(req.SaveOnSuccess)

	return p.ToPrimitiveRequest(s.voucher)
}
