package domain

import (
	"errors"
	"strings"
)

var ErrInvalidParam = errors.New("invalid parameter")

type ParamError struct {
	Msg   string
	Value any
}

func (e *ParamError) Error() string { return e.Msg }

func (e *ParamError) Is(target error) bool { return target == ErrInvalidParam }

// CardIdentifier is anything that points the gateway at a card: a one-time
// token or a saved card id.
type CardIdentifier interface {
	Value() string
}

type CardToken struct {
	value string
}

func NewCardToken(value string) (CardToken, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "token_") || len(value) == len("token_") {
		return CardToken{}, &ParamError{Msg: "invalid card token", Value: value}
	}
	return CardToken{value: value}, nil
}

func (t CardToken) Value() string { return t.value }

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodVoucher    PaymentMethod = "voucher"
)
