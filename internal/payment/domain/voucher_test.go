package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveCards bool

func (s saveCards) IsSaveCards() bool { return bool(s) }

func voucherWithToken(t *testing.T) *NewVoucherPayment {
	t.Helper()
	token, err := NewCardToken("token_abc123")
	require.NoError(t, err)
	p := NewVoucher()
	p.SetCardToken(token)
	p.SetAmount(1500)
	return p
}

func TestNewCardToken(t *testing.T) {
	tok, err := NewCardToken(" token_xyz ")
	require.NoError(t, err)
	assert.Equal(t, "token_xyz", tok.Value())

	for _, bad := range []string{"", "token_", "card_123"} {
		_, err := NewCardToken(bad)
		assert.ErrorIs(t, err, ErrInvalidParam, bad)
	}
}

func TestSetInstallments(t *testing.T) {
	p := NewVoucher()
	assert.Equal(t, 1, p.Installments())

	require.NoError(t, p.SetInstallments(3))
	assert.Equal(t, 3, p.Installments())

	err := p.SetInstallments(0)
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Equal(t, 3, p.Installments())
}

func TestSaveOnSuccess_RequiresAllFour(t *testing.T) {
	order := &OrderRef{Code: "100001"}
	customer := &Customer{ID: "cus_1"}

	cases := []struct {
		name     string
		order    *OrderRef
		cfg      VoucherSettings
		customer *Customer
		flag     bool
		want     bool
	}{
		{"all present", order, saveCards(true), customer, true, true},
		{"no order", nil, saveCards(true), customer, true, false},
		{"config disabled", order, saveCards(false), customer, true, false},
		{"no config", order, nil, customer, true, false},
		{"no customer", order, saveCards(true), nil, true, false},
		{"flag off", order, saveCards(true), customer, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewVoucher()
			p.SetOrder(tc.order)
			p.SetCustomer(tc.customer)
			p.SetSaveOnSuccess(tc.flag)

			assert.Equal(t, tc.want, p.SaveOnSuccess(tc.cfg))
		})
	}
}

func TestToPrimitiveRequest(t *testing.T) {
	p := voucherWithToken(t)
	p.SetOrder(&OrderRef{Code: "100001"})
	p.SetCustomer(&Customer{ID: "cus_1"})
	p.SetSaveOnSuccess(true)
	require.NoError(t, p.SetInstallments(2))

	req, err := p.ToPrimitiveRequest(saveCards(true))
	require.NoError(t, err)

	assert.Equal(t, MethodVoucher, req.PaymentMethod)
	assert.Equal(t, int64(1500), req.Amount)
	require.NotNil(t, req.Voucher)
	assert.Equal(t, "token_abc123", req.Voucher.CardToken)
	assert.Equal(t, 2, req.Voucher.Installments)
	assert.True(t, req.Metadata.SaveOnSuccess)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"saveOnSuccess":true`)
	assert.Contains(t, string(raw), `"card_token":"token_abc123"`)
}

func TestToPrimitiveRequest_WithoutToken(t *testing.T) {
	_, err := NewVoucher().ToPrimitiveRequest(saveCards(true))
	assert.ErrorIs(t, err, ErrInvalidParam)
}
