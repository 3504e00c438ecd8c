package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeStatus_ValueEquality(t *testing.T) {
	rebuilt := ChargeStatus(string([]byte("paid")))

	assert.True(t, rebuilt.Equals(StatusPaid))
	assert.False(t, StatusPaid.Equals(StatusPending))
	assert.False(t, StatusCanceled.Equals(StatusPending))
}

func TestParseChargeStatus(t *testing.T) {
	for _, s := range []string{"pending", "paid", "canceled"} {
		st, err := ParseChargeStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}

	_, err := ParseChargeStatus("refunded")
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestChargeStatus_JSON(t *testing.T) {
	var st ChargeStatus
	require.NoError(t, json.Unmarshal([]byte(`"canceled"`), &st))
	assert.True(t, st.Equals(StatusCanceled))

	assert.Error(t, json.Unmarshal([]byte(`"voided"`), &st))

	raw, err := json.Marshal(StatusPending)
	require.NoError(t, err)
	assert.JSONEq(t, `"pending"`, string(raw))
}
