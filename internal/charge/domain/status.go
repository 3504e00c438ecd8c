package domain

import (
	"encoding/json"
	"fmt"
)

// ChargeStatus is compared by value, so statuses rebuilt from storage or JSON
// are equal to the package constants.
type ChargeStatus string

const (
	StatusPending  ChargeStatus = "pending"
	StatusPaid     ChargeStatus = "paid"
	StatusCanceled ChargeStatus = "canceled"
)

func ParseChargeStatus(s string) (ChargeStatus, error) {
	st := ChargeStatus(s)
	if !st.Valid() {
		return "", NewInvalidParamError(fmt.Sprintf("unknown charge status %q", s), s)
	}
	return st, nil
}

func (s ChargeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

func (s ChargeStatus) Equals(other ChargeStatus) bool { return s == other }

func (s ChargeStatus) String() string { return string(s) }

func (s *ChargeStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st, err := ParseChargeStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
