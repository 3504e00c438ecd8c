package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam     = errors.New("invalid parameter")
	ErrInvalidOperation = errors.New("invalid operation")
)

// InvalidParamError is returned when a caller supplies a structurally invalid value.
type InvalidParamError struct {
	Msg   string
	Value any
}

func NewInvalidParamError(msg string, value any) *InvalidParamError {
	return &InvalidParamError{Msg: msg, Value: value}
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("%s (got %v)", e.Msg, e.Value)
}

func (e *InvalidParamError) Is(target error) bool { return target == ErrInvalidParam }

// InvalidOperationError is returned when a transition is attempted from an illegal state.
type InvalidOperationError struct {
	Msg string
}

func NewInvalidOperationError(msg string) *InvalidOperationError {
	return &InvalidOperationError{Msg: msg}
}

func (e *InvalidOperationError) Error() string { return e.Msg }

func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }
