package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-demand/internal/model/entity"
)

var (
	// ErrDemandNotFound 需求不存在
	ErrDemandNotFound = errors.New("demand not found")
)

// ConflictError SKU唯一性冲突
type ConflictError struct {
	SKU string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("demand with SKU %s already exists", e.SKU)
}

// ValidationError 字段校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TransitionError 状态流转不允许
type TransitionError struct {
	From entity.DemandStatus
	To   entity.DemandStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
