package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemandStatus 需求状态
type DemandStatus string

const (
	DemandStatusPlanning   DemandStatus = "Planning"
	DemandStatusInProgress DemandStatus = "In Progress"
	DemandStatusCompleted  DemandStatus = "Completed"
)

// ValidDemandTransitions 合法的需求状态流转
// 正向推进是常规路径，允许回退修正，唯独不允许 Completed 直接回到 Planning
var ValidDemandTransitions = map[DemandStatus][]DemandStatus{
	DemandStatusPlanning:   {DemandStatusPlanning, DemandStatusInProgress},
	DemandStatusInProgress: {DemandStatusPlanning, DemandStatusInProgress, DemandStatusCompleted},
	DemandStatusCompleted:  {DemandStatusInProgress, DemandStatusCompleted},
}

// Valid 是否为已知状态
func (s DemandStatus) Valid() bool {
	_, ok := ValidDemandTransitions[s]
	return ok
}

// CanTransitionTo 校验状态流转是否允许
func (s DemandStatus) CanTransitionTo(to DemandStatus) bool {
	allowed, ok := ValidDemandTransitions[s]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == to {
			return true
		}
	}
	return false
}

// Demand 生产需求
type Demand struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	SKU             string          `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	Description     string          `json:"description" gorm:"type:text;default:''"`
	StartDate       time.Time       `json:"startDate" gorm:"type:date;not null"`
	EndDate         time.Time       `json:"endDate" gorm:"type:date;not null"`
	TotalPlanned    decimal.Decimal `json:"totalPlanned" gorm:"type:decimal(10,2);not null"`
	TotalProduction decimal.Decimal `json:"totalProduction" gorm:"type:decimal(10,2);default:0"`
	Status          DemandStatus    `json:"status" gorm:"size:20;not null;default:Planning"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Demand) TableName() string {
	return "demands"
}
