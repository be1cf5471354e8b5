package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateSKU = errors.New("sku already exists")
)

// Repositories 仓库集合
type Repositories struct {
	Demand *DemandRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Demand: NewDemandRepository(db),
	}
}
