package service

import (
	"github.com/bitfantasy/nimo-demand/internal/repository"
)

// Services 服务集合
type Services struct {
	Demand *DemandService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories) *Services {
	return &Services{
		Demand: NewDemandService(repos.Demand),
	}
}
