package fridge

import (
	"github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/labelsheet"
	"github.com/smallbiznis/dormitory/internal/fridge/repository"
	"github.com/smallbiznis/dormitory/internal/fridge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fridge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc *service.Service) domain.AllocationService { return svc }),
	fx.Provide(func(svc *service.Service) domain.TopologyService { return svc }),
	fx.Provide(labelsheet.NewRenderer),
)
