package service

import (
	"context"

	"go.uber.org/zap"

	"titulacion/backend/config"
	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/repository"
	"titulacion/backend/pkg/cache"
)

// CoordinatorRole 排期页面的唯一角色
const CoordinatorRole = "coordinador"

// Service 所有 Service 的聚合入口
type Service struct {
	Periodo    PeriodoService
	Cronograma CronogramaService
	Export     ExportService
	Register   *PeriodRegister

	workflows []*CronogramaWorkflow
}

// NewService 创建 Service 聚合
//
// 两类排期（UIC / 综合考试）各自持有独立的草稿存储与工作流，共享同一个活动周期登记处。
func NewService(
	ctx context.Context,
	cfg *config.Config,
	repo *repository.Repository,
	kv cache.Store,
	logger *zap.Logger,
) *Service {
	backend := NewRepoBackend(repo, cfg.Cronograma.BackendTimeout, logger)
	register := NewPeriodRegister(ctx, backend, kv, logger)

	titulos := map[dto.Variant]string{
		dto.VariantUIC:        cfg.Cronograma.TituloUIC,
		dto.VariantComplexivo: cfg.Cronograma.TituloComplexivo,
	}

	workflows := make([]*CronogramaWorkflow, 0, len(titulos))
	for _, v := range dto.Variants() {
		store := NewCronogramaStore(ctx, v, titulos[v], backend, kv, logger)
		workflows = append(workflows, NewCronogramaWorkflow(CoordinatorRole, store, register, logger))
	}

	cronogramas := NewCronogramaService(workflows, logger)

	return &Service{
		Periodo:    NewPeriodoService(repo, backend, register, logger),
		Cronograma: cronogramas,
		Export:     NewExportService(cronogramas, logger),
		Register:   register,
		workflows:  workflows,
	}
}

// Close 取消各工作流对登记处的订阅
func (s *Service) Close() {
	for _, w := range s.workflows {
		w.Close()
	}
}
