package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/model"
	"titulacion/backend/internal/repository"
)

// PeriodoService 周期业务接口
type PeriodoService interface {
	List(ctx context.Context) ([]dto.PeriodoResponse, error)
	// GetActive 登记处当前值（不访问数据库）
	GetActive(ctx context.Context) *dto.ActivePeriodoResponse
	// Refresh 从数据库重新读取活动周期，失败时登记处置为无活动周期
	Refresh(ctx context.Context) (*dto.ActivePeriodoResponse, error)
	// Activate 将周期设为活动周期，并同步到登记处
	Activate(ctx context.Context, id int) (*dto.PeriodoResponse, error)
}

type periodoService struct {
	repo     *repository.Repository
	backend  CronogramaBackend
	register *PeriodRegister
	logger   *zap.Logger
}

// NewPeriodoService 创建 PeriodoService 实例
// 周期目录经由 backend 读取，激活操作直接写仓储
func NewPeriodoService(repo *repository.Repository, backend CronogramaBackend, register *PeriodRegister, logger *zap.Logger) PeriodoService {
	return &periodoService{repo: repo, backend: backend, register: register, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *periodoService) List(ctx context.Context) ([]dto.PeriodoResponse, error) {
	refs, err := s.backend.Periods(ctx)
	if err != nil {
		s.logger.Error("列出周期失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.PeriodoResponse, 0, len(refs))
	for _, r := range refs {
		result = append(result, dto.PeriodoResponse{ID: r.ID, Nombre: r.Nombre, IsActive: r.IsActive})
	}
	return result, nil
}

// ────────────────────── GetActive / Refresh ──────────────────────

func (s *periodoService) GetActive(ctx context.Context) *dto.ActivePeriodoResponse {
	return &dto.ActivePeriodoResponse{Nombre: s.register.Active()}
}

func (s *periodoService) Refresh(ctx context.Context) (*dto.ActivePeriodoResponse, error) {
	name, err := s.register.RefreshFromRemote(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.ActivePeriodoResponse{Nombre: name}, nil
}

// ────────────────────── Activate ──────────────────────

func (s *periodoService) Activate(ctx context.Context, id int) (*dto.PeriodoResponse, error) {
	if err := s.repo.Periodo.Activate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodoNotFound
		}
		s.logger.Error("激活周期失败", zap.Int("id", id), zap.Error(err))
		return nil, err
	}

	periodo, err := s.repo.Periodo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodoNotFound
		}
		s.logger.Error("查询周期失败", zap.Int("id", id), zap.Error(err))
		return nil, err
	}

	s.register.SetActive(ctx, periodo.Nombre)
	s.logger.Info("周期已激活", zap.Int("id", id), zap.String("nombre", periodo.Nombre))

	resp := toPeriodoResponse(periodo)
	return &resp, nil
}

// ── 内部辅助方法 ──

func toPeriodoResponse(p *model.Periodo) dto.PeriodoResponse {
	return dto.PeriodoResponse{
		ID:       p.PeriodoID,
		Nombre:   p.Nombre,
		IsActive: p.IsActive,
	}
}
