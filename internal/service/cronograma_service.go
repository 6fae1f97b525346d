package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
)

var (
	ErrVariantInvalid      = errors.New("排期类型无效，只能是 uic 或 complexivo")
	ErrPublicadoNoEncontro = errors.New("该周期暂无发布的排期")
)

// CronogramaService 排期业务接口，按排期类型分派到对应的工作流
type CronogramaService interface {
	View(ctx context.Context, variant string) (*dto.CronogramaView, error)
	SelectPeriod(ctx context.Context, variant string, req *dto.SelectPeriodoRequest) (*dto.CronogramaView, error)
	Deselect(ctx context.Context, variant string) (*dto.CronogramaView, error)
	UpdateHeader(ctx context.Context, variant string, req *dto.UpdateCronogramaRequest) (*dto.CronogramaView, error)
	AddRow(ctx context.Context, variant string) (*dto.CronogramaView, error)
	UpdateRow(ctx context.Context, variant string, index int, req *dto.UpdateFilaRequest) (*dto.CronogramaView, error)
	RemoveRow(ctx context.Context, variant string, index int) (*dto.CronogramaView, error)
	ResetRowDate(ctx context.Context, variant string, index int, campo string) (*dto.CronogramaView, error)
	Publish(ctx context.Context, variant string) (*dto.PublishCronogramaResponse, error)
	LastPublished(ctx context.Context, variant string) (*dto.CronogramaDraft, error)
	PublishedForPeriod(ctx context.Context, variant, periodo string) (*dto.CronogramaDraft, error)
}

type cronogramaService struct {
	workflows map[dto.Variant]*CronogramaWorkflow
	stores    map[dto.Variant]*CronogramaStore
	logger    *zap.Logger
}

// NewCronogramaService 创建 CronogramaService 实例
func NewCronogramaService(workflows []*CronogramaWorkflow, logger *zap.Logger) CronogramaService {
	s := &cronogramaService{
		workflows: make(map[dto.Variant]*CronogramaWorkflow, len(workflows)),
		stores:    make(map[dto.Variant]*CronogramaStore, len(workflows)),
		logger:    logger,
	}
	for _, w := range workflows {
		v := w.store.Variant()
		s.workflows[v] = w
		s.stores[v] = w.store
		w.store.Subscribe(s.onPublished)
	}
	return s
}

// ────────────────────── View / SelectPeriod / Deselect ──────────────────────

func (s *cronogramaService) View(ctx context.Context, variant string) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	v := w.View()
	return &v, nil
}

func (s *cronogramaService) SelectPeriod(ctx context.Context, variant string, req *dto.SelectPeriodoRequest) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.SelectPeriod(ctx, req.PeriodoID, req.PeriodoNombre))
}

func (s *cronogramaService) Deselect(ctx context.Context, variant string) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	v := w.Deselect(ctx)
	return &v, nil
}

// ────────────────────── 编辑 ──────────────────────

func (s *cronogramaService) UpdateHeader(ctx context.Context, variant string, req *dto.UpdateCronogramaRequest) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.UpdateHeader(ctx, req))
}

func (s *cronogramaService) AddRow(ctx context.Context, variant string) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.AddRow(ctx))
}

func (s *cronogramaService) UpdateRow(ctx context.Context, variant string, index int, req *dto.UpdateFilaRequest) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.UpdateRow(ctx, index, req))
}

func (s *cronogramaService) RemoveRow(ctx context.Context, variant string, index int) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.RemoveRow(ctx, index))
}

func (s *cronogramaService) ResetRowDate(ctx context.Context, variant string, index int, campo string) (*dto.CronogramaView, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return viewResult(w.ResetRowDate(ctx, index, campo))
}

// ────────────────────── Publish ──────────────────────

func (s *cronogramaService) Publish(ctx context.Context, variant string) (*dto.PublishCronogramaResponse, error) {
	w, err := s.workflow(variant)
	if err != nil {
		return nil, err
	}
	return w.Publish(ctx)
}

// ────────────────────── 发布快照 ──────────────────────

func (s *cronogramaService) LastPublished(ctx context.Context, variant string) (*dto.CronogramaDraft, error) {
	v, ok := dto.ParseVariant(variant)
	if !ok {
		return nil, ErrVariantInvalid
	}
	d, err := s.stores[v].LastPublished(ctx)
	if err != nil {
		s.logger.Error("读取最近发布快照失败", zap.String("variant", variant), zap.Error(err))
		return nil, err
	}
	if d == nil {
		return nil, ErrPublicadoNoEncontro
	}
	return d, nil
}

func (s *cronogramaService) PublishedForPeriod(ctx context.Context, variant, periodo string) (*dto.CronogramaDraft, error) {
	v, ok := dto.ParseVariant(variant)
	if !ok {
		return nil, ErrVariantInvalid
	}
	if strings.TrimSpace(periodo) == "" {
		return nil, ErrPublicadoNoEncontro
	}
	d, err := s.stores[v].PublishedForPeriod(ctx, periodo)
	if err != nil {
		s.logger.Error("读取周期发布快照失败",
			zap.String("variant", variant),
			zap.String("periodo", periodo),
			zap.Error(err),
		)
		return nil, err
	}
	if d == nil {
		return nil, ErrPublicadoNoEncontro
	}
	return d, nil
}

// ── 内部辅助方法 ──

func (s *cronogramaService) workflow(variant string) (*CronogramaWorkflow, error) {
	v, ok := dto.ParseVariant(variant)
	if !ok {
		return nil, ErrVariantInvalid
	}
	w, ok := s.workflows[v]
	if !ok {
		return nil, ErrVariantInvalid
	}
	return w, nil
}

func (s *cronogramaService) onPublished(e PublishedEvent) {
	s.logger.Info("发布快照已保存",
		zap.String("variant", string(e.Variant)),
		zap.String("periodo", e.Periodo),
		zap.Int("filas", len(e.Cronograma.Filas)),
	)
}

func viewResult(v dto.CronogramaView, err error) (*dto.CronogramaView, error) {
	if err != nil {
		return nil, err
	}
	return &v, nil
}
