package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/model"
	"titulacion/backend/internal/repository"
)

// ── 周期 / 后端模块业务错误 ──

var (
	ErrPeriodoNotFound = errors.New("周期不存在")
)

// RemoteError 后端拒绝请求时携带的服务端消息，发布失败时原样展示给用户
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// CronogramaBackend 排期工作流依赖的远端协作方
type CronogramaBackend interface {
	// FetchDraft 查询 (variant, periodoID) 的已有排期，不存在时返回 nil, nil
	FetchDraft(ctx context.Context, v dto.Variant, periodoID int) (*dto.CronogramaDraft, error)
	// Publish 提交排期，返回后端保存后的结果
	Publish(ctx context.Context, payload *dto.PublishCronogramaPayload) (*dto.CronogramaDraft, error)
	// ActivePeriod 当前活动周期，无活动周期时返回 nil, nil
	ActivePeriod(ctx context.Context) (*dto.PeriodoRef, error)
	// Periods 周期目录（含活动标记）
	Periods(ctx context.Context) ([]dto.PeriodoRef, error)
}

type repoBackend struct {
	repo    *repository.Repository
	timeout time.Duration
	logger  *zap.Logger
}

// NewRepoBackend 基于 PostgreSQL 仓储的 CronogramaBackend 实现
// timeout > 0 时每次调用附加超时，超时与其他失败同等对待
func NewRepoBackend(repo *repository.Repository, timeout time.Duration, logger *zap.Logger) CronogramaBackend {
	return &repoBackend{repo: repo, timeout: timeout, logger: logger}
}

func (b *repoBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// ────────────────────── FetchDraft ──────────────────────

func (b *repoBackend) FetchDraft(ctx context.Context, v dto.Variant, periodoID int) (*dto.CronogramaDraft, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	cronograma, err := b.repo.Cronograma.GetByPeriodo(ctx, string(v), periodoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	d := toCronogramaDraft(cronograma)
	return &d, nil
}

// ────────────────────── Publish ──────────────────────

func (b *repoBackend) Publish(ctx context.Context, payload *dto.PublishCronogramaPayload) (*dto.CronogramaDraft, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	periodo, err := b.repo.Periodo.GetByID(ctx, payload.PeriodoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RemoteError{Message: "周期不存在，无法发布排期"}
		}
		return nil, err
	}
	if !periodo.IsActive {
		return nil, &RemoteError{Message: "仅可发布活动周期的排期"}
	}

	now := time.Now()
	cronograma := &model.Cronograma{
		Modalidad:     string(payload.Modalidad),
		PeriodoID:     payload.PeriodoID,
		Titulo:        payload.Titulo,
		Proyecto:      payload.Proyecto,
		PeriodoNombre: periodo.Nombre,
		Status:        model.CronogramaStatusPublished,
		PublishedAt:   &now,
	}
	cronograma.Filas = make([]model.CronogramaFila, 0, len(payload.Filas))
	for _, f := range payload.Filas {
		cronograma.Filas = append(cronograma.Filas, model.CronogramaFila{
			Nro:         f.Nro,
			Actividad:   f.Actividad,
			Responsable: f.Responsable,
			FechaInicio: f.FechaInicio,
			FechaFin:    f.FechaFin,
		})
	}

	if err := b.repo.Cronograma.SavePublished(ctx, cronograma); err != nil {
		b.logger.Error("保存排期失败",
			zap.String("modalidad", cronograma.Modalidad),
			zap.Int("periodo_id", cronograma.PeriodoID),
			zap.Error(err),
		)
		return nil, err
	}

	d := toCronogramaDraft(cronograma)
	return &d, nil
}

// ────────────────────── ActivePeriod / Periods ──────────────────────

func (b *repoBackend) ActivePeriod(ctx context.Context) (*dto.PeriodoRef, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	periodo, err := b.repo.Periodo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dto.PeriodoRef{ID: periodo.PeriodoID, Nombre: periodo.Nombre}, nil
}

func (b *repoBackend) Periods(ctx context.Context) ([]dto.PeriodoRef, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	periodos, err := b.repo.Periodo.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]dto.PeriodoRef, 0, len(periodos))
	for _, p := range periodos {
		refs = append(refs, dto.PeriodoRef{ID: p.PeriodoID, Nombre: p.Nombre, IsActive: p.IsActive})
	}
	return refs, nil
}

// ── 内部辅助方法 ──

// toCronogramaDraft 数据库时间戳按 UTC 截取日期部分
func toCronogramaDraft(c *model.Cronograma) dto.CronogramaDraft {
	d := dto.CronogramaDraft{
		Titulo:   c.Titulo,
		Proyecto: c.Proyecto,
		Periodo:  c.PeriodoNombre,
		Filas:    make([]dto.CronogramaFila, 0, len(c.Filas)),
	}
	for _, f := range c.Filas {
		d.Filas = append(d.Filas, dto.CronogramaFila{
			Nro:         f.Nro,
			Actividad:   f.Actividad,
			Responsable: f.Responsable,
			FechaInicio: formatDate(f.FechaInicio),
			FechaFin:    formatDate(f.FechaFin),
		})
	}
	return d
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dto.DateLayout)
}

// parseDate YYYY-MM-DD → 当日 00:00 UTC，空串返回 nil
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
