package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
)

// ── 排期工作流业务错误 ──

var (
	ErrCronogramaReadOnly = errors.New("所选周期不是活动周期，排期仅可查看")
	ErrPeriodoNoActivo    = errors.New("所选周期与当前活动周期不一致，无法发布")
	ErrFechaInvalida      = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrFechaBajoMinimo    = errors.New("日期早于允许的最早日期")
	ErrCampoFechaInvalido = errors.New("日期字段只能是 inicio 或 fin")
)

// msgPublishGeneric 后端未给出消息时的发布失败提示
const msgPublishGeneric = "发布排期失败，请稍后重试"

// msgPublishOK 发布成功提示
const msgPublishOK = "排期发布成功"

// ValidationError 发布前校验失败，携带全部错误
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "排期校验失败: " + strings.Join(e.Errors, "; ")
}

// PublishError 后端拒绝发布，Message 为服务端消息或通用提示
type PublishError struct {
	Message string
	Err     error
}

func (e *PublishError) Error() string { return e.Message }
func (e *PublishError) Unwrap() error { return e.Err }

// WorkflowState 排期页面状态
type WorkflowState int

const (
	StateNoPeriodSelected WorkflowState = iota
	StateLoaded
	StateReadOnly
	StateEditable
)

func (s WorkflowState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateReadOnly:
		return "read_only"
	case StateEditable:
		return "editable"
	default:
		return "no_period_selected"
	}
}

// CronogramaWorkflow 单一排期类型、单一角色页面的工作流控制器
//
// 状态机：NoPeriodSelected → (选择周期) Loaded → Editable | ReadOnly。
// 选中周期等于活动周期时可编辑，否则只读；只读状态下所有修改与发布均为空操作。
// 活动周期变化时自动重新判定。
type CronogramaWorkflow struct {
	mu       sync.Mutex
	role     string
	state    WorkflowState
	periodo  *dto.PeriodoRef
	store    *CronogramaStore
	register *PeriodRegister
	logger   *zap.Logger

	// selection 每次选择 / 取消选择递增，只有最新一次选择的解析结果决定状态
	selection   uint64
	unsubscribe func()
}

// NewCronogramaWorkflow 创建工作流；存储中恢复出已绑定周期的草稿时直接进入对应状态
func NewCronogramaWorkflow(role string, store *CronogramaStore, register *PeriodRegister, logger *zap.Logger) *CronogramaWorkflow {
	w := &CronogramaWorkflow{
		role:     role,
		store:    store,
		register: register,
		logger:   logger.With(zap.String("variant", string(store.Variant())), zap.String("role", role)),
	}

	if id, d := store.Binding(); id > 0 && d.Periodo != "" {
		w.periodo = &dto.PeriodoRef{ID: id, Nombre: d.Periodo}
		w.applyGateLocked(register.Active())
	}

	w.unsubscribe = register.Subscribe(w.onActiveChanged)
	return w
}

// Close 取消对活动周期的订阅
func (w *CronogramaWorkflow) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}

// State 当前状态
func (w *CronogramaWorkflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// View 当前页面状态
func (w *CronogramaWorkflow) View() dto.CronogramaView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// SelectPeriod 选择周期。rawID 不是正整数（含空串）时等同于 Deselect。
func (w *CronogramaWorkflow) SelectPeriod(ctx context.Context, rawID, nombre string) (dto.CronogramaView, error) {
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return w.Deselect(ctx), nil
	}

	// 选择与解析代次在同一临界区内登记，保证最新的选择对应最新的解析
	w.mu.Lock()
	w.selection++
	seq := w.selection
	w.periodo = &dto.PeriodoRef{ID: id, Nombre: nombre}
	w.state = StateLoaded
	gen := w.store.beginResolve()
	w.mu.Unlock()

	_, err = w.store.resolveGeneration(ctx, gen, id, nombre)

	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.selection || errors.Is(err, ErrResolutionSuperseded) {
		// 更新的选择（或取消选择）已生效，由其决定状态
		return w.viewLocked(), nil
	}
	w.applyGateLocked(w.register.Active())
	return w.viewLocked(), nil
}

// Deselect 回到未选择周期状态，未保存的修改被丢弃
func (w *CronogramaWorkflow) Deselect(ctx context.Context) dto.CronogramaView {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.selection++
	w.store.Reset(ctx)
	w.periodo = nil
	w.state = StateNoPeriodSelected
	return w.viewLocked()
}

// UpdateHeader 修改标题 / 项目标签
func (w *CronogramaWorkflow) UpdateHeader(ctx context.Context, req *dto.UpdateCronogramaRequest) (dto.CronogramaView, error) {
	return w.mutate(ctx, func(d *dto.CronogramaDraft) error {
		if req.Titulo != nil {
			d.Titulo = *req.Titulo
		}
		if req.Proyecto != nil {
			d.Proyecto = *req.Proyecto
		}
		return nil
	})
}

// AddRow 追加空白行
func (w *CronogramaWorkflow) AddRow(ctx context.Context) (dto.CronogramaView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditableLocked(); err != nil {
		return w.viewLocked(), err
	}
	w.store.AddRow(ctx)
	return w.viewLocked(), nil
}

// RemoveRow 删除第 index 行（从 0 开始）
func (w *CronogramaWorkflow) RemoveRow(ctx context.Context, index int) (dto.CronogramaView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditableLocked(); err != nil {
		return w.viewLocked(), err
	}
	if _, err := w.store.RemoveRow(ctx, index); err != nil {
		return w.viewLocked(), err
	}
	return w.viewLocked(), nil
}

// UpdateRow 修改第 index 行。新日期不得早于日期下限，结束日期不得早于本行开始日期。
func (w *CronogramaWorkflow) UpdateRow(ctx context.Context, index int, req *dto.UpdateFilaRequest) (dto.CronogramaView, error) {
	return w.mutate(ctx, func(d *dto.CronogramaDraft) error {
		if index < 0 || index >= len(d.Filas) {
			return ErrFilaIndexInvalid
		}
		floor := RecomputeDateFloor(*d)
		fila := d.Filas[index]

		if req.Actividad != nil {
			fila.Actividad = *req.Actividad
		}
		if req.Responsable != nil {
			fila.Responsable = *req.Responsable
		}
		if req.FechaInicio != nil {
			if err := checkDate(*req.FechaInicio, fila.FechaInicio, floor); err != nil {
				return err
			}
			fila.FechaInicio = *req.FechaInicio
		}
		if req.FechaFin != nil {
			if err := checkDate(*req.FechaFin, fila.FechaFin, MinimumEndDateFor(fila, floor)); err != nil {
				return err
			}
			fila.FechaFin = *req.FechaFin
		}

		d.Filas[index] = fila
		return nil
	})
}

// ResetRowDate 清除第 index 行的开始（inicio）或结束（fin）日期
func (w *CronogramaWorkflow) ResetRowDate(ctx context.Context, index int, campo string) (dto.CronogramaView, error) {
	return w.mutate(ctx, func(d *dto.CronogramaDraft) error {
		if index < 0 || index >= len(d.Filas) {
			return ErrFilaIndexInvalid
		}
		switch campo {
		case "inicio":
			d.Filas[index].FechaInicio = ""
		case "fin":
			d.Filas[index].FechaFin = ""
		default:
			return ErrCampoFechaInvalido
		}
		return nil
	})
}

// Publish 发布当前草稿。
// 前置条件：可编辑、已选择周期、选中周期为活动周期、校验通过、草稿周期标签为活动周期。
func (w *CronogramaWorkflow) Publish(ctx context.Context) (*dto.PublishCronogramaResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	variant := string(w.store.Variant())

	if err := w.checkEditableLocked(); err != nil {
		return nil, err
	}

	active := w.register.Active()
	if w.periodo.Nombre != active {
		cronogramaPublishTotal.WithLabelValues(variant, "mismatch").Inc()
		return nil, ErrPeriodoNoActivo
	}

	d := w.store.Draft()
	if errs := ValidateCronograma(d); len(errs) > 0 {
		cronogramaPublishTotal.WithLabelValues(variant, "invalid").Inc()
		return nil, &ValidationError{Errors: errs}
	}

	// 二次核对：草稿自身的周期标签
	if d.Periodo != active {
		cronogramaPublishTotal.WithLabelValues(variant, "mismatch").Inc()
		return nil, ErrPeriodoNoActivo
	}

	if _, err := w.store.Publish(ctx); err != nil {
		cronogramaPublishTotal.WithLabelValues(variant, "rejected").Inc()
		w.logger.Warn("发布排期失败", zap.String("periodo", d.Periodo), zap.Error(err))

		msg := msgPublishGeneric
		var remote *RemoteError
		if errors.As(err, &remote) && strings.TrimSpace(remote.Message) != "" {
			msg = remote.Message
		}
		return nil, &PublishError{Message: msg, Err: err}
	}

	if err := w.store.SaveAsPublished(ctx, d.Periodo, d); err != nil {
		// 后端已保存成功，本地快照失败只影响下一周期的模板
		w.logger.Error("保存本地发布快照失败", zap.String("periodo", d.Periodo), zap.Error(err))
	}

	cronogramaPublishTotal.WithLabelValues(variant, "success").Inc()
	w.logger.Info("排期已发布", zap.String("periodo", d.Periodo), zap.Int("filas", len(d.Filas)))

	return &dto.PublishCronogramaResponse{Message: msgPublishOK, Cronograma: d}, nil
}

// ── 内部辅助方法 ──

// mutate 在可编辑状态下对草稿副本执行修改，成功后整体写回存储
func (w *CronogramaWorkflow) mutate(ctx context.Context, fn func(d *dto.CronogramaDraft) error) (dto.CronogramaView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkEditableLocked(); err != nil {
		return w.viewLocked(), err
	}

	d := w.store.Draft()
	if err := fn(&d); err != nil {
		return w.viewLocked(), err
	}
	w.store.SetDraft(ctx, d)
	return w.viewLocked(), nil
}

func (w *CronogramaWorkflow) checkEditableLocked() error {
	switch w.state {
	case StateEditable:
		return nil
	case StateNoPeriodSelected:
		return ErrPeriodoNoSeleccionado
	default:
		return ErrCronogramaReadOnly
	}
}

func (w *CronogramaWorkflow) applyGateLocked(active string) {
	if w.periodo == nil {
		w.state = StateNoPeriodSelected
		return
	}
	if w.periodo.Nombre == active {
		w.state = StateEditable
	} else {
		w.state = StateReadOnly
	}
}

func (w *CronogramaWorkflow) onActiveChanged(active string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 解析进行中时由 SelectPeriod 完成后判定
	if w.state == StateLoaded {
		return
	}
	prev := w.state
	w.applyGateLocked(active)
	if prev != w.state {
		w.logger.Info("活动周期变更，页面状态已重新判定",
			zap.String("active", active),
			zap.Stringer("from", prev),
			zap.Stringer("to", w.state),
		)
	}
}

func (w *CronogramaWorkflow) viewLocked() dto.CronogramaView {
	d := w.store.Draft()
	floor := RecomputeDateFloor(d)

	v := dto.CronogramaView{
		Variant:     w.store.Variant(),
		State:       w.state.String(),
		Editable:    w.state == StateEditable,
		Draft:       d,
		FechaMinima: floor,
		MinFechaFin: minEndDates(d, floor),
		Errores:     ValidateCronograma(d),
	}
	if w.periodo != nil {
		p := *w.periodo
		v.Periodo = &p
	}
	return v
}

// checkDate 校验新日期：空串表示清除；与原值相同时不受下限约束
func checkDate(value, current, min string) error {
	if value == "" || value == current {
		return nil
	}
	if _, err := parseDate(value); err != nil {
		return fmt.Errorf("%w: %s", ErrFechaInvalida, value)
	}
	if min != "" && value < min {
		return fmt.Errorf("%w: %s < %s", ErrFechaBajoMinimo, value, min)
	}
	return nil
}
