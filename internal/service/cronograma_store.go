package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
	"titulacion/backend/pkg/cache"
	pkgerrors "titulacion/backend/pkg/errors"
)

// ── 排期存储模块业务错误 ──

var (
	ErrFilaIndexInvalid      = errors.New("排期行不存在")
	ErrPeriodoNoSeleccionado = errors.New("尚未选择周期")
	ErrResolutionSuperseded  = errors.New("周期草稿解析已被更新的选择取代")
)

// ── 缓存键布局 ──
//   cronograma:<variant>:borrador              工作草稿
//   cronograma:<variant>:ultimo_publicado      最近一次发布（任意周期）
//   cronograma:<variant>:publicado:<periodo>   指定周期的发布快照

func cronogramaKeyPrefix(v dto.Variant) string {
	return "cronograma:" + string(v) + ":"
}

func workingDraftKey(v dto.Variant) string {
	return cronogramaKeyPrefix(v) + "borrador"
}

func lastPublishedKey(v dto.Variant) string {
	return cronogramaKeyPrefix(v) + "ultimo_publicado"
}

func publishedKey(v dto.Variant, periodo string) string {
	return cronogramaKeyPrefix(v) + "publicado:" + periodo
}

// workingDraft 工作草稿槽位内容：草稿 + 选中的周期 ID
type workingDraft struct {
	PeriodoID int                 `json:"periodo_id,omitempty"`
	Draft     dto.CronogramaDraft `json:"draft"`
}

// PublishedEvent 发布快照保存后的通知
type PublishedEvent struct {
	Variant    dto.Variant
	Periodo    string
	Cronograma dto.CronogramaDraft
}

// CronogramaStore 单一排期类型的草稿存储
//
// 持有一份可变草稿、该类型的发布快照缓存，以及选中周期时的草稿解析链：
// 后端已有草稿 → 最近发布快照的克隆 → 空白模板。
// 所有读写都做深拷贝，调用方拿到的引用不会影响内部状态。
type CronogramaStore struct {
	mu         sync.Mutex
	variant    dto.Variant
	titulo     string
	draft      dto.CronogramaDraft
	periodoID  int
	generation uint64
	listeners  []func(PublishedEvent)

	backend CronogramaBackend
	cache   cache.Store
	logger  *zap.Logger
}

// NewCronogramaStore 创建存储，工作草稿槽位有内容时从中恢复，否则使用空白模板
func NewCronogramaStore(ctx context.Context, v dto.Variant, titulo string, backend CronogramaBackend, store cache.Store, logger *zap.Logger) *CronogramaStore {
	s := &CronogramaStore{
		variant: v,
		titulo:  titulo,
		draft:   dto.NewCronogramaDraft(titulo, v),
		backend: backend,
		cache:   store,
		logger:  logger.With(zap.String("variant", string(v))),
	}

	var wd workingDraft
	found, err := s.readJSON(ctx, workingDraftKey(v), &wd)
	if err != nil {
		s.logger.Warn("恢复工作草稿失败，使用空白模板", zap.Error(err))
	} else if found {
		s.draft = normalizeDraft(wd.Draft)
		s.periodoID = wd.PeriodoID
	}

	return s
}

// Variant 排期类型
func (s *CronogramaStore) Variant() dto.Variant { return s.variant }

// Draft 当前草稿的深拷贝
func (s *CronogramaStore) Draft() dto.CronogramaDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Binding 当前草稿绑定的周期 ID 与草稿副本，未绑定时 ID 为 0
func (s *CronogramaStore) Binding() (int, dto.CronogramaDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodoID, s.draft.Clone()
}

// SetDraft 保存草稿的深拷贝，并写入工作草稿槽位
func (s *CronogramaStore) SetDraft(ctx context.Context, d dto.CronogramaDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = normalizeDraft(d.Clone())
	s.mirrorLocked(ctx)
}

// AddRow 追加空白行，行号为末行号 + 1（空表为 1）
func (s *CronogramaStore) AddRow(ctx context.Context) dto.CronogramaDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	nro := 1
	if n := len(s.draft.Filas); n > 0 {
		nro = s.draft.Filas[n-1].Nro + 1
	}
	s.draft.Filas = append(s.draft.Filas, dto.CronogramaFila{Nro: nro})
	s.mirrorLocked(ctx)
	return s.draft.Clone()
}

// RemoveRow 删除第 index 行（从 0 开始），剩余行按原顺序重新编号为 1..N
func (s *CronogramaStore) RemoveRow(ctx context.Context, index int) (dto.CronogramaDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.draft.Filas) {
		return s.draft.Clone(), ErrFilaIndexInvalid
	}
	s.draft.Filas = append(s.draft.Filas[:index], s.draft.Filas[index+1:]...)
	renumber(s.draft.Filas)
	s.mirrorLocked(ctx)
	return s.draft.Clone(), nil
}

// Reset 回到未绑定周期的空白模板；同时作废进行中的解析
func (s *CronogramaStore) Reset(ctx context.Context) dto.CronogramaDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.draft = dto.NewCronogramaDraft(s.titulo, s.variant)
	s.periodoID = 0
	s.mirrorLocked(ctx)
	return s.draft.Clone()
}

// ResolveForPeriod 为选中的周期生成草稿，依次尝试：
//  1. 后端已有草稿，周期标签改写为本地显示名称
//  2. 最近一次发布快照（任意周期）的克隆，打上周期标签
//  3. 空白模板，打上周期标签
//
// 后端失败等同于"无草稿"，不向上返回。每次调用领取一个代次，
// 完成时若已有更新的调用，结果被丢弃并返回 ErrResolutionSuperseded。
func (s *CronogramaStore) ResolveForPeriod(ctx context.Context, periodoID int, periodoNombre string) (dto.CronogramaDraft, error) {
	return s.resolveGeneration(ctx, s.beginResolve(), periodoID, periodoNombre)
}

// beginResolve 领取新的解析代次，之前领取的代次全部作废
func (s *CronogramaStore) beginResolve() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

func (s *CronogramaStore) resolveGeneration(ctx context.Context, gen uint64, periodoID int, periodoNombre string) (dto.CronogramaDraft, error) {
	resolved, source := s.resolve(ctx, periodoID, periodoNombre)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		cronogramaResolveTotal.WithLabelValues(string(s.variant), "superseded").Inc()
		s.logger.Debug("丢弃过期的草稿解析结果",
			zap.Int("periodo_id", periodoID),
			zap.Uint64("generation", gen),
		)
		return resolved, ErrResolutionSuperseded
	}

	cronogramaResolveTotal.WithLabelValues(string(s.variant), source).Inc()
	s.draft = resolved.Clone()
	s.periodoID = periodoID
	s.mirrorLocked(ctx)

	s.logger.Info("周期草稿已解析",
		zap.Int("periodo_id", periodoID),
		zap.String("periodo", periodoNombre),
		zap.String("source", source),
	)
	return resolved, nil
}

func (s *CronogramaStore) resolve(ctx context.Context, periodoID int, periodoNombre string) (dto.CronogramaDraft, string) {
	// 1. 后端草稿
	remote, err := s.backend.FetchDraft(ctx, s.variant, periodoID)
	if err != nil {
		// 网络错误与"不存在"无法区分，按不存在降级
		cronogramaBackendErrors.WithLabelValues(string(s.variant)).Inc()
		s.logger.Warn("查询后端草稿失败，降级到本地模板",
			zap.Int("periodo_id", periodoID),
			zap.Error(err),
		)
	} else if remote != nil {
		d := normalizeDraft(remote.Clone())
		d.Periodo = periodoNombre
		return d, "backend"
	}

	// 2. 最近发布快照
	last, err := s.LastPublished(ctx)
	if err != nil {
		s.logger.Warn("读取最近发布快照失败", zap.Error(err))
	} else if last != nil {
		d := last.Clone()
		d.Periodo = periodoNombre
		return d, "published"
	}

	// 3. 空白模板
	d := dto.NewCronogramaDraft(s.titulo, s.variant)
	d.Periodo = periodoNombre
	return d, "template"
}

// Publish 序列化当前草稿并提交后端。日期转为当日零点 UTC 时间戳，未设置的日期省略。
// 后端错误原样返回，不重试；成功后由调用方负责 SaveAsPublished。
func (s *CronogramaStore) Publish(ctx context.Context) (*dto.CronogramaDraft, error) {
	s.mu.Lock()
	d := s.draft.Clone()
	periodoID := s.periodoID
	s.mu.Unlock()

	if periodoID <= 0 || isBlank(d.Periodo) {
		return nil, ErrPeriodoNoSeleccionado
	}

	payload, err := buildPublishPayload(s.variant, periodoID, d)
	if err != nil {
		return nil, err
	}

	return s.backend.Publish(ctx, payload)
}

// SaveAsPublished 以 periodo 为键保存草稿快照，同时更新"最近发布"指针并通知订阅者
func (s *CronogramaStore) SaveAsPublished(ctx context.Context, periodo string, d dto.CronogramaDraft) error {
	snapshot := normalizeDraft(d.Clone())
	snapshot.Periodo = periodo

	if err := s.writeJSON(ctx, publishedKey(s.variant, periodo), snapshot); err != nil {
		return err
	}
	if err := s.writeJSON(ctx, lastPublishedKey(s.variant), snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	listeners := make([]func(PublishedEvent), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(PublishedEvent{Variant: s.variant, Periodo: periodo, Cronograma: snapshot.Clone()})
	}
	return nil
}

// LastPublished 最近一次发布快照（任意周期），无则返回 nil
func (s *CronogramaStore) LastPublished(ctx context.Context) (*dto.CronogramaDraft, error) {
	return s.readSnapshot(ctx, lastPublishedKey(s.variant))
}

// PublishedForPeriod 指定周期的发布快照，无则返回 nil
func (s *CronogramaStore) PublishedForPeriod(ctx context.Context, periodo string) (*dto.CronogramaDraft, error) {
	return s.readSnapshot(ctx, publishedKey(s.variant, periodo))
}

// Subscribe 订阅发布快照保存事件
func (s *CronogramaStore) Subscribe(fn func(PublishedEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ── 内部辅助方法 ──

func (s *CronogramaStore) readSnapshot(ctx context.Context, key string) (*dto.CronogramaDraft, error) {
	var d dto.CronogramaDraft
	found, err := s.readJSON(ctx, key, &d)
	if err != nil || !found {
		return nil, err
	}
	d = normalizeDraft(d)
	return &d, nil
}

// mirrorLocked 同步工作草稿槽位；写入失败只记录日志，不影响内存草稿
func (s *CronogramaStore) mirrorLocked(ctx context.Context) {
	wd := workingDraft{PeriodoID: s.periodoID, Draft: s.draft}
	if err := s.writeJSON(ctx, workingDraftKey(s.variant), wd); err != nil {
		s.logger.Warn("写入工作草稿缓存失败", zap.Error(err))
	}
}

func (s *CronogramaStore) readJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("解析缓存 %s 失败: %w", key, err)
	}
	return true, nil
}

func (s *CronogramaStore) writeJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, string(b))
}

func buildPublishPayload(v dto.Variant, periodoID int, d dto.CronogramaDraft) (*dto.PublishCronogramaPayload, error) {
	payload := &dto.PublishCronogramaPayload{
		Modalidad: v,
		PeriodoID: periodoID,
		Titulo:    d.Titulo,
		Proyecto:  d.Proyecto,
		Periodo:   d.Periodo,
		Filas:     make([]dto.PublishFila, 0, len(d.Filas)),
	}
	for _, f := range d.Filas {
		inicio, err := parseDate(f.FechaInicio)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行开始日期无效: %w", f.Nro, err)
		}
		fin, err := parseDate(f.FechaFin)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行结束日期无效: %w", f.Nro, err)
		}
		payload.Filas = append(payload.Filas, dto.PublishFila{
			Nro:         f.Nro,
			Actividad:   f.Actividad,
			Responsable: f.Responsable,
			FechaInicio: inicio,
			FechaFin:    fin,
		})
	}
	return payload, nil
}

// normalizeDraft 保证 Filas 非 nil 且行号为 1..N
func normalizeDraft(d dto.CronogramaDraft) dto.CronogramaDraft {
	if d.Filas == nil {
		d.Filas = []dto.CronogramaFila{}
	}
	renumber(d.Filas)
	return d
}

func renumber(filas []dto.CronogramaFila) {
	for i := range filas {
		filas[i].Nro = i + 1
	}
}
