package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
)

func assertNumbering(t *testing.T, d dto.CronogramaDraft) {
	t.Helper()
	for i, f := range d.Filas {
		if f.Nro != i+1 {
			t.Fatalf("第 %d 行期望编号 %d，实际 %d", i, i+1, f.Nro)
		}
	}
}

// ── 行编号 ──

func TestCronogramaStore_RowNumbering(t *testing.T) {
	fx := newCronogramaFixture()
	s := fx.store

	for i := 0; i < 4; i++ {
		d := s.AddRow(fx.ctx)
		assertNumbering(t, d)
	}

	d, err := s.RemoveRow(fx.ctx, 1)
	if err != nil {
		t.Fatalf("RemoveRow 应成功: %v", err)
	}
	if len(d.Filas) != 3 {
		t.Fatalf("期望 3 行，实际 %d", len(d.Filas))
	}
	assertNumbering(t, d)

	d, _ = s.RemoveRow(fx.ctx, 0)
	assertNumbering(t, d)
	d = s.AddRow(fx.ctx)
	assertNumbering(t, d)
	if d.Filas[len(d.Filas)-1].Nro != 3 {
		t.Errorf("新增行期望编号 3，实际 %d", d.Filas[len(d.Filas)-1].Nro)
	}
}

func TestCronogramaStore_RemoveRow_InvalidIndex(t *testing.T) {
	fx := newCronogramaFixture()
	fx.store.AddRow(fx.ctx)

	for _, idx := range []int{-1, 1, 5} {
		if _, err := fx.store.RemoveRow(fx.ctx, idx); !errors.Is(err, ErrFilaIndexInvalid) {
			t.Errorf("索引 %d 期望 ErrFilaIndexInvalid，实际: %v", idx, err)
		}
	}
	if n := len(fx.store.Draft().Filas); n != 1 {
		t.Errorf("无效删除不应改变草稿，实际 %d 行", n)
	}
}

func TestCronogramaStore_SetDraftRenumbers(t *testing.T) {
	fx := newCronogramaFixture()
	d := validDraft(testP1)
	d.Filas[0].Nro = 7
	d.Filas[1].Nro = 7

	fx.store.SetDraft(fx.ctx, d)
	assertNumbering(t, fx.store.Draft())
}

// ── 草稿解析链 ──

func TestCronogramaStore_Resolve_FromBackend(t *testing.T) {
	fx := newCronogramaFixture()
	remote := validDraft("nombre en servidor")
	fx.backend.putDraft(dto.VariantUIC, 1, remote)

	d, err := fx.store.ResolveForPeriod(fx.ctx, 1, testP1)
	if err != nil {
		t.Fatalf("ResolveForPeriod 应成功: %v", err)
	}
	if d.Periodo != testP1 {
		t.Errorf("期望周期标签 %s，实际 %s", testP1, d.Periodo)
	}
	if len(d.Filas) != 2 {
		t.Errorf("期望后端草稿 2 行，实际 %d", len(d.Filas))
	}
	id, bound := fx.store.Binding()
	if id != 1 || bound.Periodo != testP1 {
		t.Errorf("期望绑定 (1, %s)，实际 (%d, %s)", testP1, id, bound.Periodo)
	}
}

func TestCronogramaStore_Resolve_FallbackToLastPublished(t *testing.T) {
	fx := newCronogramaFixture()
	published := validDraft(testP1)
	if err := fx.store.SaveAsPublished(fx.ctx, testP1, published); err != nil {
		t.Fatalf("SaveAsPublished 应成功: %v", err)
	}

	d, err := fx.store.ResolveForPeriod(fx.ctx, 2, testP2)
	if err != nil {
		t.Fatalf("ResolveForPeriod 应成功: %v", err)
	}
	if d.Periodo != testP2 {
		t.Errorf("期望周期标签改写为 %s，实际 %s", testP2, d.Periodo)
	}
	if len(d.Filas) != len(published.Filas) || d.Filas[0].Actividad != published.Filas[0].Actividad {
		t.Errorf("期望克隆最近发布快照，实际 %+v", d.Filas)
	}

	// 修改返回值不影响快照
	d.Filas[0].Actividad = "modificada"
	d.Titulo = "otro"
	last, _ := fx.store.LastPublished(fx.ctx)
	if last == nil || last.Filas[0].Actividad != "Inscripción" || last.Titulo != testTituloUIC || last.Periodo != testP1 {
		t.Errorf("最近发布快照被修改: %+v", last)
	}
	if fx.store.Draft().Filas[0].Actividad != "Inscripción" {
		t.Error("修改返回值不应影响存储中的草稿")
	}
}

func TestCronogramaStore_Resolve_Template(t *testing.T) {
	fx := newCronogramaFixture()

	d, err := fx.store.ResolveForPeriod(fx.ctx, 3, testP1)
	if err != nil {
		t.Fatalf("ResolveForPeriod 应成功: %v", err)
	}
	if d.Titulo != testTituloUIC || d.Proyecto != "PROYECTO DE TESIS" {
		t.Errorf("期望空白模板，实际 %+v", d)
	}
	if d.Periodo != testP1 || len(d.Filas) != 0 {
		t.Errorf("期望带周期标签的空模板，实际 %+v", d)
	}
}

func TestCronogramaStore_Resolve_BackendErrorFallsBack(t *testing.T) {
	fx := newCronogramaFixture()
	fx.backend.putDraft(dto.VariantUIC, 1, validDraft(testP1))
	fx.backend.fetchErr = errors.New("connection refused")

	d, err := fx.store.ResolveForPeriod(fx.ctx, 1, testP1)
	if err != nil {
		t.Fatalf("后端失败不应向上返回: %v", err)
	}
	if len(d.Filas) != 0 || d.Periodo != testP1 {
		t.Errorf("期望降级为空白模板，实际 %+v", d)
	}
}

func TestCronogramaStore_Resolve_StaleResultDiscarded(t *testing.T) {
	fx := newCronogramaFixture()
	fx.backend.putDraft(dto.VariantUIC, 1, validDraft("viejo"))

	// 第一次解析尚未完成时发起第二次解析
	var nested error
	fired := false
	fx.backend.fetchHook = func(periodoID int) {
		if periodoID == 1 && !fired {
			fired = true
			_, nested = fx.store.ResolveForPeriod(fx.ctx, 2, testP2)
		}
	}

	_, err := fx.store.ResolveForPeriod(fx.ctx, 1, testP1)
	if !errors.Is(err, ErrResolutionSuperseded) {
		t.Fatalf("期望 ErrResolutionSuperseded，实际: %v", err)
	}
	if nested != nil {
		t.Fatalf("较新的解析应成功: %v", nested)
	}

	id, d := fx.store.Binding()
	if id != 2 || d.Periodo != testP2 {
		t.Errorf("期望保留较新的解析结果 (2, %s)，实际 (%d, %s)", testP2, id, d.Periodo)
	}
}

func TestCronogramaStore_ResetSupersedesResolution(t *testing.T) {
	fx := newCronogramaFixture()
	fx.backend.fetchHook = func(int) { fx.store.Reset(fx.ctx) }

	if _, err := fx.store.ResolveForPeriod(fx.ctx, 1, testP1); !errors.Is(err, ErrResolutionSuperseded) {
		t.Fatalf("期望 ErrResolutionSuperseded，实际: %v", err)
	}
	if id, d := fx.store.Binding(); id != 0 || d.Periodo != "" {
		t.Errorf("Reset 后不应再绑定周期，实际 (%d, %q)", id, d.Periodo)
	}
}

// ── 发布快照 ──

func TestCronogramaStore_SaveAsPublished_CloneSafety(t *testing.T) {
	fx := newCronogramaFixture()
	d := validDraft(testP1)

	if err := fx.store.SaveAsPublished(fx.ctx, testP1, d); err != nil {
		t.Fatalf("SaveAsPublished 应成功: %v", err)
	}
	d.Titulo = "cambiado"
	d.Filas[0].Actividad = "cambiada"

	got, err := fx.store.PublishedForPeriod(fx.ctx, testP1)
	if err != nil || got == nil {
		t.Fatalf("期望读取到快照: %v", err)
	}
	if got.Titulo != testTituloUIC || got.Filas[0].Actividad != "Inscripción" {
		t.Errorf("快照被外部修改影响: %+v", got)
	}
}

func TestCronogramaStore_SaveAsPublished_NotifiesSubscribers(t *testing.T) {
	fx := newCronogramaFixture()
	var events []PublishedEvent
	fx.store.Subscribe(func(e PublishedEvent) { events = append(events, e) })

	_ = fx.store.SaveAsPublished(fx.ctx, testP1, validDraft(testP1))

	if len(events) != 1 {
		t.Fatalf("期望 1 次通知，实际 %d", len(events))
	}
	if events[0].Variant != dto.VariantUIC || events[0].Periodo != testP1 {
		t.Errorf("通知内容错误: %+v", events[0])
	}
}

func TestCronogramaStore_PublishedForPeriod_Missing(t *testing.T) {
	fx := newCronogramaFixture()

	got, err := fx.store.PublishedForPeriod(fx.ctx, "desconocido")
	if err != nil || got != nil {
		t.Errorf("期望 (nil, nil)，实际 (%v, %v)", got, err)
	}
}

func TestCronogramaStore_VariantsIsolated(t *testing.T) {
	fx := newCronogramaFixture()
	other := NewCronogramaStore(fx.ctx, dto.VariantComplexivo, "CRONOGRAMA COMPLEXIVO", fx.backend, fx.kv, zap.NewNop())

	_ = fx.store.SaveAsPublished(fx.ctx, testP1, validDraft(testP1))

	if last, _ := other.LastPublished(fx.ctx); last != nil {
		t.Errorf("另一类排期不应看到该快照: %+v", last)
	}
}

// ── 持久化与发布 ──

func TestCronogramaStore_RestoresWorkingDraft(t *testing.T) {
	fx := newCronogramaFixture()
	fx.backend.putDraft(dto.VariantUIC, 1, validDraft(testP1))
	_, _ = fx.store.ResolveForPeriod(fx.ctx, 1, testP1)
	fx.store.AddRow(fx.ctx)

	restored := NewCronogramaStore(fx.ctx, dto.VariantUIC, testTituloUIC, fx.backend, fx.kv, zap.NewNop())
	id, d := restored.Binding()
	if id != 1 || d.Periodo != testP1 || len(d.Filas) != 3 {
		t.Errorf("期望恢复绑定周期 1 的 3 行草稿，实际 (%d, %s, %d 行)", id, d.Periodo, len(d.Filas))
	}
}

func TestCronogramaStore_Publish_Unbound(t *testing.T) {
	fx := newCronogramaFixture()

	if _, err := fx.store.Publish(fx.ctx); !errors.Is(err, ErrPeriodoNoSeleccionado) {
		t.Errorf("期望 ErrPeriodoNoSeleccionado，实际: %v", err)
	}
	if fx.backend.publishCount() != 0 {
		t.Error("未绑定周期时不应调用后端")
	}
}

func TestCronogramaStore_Publish_Payload(t *testing.T) {
	fx := newCronogramaFixture()
	fx.backend.putDraft(dto.VariantUIC, 4, validDraft(testP1))
	_, _ = fx.store.ResolveForPeriod(fx.ctx, 4, testP1)

	if _, err := fx.store.Publish(fx.ctx); err != nil {
		t.Fatalf("Publish 应成功: %v", err)
	}

	p := fx.backend.published[0]
	if p.Modalidad != dto.VariantUIC || p.PeriodoID != 4 || p.Periodo != testP1 {
		t.Errorf("载荷头部错误: %+v", p)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if p.Filas[0].FechaInicio == nil || !p.Filas[0].FechaInicio.Equal(want) {
		t.Errorf("期望开始日期 %v，实际 %v", want, p.Filas[0].FechaInicio)
	}
	if p.Filas[1].FechaFin != nil {
		t.Errorf("未设置的结束日期应省略，实际 %v", p.Filas[1].FechaFin)
	}
}
