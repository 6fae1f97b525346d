package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/model"
	"titulacion/backend/internal/repository"
	"titulacion/backend/pkg/cache"
)

// ── Mock PeriodoRepository ──

type mockPeriodoRepo struct {
	periodos map[int]*model.Periodo
	err      error
}

func newMockPeriodoRepo(periodos ...model.Periodo) *mockPeriodoRepo {
	m := &mockPeriodoRepo{periodos: make(map[int]*model.Periodo)}
	for i := range periodos {
		p := periodos[i]
		m.periodos[p.PeriodoID] = &p
	}
	return m
}

func (m *mockPeriodoRepo) GetByID(_ context.Context, id int) (*model.Periodo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.periodos[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodoRepo) GetActive(_ context.Context) (*model.Periodo, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.periodos {
		if p.IsActive {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodoRepo) List(_ context.Context) ([]model.Periodo, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []model.Periodo
	for _, p := range m.periodos {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PeriodoID > result[j].PeriodoID })
	return result, nil
}

func (m *mockPeriodoRepo) Activate(_ context.Context, id int) error {
	if m.err != nil {
		return m.err
	}
	target, ok := m.periodos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, p := range m.periodos {
		p.IsActive = false
	}
	target.IsActive = true
	return nil
}

// ── Mock CronogramaRepository ──

type mockCronogramaRepo struct {
	cronogramas map[string]*model.Cronograma
	saveErr     error
}

func newMockCronogramaRepo() *mockCronogramaRepo {
	return &mockCronogramaRepo{cronogramas: make(map[string]*model.Cronograma)}
}

func cronogramaMockKey(modalidad string, periodoID int) string {
	return fmt.Sprintf("%s:%d", modalidad, periodoID)
}

func (m *mockCronogramaRepo) GetByPeriodo(_ context.Context, modalidad string, periodoID int) (*model.Cronograma, error) {
	if c, ok := m.cronogramas[cronogramaMockKey(modalidad, periodoID)]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCronogramaRepo) SavePublished(_ context.Context, c *model.Cronograma) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	key := cronogramaMockKey(c.Modalidad, c.PeriodoID)
	if prev, ok := m.cronogramas[key]; ok {
		c.CronogramaID = prev.CronogramaID
		c.Version = prev.Version + 1
	} else {
		c.CronogramaID = "cron-" + key
		c.Version = 1
	}
	m.cronogramas[key] = c
	return nil
}

func newMockRepository(periodos *mockPeriodoRepo, cronogramas *mockCronogramaRepo) *repository.Repository {
	return &repository.Repository{
		Periodo:    periodos,
		Cronograma: cronogramas,
	}
}

// ── Mock CronogramaBackend ──

type mockBackend struct {
	mu sync.Mutex

	drafts     map[string]*dto.CronogramaDraft
	fetchErr   error
	fetchHook  func(periodoID int)
	publishErr error
	published  []*dto.PublishCronogramaPayload
	active     *dto.PeriodoRef
	activeErr  error
	activeHits int
	periods    []dto.PeriodoRef
}

func newMockBackend() *mockBackend {
	return &mockBackend{drafts: make(map[string]*dto.CronogramaDraft)}
}

func (m *mockBackend) putDraft(v dto.Variant, periodoID int, d dto.CronogramaDraft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[cronogramaMockKey(string(v), periodoID)] = &d
}

func (m *mockBackend) FetchDraft(_ context.Context, v dto.Variant, periodoID int) (*dto.CronogramaDraft, error) {
	if m.fetchHook != nil {
		m.fetchHook(periodoID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if d, ok := m.drafts[cronogramaMockKey(string(v), periodoID)]; ok {
		c := d.Clone()
		return &c, nil
	}
	return nil, nil
}

func (m *mockBackend) Publish(_ context.Context, payload *dto.PublishCronogramaPayload) (*dto.CronogramaDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	m.published = append(m.published, payload)
	return &dto.CronogramaDraft{Titulo: payload.Titulo, Proyecto: payload.Proyecto, Periodo: payload.Periodo}, nil
}

func (m *mockBackend) ActivePeriod(_ context.Context) (*dto.PeriodoRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeHits++
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active, nil
}

func (m *mockBackend) Periods(_ context.Context) ([]dto.PeriodoRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dto.PeriodoRef(nil), m.periods...), nil
}

func (m *mockBackend) publishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// ── 测试夹具 ──

const (
	testTituloUIC = "CRONOGRAMA DE ACTIVIDADES UIC"
	testP1        = "2025-1S"
	testP2        = "2025-2S"
)

type cronogramaFixture struct {
	ctx      context.Context
	kv       *cache.Memory
	backend  *mockBackend
	register *PeriodRegister
	store    *CronogramaStore
	workflow *CronogramaWorkflow
}

func newCronogramaFixture() *cronogramaFixture {
	ctx := context.Background()
	kv := cache.NewMemory()
	backend := newMockBackend()
	logger := zap.NewNop()

	register := NewPeriodRegister(ctx, backend, kv, logger)
	store := NewCronogramaStore(ctx, dto.VariantUIC, testTituloUIC, backend, kv, logger)
	workflow := NewCronogramaWorkflow(CoordinatorRole, store, register, logger)

	return &cronogramaFixture{
		ctx:      ctx,
		kv:       kv,
		backend:  backend,
		register: register,
		store:    store,
		workflow: workflow,
	}
}

// validDraft 一份可通过校验的草稿
func validDraft(periodo string) dto.CronogramaDraft {
	return dto.CronogramaDraft{
		Titulo:   testTituloUIC,
		Proyecto: "PROYECTO DE TESIS",
		Periodo:  periodo,
		Filas: []dto.CronogramaFila{
			{Nro: 1, Actividad: "Inscripción", Responsable: "Secretaría", FechaInicio: "2025-03-01", FechaFin: "2025-03-10"},
			{Nro: 2, Actividad: "Defensa", Responsable: "Tribunal", FechaInicio: "2025-06-01"},
		},
	}
}

func strPtr(s string) *string { return &s }
