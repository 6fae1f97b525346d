package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/model"
	"titulacion/backend/pkg/cache"
)

// ── 测试辅助 ──

func setupTestPeriodoService() (PeriodoService, *mockPeriodoRepo, *PeriodRegister) {
	periodoRepo := newMockPeriodoRepo(
		model.Periodo{PeriodoID: 1, Nombre: testP1, IsActive: true},
		model.Periodo{PeriodoID: 2, Nombre: testP2},
	)
	repo := newMockRepository(periodoRepo, newMockCronogramaRepo())
	logger := zap.NewNop()
	backend := NewRepoBackend(repo, 0, logger)
	register := NewPeriodRegister(context.Background(), backend, cache.NewMemory(), logger)
	return NewPeriodoService(repo, backend, register, logger), periodoRepo, register
}

// ── List 测试 ──

func TestPeriodoService_List(t *testing.T) {
	svc, _, _ := setupTestPeriodoService()

	result, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("期望 2 个周期，实际 %d", len(result))
	}
	if result[0].ID != 2 || result[1].ID != 1 {
		t.Errorf("期望按 ID 倒序，实际 %+v", result)
	}
	if !result[1].IsActive {
		t.Error("周期 1 应为活动周期")
	}
}

func TestPeriodoService_List_UsesBackendCatalog(t *testing.T) {
	backend := newMockBackend()
	backend.periods = []dto.PeriodoRef{
		{ID: 7, Nombre: "2026-1S", IsActive: true},
		{ID: 6, Nombre: "2025-2S"},
	}
	logger := zap.NewNop()
	register := NewPeriodRegister(context.Background(), backend, cache.NewMemory(), logger)
	// 仓储中没有任何周期：结果只能来自 backend
	repo := newMockRepository(newMockPeriodoRepo(), newMockCronogramaRepo())
	svc := NewPeriodoService(repo, backend, register, logger)

	result, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(result) != 2 || result[0].ID != 7 || !result[0].IsActive || result[1].IsActive {
		t.Errorf("期望 backend 周期目录，实际 %+v", result)
	}
}

func TestPeriodoService_List_RepoError(t *testing.T) {
	svc, periodoRepo, _ := setupTestPeriodoService()
	periodoRepo.err = errors.New("db down")

	if _, err := svc.List(context.Background()); err == nil {
		t.Error("期望返回仓储错误")
	}
}

// ── Refresh / GetActive 测试 ──

func TestPeriodoService_Refresh(t *testing.T) {
	svc, _, register := setupTestPeriodoService()
	ctx := context.Background()

	if got := svc.GetActive(ctx).Nombre; got != "" {
		t.Fatalf("刷新前期望无活动周期，实际 %q", got)
	}

	resp, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if resp.Nombre != testP1 || register.Active() != testP1 {
		t.Errorf("期望活动周期 %s，实际 %q", testP1, resp.Nombre)
	}
	if got := svc.GetActive(ctx).Nombre; got != testP1 {
		t.Errorf("GetActive 期望 %s，实际 %q", testP1, got)
	}
}

func TestPeriodoService_Refresh_Failure(t *testing.T) {
	svc, periodoRepo, register := setupTestPeriodoService()
	ctx := context.Background()
	register.SetActive(ctx, testP1)
	periodoRepo.err = errors.New("db down")

	if _, err := svc.Refresh(ctx); err == nil {
		t.Fatal("期望返回错误")
	}
	if register.Active() != "" {
		t.Errorf("刷新失败后期望无活动周期，实际 %q", register.Active())
	}
}

// ── Activate 测试 ──

func TestPeriodoService_Activate(t *testing.T) {
	svc, periodoRepo, register := setupTestPeriodoService()

	resp, err := svc.Activate(context.Background(), 2)
	if err != nil {
		t.Fatalf("Activate 应成功: %v", err)
	}
	if !resp.IsActive || resp.Nombre != testP2 {
		t.Errorf("激活响应错误: %+v", resp)
	}
	if periodoRepo.periodos[1].IsActive {
		t.Error("旧活动周期应被清除")
	}
	if register.Active() != testP2 {
		t.Errorf("登记处期望 %s，实际 %q", testP2, register.Active())
	}
}

func TestPeriodoService_Activate_NotFound(t *testing.T) {
	svc, _, register := setupTestPeriodoService()

	_, err := svc.Activate(context.Background(), 99)
	if !errors.Is(err, ErrPeriodoNotFound) {
		t.Errorf("期望 ErrPeriodoNotFound，实际: %v", err)
	}
	if register.Active() != "" {
		t.Error("激活失败不应修改登记处")
	}
}
