package service

import (
	"testing"

	"titulacion/backend/internal/dto"
)

func TestRecomputeDateFloor(t *testing.T) {
	tests := []struct {
		name  string
		filas []dto.CronogramaFila
		want  string
	}{
		{"无行", nil, ""},
		{"无日期", []dto.CronogramaFila{{Nro: 1}, {Nro: 2}}, ""},
		{"仅开始日期", []dto.CronogramaFila{{FechaInicio: "2024-02-01"}}, "2024-02-01"},
		{
			"跨行取最大值",
			[]dto.CronogramaFila{
				{FechaInicio: "2024-01-01", FechaFin: "2024-03-15"},
				{FechaInicio: "2024-02-10"},
				{FechaFin: "2024-03-01"},
			},
			"2024-03-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecomputeDateFloor(dto.CronogramaDraft{Filas: tt.filas})
			if got != tt.want {
				t.Errorf("期望 %q，实际 %q", tt.want, got)
			}
		})
	}
}

func TestRecomputeDateFloor_MonotonicAcrossEdits(t *testing.T) {
	d := dto.CronogramaDraft{Filas: []dto.CronogramaFila{{Nro: 1, FechaInicio: "2024-01-10"}}}
	prev := RecomputeDateFloor(d)

	// 追加行、填写不早于下限的日期：下限只增不减
	d.Filas = append(d.Filas, dto.CronogramaFila{Nro: 2})
	if got := RecomputeDateFloor(d); got < prev {
		t.Fatalf("追加行后下限回退: %s < %s", got, prev)
	}
	d.Filas[1].FechaFin = "2024-02-01"
	got := RecomputeDateFloor(d)
	if got != "2024-02-01" {
		t.Fatalf("期望下限 2024-02-01，实际 %s", got)
	}

	// 清除持有最大值的日期后允许回退
	d.Filas[1].FechaFin = ""
	if got := RecomputeDateFloor(d); got != "2024-01-10" {
		t.Errorf("清除后期望下限 2024-01-10，实际 %s", got)
	}
}

func TestMinimumEndDateFor(t *testing.T) {
	tests := []struct {
		name  string
		fila  dto.CronogramaFila
		floor string
		want  string
	}{
		{"均无", dto.CronogramaFila{}, "", ""},
		{"仅下限", dto.CronogramaFila{}, "2024-03-01", "2024-03-01"},
		{"本行开始日期更晚", dto.CronogramaFila{FechaInicio: "2024-04-01"}, "2024-03-01", "2024-04-01"},
		{"下限更晚", dto.CronogramaFila{FechaInicio: "2024-01-01"}, "2024-03-01", "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinimumEndDateFor(tt.fila, tt.floor); got != tt.want {
				t.Errorf("期望 %q，实际 %q", tt.want, got)
			}
		})
	}
}

func TestValidateCronograma_ReportsEveryError(t *testing.T) {
	d := dto.CronogramaDraft{
		Titulo:   " ",
		Proyecto: " ",
		Periodo:  " ",
		Filas: []dto.CronogramaFila{
			{Nro: 1},
			{Nro: 2, Actividad: "A", Responsable: "R", FechaInicio: "2024-05-01", FechaFin: "2024-04-01"},
		},
	}

	errs := ValidateCronograma(d)
	if len(errs) < 5 {
		t.Fatalf("期望至少 5 个错误，实际 %d: %v", len(errs), errs)
	}

	seen := make(map[string]bool)
	for _, e := range errs {
		if seen[e] {
			t.Errorf("错误信息重复: %s", e)
		}
		seen[e] = true
	}
	if !seen["第 2 行：开始日期不能晚于结束日期"] {
		t.Errorf("缺少日期顺序错误: %v", errs)
	}
}

func TestValidateCronograma_Valid(t *testing.T) {
	d := dto.CronogramaDraft{
		Titulo:   "T",
		Proyecto: "EXAMEN COMPLEXIVO",
		Periodo:  "P1",
		Filas:    []dto.CronogramaFila{{Nro: 1, Actividad: "A", Responsable: "R", FechaInicio: "2024-01-01"}},
	}

	if errs := ValidateCronograma(d); len(errs) != 0 {
		t.Errorf("期望无错误，实际: %v", errs)
	}
}

func TestValidateCronograma_NoRows(t *testing.T) {
	d := dto.CronogramaDraft{Titulo: "T", Proyecto: "P", Periodo: "P1"}

	errs := ValidateCronograma(d)
	if len(errs) != 1 || errs[0] != "至少需要一行活动" {
		t.Errorf("期望仅缺少行的错误，实际: %v", errs)
	}
}
