package service

import (
	"fmt"
	"strings"

	"titulacion/backend/internal/dto"
)

// ── 排期行约束 ──
// 无状态：每次基于完整草稿重新计算，不做增量维护

// RecomputeDateFloor 返回草稿中所有已设置日期的最大值（日期下限），无日期时返回空串。
// 日期均为 YYYY-MM-DD，字符串序即时间序。
func RecomputeDateFloor(d dto.CronogramaDraft) string {
	floor := ""
	for _, f := range d.Filas {
		if f.FechaInicio > floor {
			floor = f.FechaInicio
		}
		if f.FechaFin > floor {
			floor = f.FechaFin
		}
	}
	return floor
}

// MinimumEndDateFor 行结束日期的下限：全局下限与本行开始日期取较晚者，均无则为空串
func MinimumEndDateFor(f dto.CronogramaFila, floor string) string {
	if f.FechaInicio > floor {
		return f.FechaInicio
	}
	return floor
}

// ValidateCronograma 返回全部校验错误（不在第一个错误处停止），行号从 1 开始
func ValidateCronograma(d dto.CronogramaDraft) []string {
	errs := make([]string, 0)

	if isBlank(d.Titulo) {
		errs = append(errs, "标题不能为空")
	}
	if isBlank(d.Periodo) {
		errs = append(errs, "周期不能为空")
	}
	if isBlank(d.Proyecto) {
		errs = append(errs, "项目不能为空")
	}
	if len(d.Filas) == 0 {
		errs = append(errs, "至少需要一行活动")
	}

	for i, f := range d.Filas {
		n := i + 1
		if isBlank(f.Actividad) {
			errs = append(errs, fmt.Sprintf("第 %d 行：活动不能为空", n))
		}
		if isBlank(f.Responsable) {
			errs = append(errs, fmt.Sprintf("第 %d 行：负责人不能为空", n))
		}
		if f.FechaInicio == "" && f.FechaFin == "" {
			errs = append(errs, fmt.Sprintf("第 %d 行：开始日期与结束日期至少填写一个", n))
		}
		if f.FechaInicio != "" && f.FechaFin != "" && f.FechaInicio > f.FechaFin {
			errs = append(errs, fmt.Sprintf("第 %d 行：开始日期不能晚于结束日期", n))
		}
	}

	return errs
}

// minEndDates 每行结束日期下限，与 Filas 一一对应
func minEndDates(d dto.CronogramaDraft, floor string) []string {
	out := make([]string, len(d.Filas))
	for i, f := range d.Filas {
		out[i] = MinimumEndDateFor(f, floor)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
