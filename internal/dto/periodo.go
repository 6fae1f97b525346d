package dto

// ── 周期模块 DTO ──

// PeriodoRef 周期引用（id + 显示名称），IsActive 仅在周期目录中填写
type PeriodoRef struct {
	ID       int    `json:"id"`
	Nombre   string `json:"nombre"`
	IsActive bool   `json:"is_active,omitempty"`
}

// PeriodoResponse 周期信息响应
type PeriodoResponse struct {
	ID       int    `json:"id"`
	Nombre   string `json:"nombre"`
	IsActive bool   `json:"is_active"`
}

// ActivePeriodoResponse 当前活动周期（nombre 为空表示无活动周期）
type ActivePeriodoResponse struct {
	Nombre string `json:"nombre"`
}
