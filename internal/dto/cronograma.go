package dto

import "time"

// ── 排期（cronograma）模块 DTO ──

// Variant 排期类型：UIC 与 Examen Complexivo 两套互不共享的子系统
type Variant string

const (
	VariantUIC        Variant = "uic"
	VariantComplexivo Variant = "complexivo"
)

// Variants 全部排期类型（固定顺序）
func Variants() []Variant {
	return []Variant{VariantUIC, VariantComplexivo}
}

// ParseVariant 解析路径参数中的排期类型
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantUIC, VariantComplexivo:
		return Variant(s), true
	}
	return "", false
}

// DefaultProyecto 各类型默认的项目标签
func (v Variant) DefaultProyecto() string {
	if v == VariantComplexivo {
		return "EXAMEN COMPLEXIVO"
	}
	return "PROYECTO DE TESIS"
}

// CronogramaFila 排期行。日期为 YYYY-MM-DD，空串表示未设置
type CronogramaFila struct {
	Nro         int    `json:"nro"`
	Actividad   string `json:"actividad"`
	Responsable string `json:"responsable"`
	FechaInicio string `json:"fecha_inicio,omitempty"`
	FechaFin    string `json:"fecha_fin,omitempty"`
}

// CronogramaDraft 排期草稿。Periodo 为空表示尚未绑定周期，不可发布
type CronogramaDraft struct {
	Titulo   string           `json:"titulo"`
	Proyecto string           `json:"proyecto"`
	Periodo  string           `json:"periodo,omitempty"`
	Filas    []CronogramaFila `json:"filas"`
}

// NewCronogramaDraft 空白模板：默认标题/项目，无行，未绑定周期
func NewCronogramaDraft(titulo string, v Variant) CronogramaDraft {
	return CronogramaDraft{
		Titulo:   titulo,
		Proyecto: v.DefaultProyecto(),
		Filas:    []CronogramaFila{},
	}
}

// Clone 深拷贝，调用方可随意修改返回值
func (d CronogramaDraft) Clone() CronogramaDraft {
	out := d
	out.Filas = make([]CronogramaFila, len(d.Filas))
	copy(out.Filas, d.Filas)
	return out
}

// ── 请求 ──

// SelectPeriodoRequest 选择周期请求。periodo_id 非法或为空时视为取消选择
type SelectPeriodoRequest struct {
	PeriodoID     string `json:"periodo_id"`
	PeriodoNombre string `json:"periodo_nombre" binding:"max=100"`
}

// UpdateCronogramaRequest 修改标题 / 项目标签
type UpdateCronogramaRequest struct {
	Titulo   *string `json:"titulo"   binding:"omitempty,max=255"`
	Proyecto *string `json:"proyecto" binding:"omitempty,max=255"`
}

// UpdateFilaRequest 修改排期行，字段为 nil 表示不修改；日期传空串表示清除
type UpdateFilaRequest struct {
	Actividad   *string `json:"actividad"    binding:"omitempty,max=255"`
	Responsable *string `json:"responsable"  binding:"omitempty,max=255"`
	FechaInicio *string `json:"fecha_inicio" binding:"omitempty,isodate"`
	FechaFin    *string `json:"fecha_fin"    binding:"omitempty,isodate"`
}

// ── 响应 ──

// CronogramaView 排期页面状态
type CronogramaView struct {
	Variant     Variant         `json:"variant"`
	State       string          `json:"state"`
	Editable    bool            `json:"editable"`
	Periodo     *PeriodoRef     `json:"periodo,omitempty"`
	Draft       CronogramaDraft `json:"draft"`
	FechaMinima string          `json:"fecha_minima,omitempty"`
	MinFechaFin []string        `json:"min_fecha_fin"`
	Errores     []string        `json:"errores"`
}

// PublishCronogramaResponse 发布结果
type PublishCronogramaResponse struct {
	Message    string          `json:"message"`
	Cronograma CronogramaDraft `json:"cronograma"`
}

// ── 后端提交格式 ──

// PublishFila 提交给后端的行：日期为时间戳，未设置则省略
type PublishFila struct {
	Nro         int        `json:"nro"`
	Actividad   string     `json:"actividad"`
	Responsable string     `json:"responsable"`
	FechaInicio *time.Time `json:"fecha_inicio,omitempty"`
	FechaFin    *time.Time `json:"fecha_fin,omitempty"`
}

// PublishCronogramaPayload 提交给后端的排期
type PublishCronogramaPayload struct {
	Modalidad Variant       `json:"modalidad"`
	PeriodoID int           `json:"periodo_id"`
	Titulo    string        `json:"titulo"`
	Proyecto  string        `json:"proyecto"`
	Periodo   string        `json:"periodo"`
	Filas     []PublishFila `json:"filas"`
}
