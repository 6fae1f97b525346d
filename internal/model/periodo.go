package model

// Periodo 学术周期表 — 对应 periodos
// 排期模块只读取：哪个周期是活动周期、周期的显示名称
type Periodo struct {
	PeriodoID int    `gorm:"primaryKey;autoIncrement"          json:"periodo_id"`
	Nombre    string `gorm:"type:varchar(100);not null;unique" json:"nombre"`
	IsActive  bool   `gorm:"not null;default:false"            json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Periodo) TableName() string { return "periodos" }
