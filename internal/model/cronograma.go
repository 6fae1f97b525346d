package model

import "time"

// 排期状态
const (
	CronogramaStatusDraft     = "draft"
	CronogramaStatusPublished = "published"
)

// Cronograma 排期表 — 对应 cronogramas，每个 (modalidad, periodo_id) 至多一条
type Cronograma struct {
	CronogramaID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"cronograma_id"`
	Modalidad     string     `gorm:"type:varchar(20);not null"                      json:"modalidad"` // uic | complexivo
	PeriodoID     int        `gorm:"not null"                                       json:"periodo_id"`
	Titulo        string     `gorm:"type:varchar(255);not null"                     json:"titulo"`
	Proyecto      string     `gorm:"type:varchar(255);not null"                     json:"proyecto"`
	PeriodoNombre string     `gorm:"type:varchar(100);not null"                     json:"periodo_nombre"`
	Status        string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	VersionedModel

	// 关联
	Periodo *Periodo         `gorm:"foreignKey:PeriodoID;references:PeriodoID" json:"periodo,omitempty"`
	Filas   []CronogramaFila `gorm:"foreignKey:CronogramaID"                   json:"filas,omitempty"`
}

func (Cronograma) TableName() string { return "cronogramas" }

// CronogramaFila 排期明细行 — 对应 cronograma_filas
type CronogramaFila struct {
	FilaID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"fila_id"`
	CronogramaID string     `gorm:"type:uuid;not null"                             json:"cronograma_id"`
	Nro          int        `gorm:"type:smallint;not null"                         json:"nro"`
	Actividad    string     `gorm:"type:text;not null;default:''"                  json:"actividad"`
	Responsable  string     `gorm:"type:varchar(255);not null;default:''"          json:"responsable"`
	FechaInicio  *time.Time `json:"fecha_inicio,omitempty"`
	FechaFin     *time.Time `json:"fecha_fin,omitempty"`
	BaseModel
}

func (CronogramaFila) TableName() string { return "cronograma_filas" }
