package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Periodo    PeriodoRepository
	Cronograma CronogramaRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Periodo:    NewPeriodoRepo(db),
		Cronograma: NewCronogramaRepo(db),
	}
}
