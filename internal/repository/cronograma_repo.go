package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"titulacion/backend/internal/model"
	pkgerrors "titulacion/backend/pkg/errors"
)

// CronogramaRepository 排期数据访问接口
type CronogramaRepository interface {
	// GetByPeriodo 按 (modalidad, periodo_id) 查询，含按 nro 排序的明细行
	GetByPeriodo(ctx context.Context, modalidad string, periodoID int) (*model.Cronograma, error)
	// SavePublished 新建或整体替换排期（表头 + 全部明细行）
	SavePublished(ctx context.Context, cronograma *model.Cronograma) error
}

type cronogramaRepo struct {
	db *gorm.DB
}

// NewCronogramaRepo 创建 CronogramaRepository 实例
func NewCronogramaRepo(db *gorm.DB) CronogramaRepository {
	return &cronogramaRepo{db: db}
}

func (r *cronogramaRepo) GetByPeriodo(ctx context.Context, modalidad string, periodoID int) (*model.Cronograma, error) {
	var cronograma model.Cronograma
	err := r.db.WithContext(ctx).
		Preload("Filas", func(db *gorm.DB) *gorm.DB {
			return db.Order("nro ASC")
		}).
		Where("modalidad = ? AND periodo_id = ?", modalidad, periodoID).
		First(&cronograma).Error
	if err != nil {
		return nil, err
	}
	return &cronograma, nil
}

func (r *cronogramaRepo) SavePublished(ctx context.Context, cronograma *model.Cronograma) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Cronograma
		err := tx.Where("modalidad = ? AND periodo_id = ?", cronograma.Modalidad, cronograma.PeriodoID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			filas := cronograma.Filas
			cronograma.Filas = nil
			if err := tx.Create(cronograma).Error; err != nil {
				return err
			}
			cronograma.Filas = filas
		case err != nil:
			return err
		default:
			// 乐观锁：以读到的版本为准，整体替换
			result := tx.Model(&model.Cronograma{}).
				Where("cronograma_id = ? AND version = ?", existing.CronogramaID, existing.Version).
				Updates(map[string]interface{}{
					"titulo":         cronograma.Titulo,
					"proyecto":       cronograma.Proyecto,
					"periodo_nombre": cronograma.PeriodoNombre,
					"status":         cronograma.Status,
					"published_at":   cronograma.PublishedAt,
					"version":        existing.Version + 1,
					"updated_at":     gorm.Expr("NOW()"),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return pkgerrors.ErrOptimisticLock
			}
			cronograma.CronogramaID = existing.CronogramaID
			cronograma.Version = existing.Version + 1

			if err := tx.Where("cronograma_id = ?", existing.CronogramaID).
				Delete(&model.CronogramaFila{}).Error; err != nil {
				return err
			}
		}

		if len(cronograma.Filas) == 0 {
			return nil
		}
		for i := range cronograma.Filas {
			cronograma.Filas[i].CronogramaID = cronograma.CronogramaID
		}
		return tx.Create(&cronograma.Filas).Error
	})
}
