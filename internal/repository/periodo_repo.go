package repository

import (
	"context"

	"gorm.io/gorm"

	"titulacion/backend/internal/model"
)

// PeriodoRepository 周期数据访问接口
type PeriodoRepository interface {
	GetByID(ctx context.Context, id int) (*model.Periodo, error)
	GetActive(ctx context.Context) (*model.Periodo, error)
	List(ctx context.Context) ([]model.Periodo, error)
	// Activate 在同一事务内清除旧活动周期并激活指定周期
	Activate(ctx context.Context, id int) error
}

type periodoRepo struct {
	db *gorm.DB
}

// NewPeriodoRepo 创建 PeriodoRepository 实例
func NewPeriodoRepo(db *gorm.DB) PeriodoRepository {
	return &periodoRepo{db: db}
}

func (r *periodoRepo) GetByID(ctx context.Context, id int) (*model.Periodo, error) {
	var periodo model.Periodo
	err := r.db.WithContext(ctx).
		Where("periodo_id = ?", id).
		First(&periodo).Error
	if err != nil {
		return nil, err
	}
	return &periodo, nil
}

func (r *periodoRepo) GetActive(ctx context.Context) (*model.Periodo, error) {
	var periodo model.Periodo
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		First(&periodo).Error
	if err != nil {
		return nil, err
	}
	return &periodo, nil
}

func (r *periodoRepo) List(ctx context.Context) ([]model.Periodo, error) {
	var periodos []model.Periodo
	err := r.db.WithContext(ctx).
		Order("periodo_id DESC").
		Find(&periodos).Error
	return periodos, err
}

func (r *periodoRepo) Activate(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Periodo{}).
			Where("is_active = ?", true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": gorm.Expr("NOW()")}).Error; err != nil {
			return err
		}
		result := tx.Model(&model.Periodo{}).
			Where("periodo_id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "updated_at": gorm.Expr("NOW()")})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
