package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-demand/internal/model/entity"
	"gorm.io/gorm"
)

// DemandRepository 需求仓库
type DemandRepository struct {
	db *gorm.DB
}

// NewDemandRepository 创建需求仓库
func NewDemandRepository(db *gorm.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

// List 获取需求列表，按创建时间倒序
func (r *DemandRepository) List(ctx context.Context) ([]entity.Demand, error) {
	var demands []entity.Demand
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&demands).Error
	return demands, err
}

// FindByID 根据ID查找需求
func (r *DemandRepository) FindByID(ctx context.Context, id uint) (*entity.Demand, error) {
	var demand entity.Demand
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&demand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &demand, nil
}

// FindBySKU 根据SKU查找需求
func (r *DemandRepository) FindBySKU(ctx context.Context, sku string) (*entity.Demand, error) {
	var demand entity.Demand
	err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&demand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &demand, nil
}

// Create 创建需求，ID与时间戳由存储层分配
// SKU唯一索引由数据库兜底
func (r *DemandRepository) Create(ctx context.Context, demand *entity.Demand) error {
	err := r.db.WithContext(ctx).Create(demand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSKU
		}
		return err
	}
	return nil
}

// Update 保存完整需求记录，updated_at 由gorm刷新
// 记录不存在时返回 ErrNotFound，不会退化为插入
func (r *DemandRepository) Update(ctx context.Context, demand *entity.Demand) error {
	res := r.db.WithContext(ctx).
		Model(demand).
		Select("*").
		Omit("id", "created_at").
		Updates(demand)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSKU
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 硬删除需求，记录不存在时返回 ErrNotFound
func (r *DemandRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&entity.Demand{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
