package repository

import (
	"context"

	"Praetorius/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkRepository 作品目录数据访问接口
type WorkRepository interface {
	// 作品 CRUD
	Create(ctx context.Context, work *model.Work) error
	GetByID(ctx context.Context, id int64) (*model.Work, error)
	GetBySlug(ctx context.Context, slug string) (*model.Work, error)
	List(ctx context.Context) ([]*model.Work, error)
	Update(ctx context.Context, work *model.Work) error
	Delete(ctx context.Context, id int64) error

	// ReplaceAll 用导入的作品集整体替换目录（feed导入用）
	ReplaceAll(ctx context.Context, works []*model.Work) error
}

// gormWorkRepository GORM 实现
type gormWorkRepository struct {
	db *gorm.DB
}

// NewGormWorkRepository 创建 GORM 作品仓库
func NewGormWorkRepository(db *gorm.DB) WorkRepository {
	return &gormWorkRepository{db: db}
}

// Create 创建作品
func (r *gormWorkRepository) Create(ctx context.Context, work *model.Work) error {
	return r.db.WithContext(ctx).Create(work).Error
}

// GetByID 根据ID获取作品
func (r *gormWorkRepository) GetByID(ctx context.Context, id int64) (*model.Work, error) {
	var work model.Work
	err := r.db.WithContext(ctx).
		Where("id = ? AND state = ?", id, 1).
		First(&work).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &work, nil
}

// GetBySlug 根据slug获取作品
func (r *gormWorkRepository) GetBySlug(ctx context.Context, slug string) (*model.Work, error) {
	var work model.Work
	err := r.db.WithContext(ctx).
		Where("slug = ? AND state = ?", slug, 1).
		First(&work).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &work, nil
}

// List 获取全部在线作品，按标题排序与控制台展示顺序一致
func (r *gormWorkRepository) List(ctx context.Context) ([]*model.Work, error) {
	var works []*model.Work
	err := r.db.WithContext(ctx).
		Where("state = ?", 1).
		Order("LOWER(title), LOWER(slug)").
		Find(&works).Error
	if err != nil {
		return nil, err
	}
	return works, nil
}

// Update 更新作品
func (r *gormWorkRepository) Update(ctx context.Context, work *model.Work) error {
	return r.db.WithContext(ctx).Save(work).Error
}

// Delete 删除作品（软删除，state置0）
func (r *gormWorkRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.Work{}).
		Where("id = ?", id).
		Update("state", 0).Error
}

// ReplaceAll 在一个事务里按slug逐条upsert，并下线不在导入集中的作品
func (r *gormWorkRepository) ReplaceAll(ctx context.Context, works []*model.Work) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slugs := make([]string, 0, len(works))
		for _, work := range works {
			work.State = 1
			slugs = append(slugs, work.Slug)
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "audio_url", "pdf_url", "year", "duration", "medium",
					"tags", "open_note", "oneliner", "description", "start_at", "cues", "state",
				}),
			}).Create(work).Error
			if err != nil {
				return err
			}
		}

		// 不在本次导入中的作品下线而不是物理删除
		q := tx.Model(&model.Work{}).Where("state = ?", 1)
		if len(slugs) > 0 {
			q = q.Where("slug NOT IN ?", slugs)
		}
		return q.Update("state", 0).Error
	})
}
