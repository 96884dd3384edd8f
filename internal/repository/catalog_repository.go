package repository

import (
	"topiclearn_backend/internal/model"

	"gorm.io/gorm"
)

type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

// FindCategoryByTopicName 按主题名精确匹配目录，给新会话挂接分类
func (r *CatalogRepository) FindCategoryByTopicName(topicName string) (*uint, error) {
	var topic model.Topic
	err := r.DB.Where("name = ?", topicName).First(&topic).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &topic.CategoryID, nil
}

// PopularTopicsByCategory 指定分类下按热度降序的主题名（热度为0的不推荐）
func (r *CatalogRepository) PopularTopicsByCategory(categoryName string, limit int) ([]string, error) {
	var names []string
	err := r.DB.Model(&model.Topic{}).
		Joins("INNER JOIN categories ON categories.id = topics.category_id").
		Where("categories.name = ? AND topics.popularity > 0", categoryName).
		Order("topics.popularity DESC, topics.name ASC").
		Limit(limit).
		Pluck("topics.name", &names).Error
	return names, err
}

// CountPathProgress 用户是否已有学习路径进度记录
func (r *CatalogRepository) CountPathProgress(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.PathProgress{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
