package repository

import (
	"time"
	"topiclearn_backend/internal/model"

	"gorm.io/gorm"
)

type DigestRepository struct {
	DB *gorm.DB
}

func NewDigestRepository(db *gorm.DB) *DigestRepository {
	return &DigestRepository{DB: db}
}

func (r *DigestRepository) Create(digest *model.LearningDigest) error {
	return r.DB.Create(digest).Error
}

// FindOverlapping 查找窗口与 [start, end] 重叠的已有周报，用于去重预检查
func (r *DigestRepository) FindOverlapping(userID uint, start, end time.Time) (*model.LearningDigest, error) {
	var digest model.LearningDigest
	err := r.DB.Where("user_id = ? AND week_start_date <= ? AND week_end_date >= ?", userID, end, start).
		First(&digest).Error
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

func (r *DigestRepository) FindLatest(userID uint) (*model.LearningDigest, error) {
	var digest model.LearningDigest
	err := r.DB.Where("user_id = ?", userID).
		Order("week_end_date DESC").
		First(&digest).Error
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

// FindByWeek 查找周起始日落在 [weekStart, weekStart+6d] 内的周报
func (r *DigestRepository) FindByWeek(userID uint, weekStart time.Time) (*model.LearningDigest, error) {
	weekEnd := weekStart.AddDate(0, 0, 6)
	var digest model.LearningDigest
	err := r.DB.Where("user_id = ? AND week_start_date >= ? AND week_end_date <= ?", userID, weekStart, weekEnd.Add(24*time.Hour)).
		First(&digest).Error
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

func (r *DigestRepository) FindAllByUser(userID uint) ([]model.LearningDigest, error) {
	var digests []model.LearningDigest
	err := r.DB.Where("user_id = ?", userID).
		Order("week_end_date DESC").
		Find(&digests).Error
	return digests, err
}

// MarkOpened 记录用户首次打开周报的时间，重复打开不覆盖
func (r *DigestRepository) MarkOpened(digestID, userID uint) error {
	return r.DB.Model(&model.LearningDigest{}).
		Where("id = ? AND user_id = ? AND opened_at IS NULL", digestID, userID).
		Update("opened_at", time.Now()).
		Error
}
