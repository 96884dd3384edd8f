package repository

import (
	"time"
	"topiclearn_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	return &user, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

func (r *UserRepository) UpdateLastLogin(userID uint) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login", time.Now()).
		Error
}

// UpdateStreak 更新连续学习天数与历史最长记录
func (r *UserRepository) UpdateStreak(userID uint, current, longest int, activityAt time.Time) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"current_streak":   current,
			"longest_streak":   longest,
			"last_activity_at": activityAt,
		}).Error
}

func (r *UserRepository) AddPoints(userID uint, points int) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("total_points", gorm.Expr("total_points + ?", points)).
		Error
}

// FindWeeklyDigestEnabled 批量生成周报的目标用户
func (r *UserRepository) FindWeeklyDigestEnabled() ([]model.User, error) {
	var users []model.User
	err := r.DB.Where("weekly_digest_enabled = ?", true).Order("id ASC").Find(&users).Error
	return users, err
}
