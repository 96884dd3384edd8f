package repository

import (
	"time"
	"topiclearn_backend/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(session *model.LearningSession) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) FindByID(sessionID string) (*model.LearningSession, error) {
	var session model.LearningSession
	err := r.DB.Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Update(session *model.LearningSession) error {
	return r.DB.Save(session).Error
}

// CompleteWithScore 提交成绩：写入分数并标记完成时间
func (r *SessionRepository) CompleteWithScore(sessionID string, score int) error {
	now := time.Now()
	return r.DB.Model(&model.LearningSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"score":        score,
			"completed_at": now,
		}).Error
}

// SaveProgress 持久化进度检查点，不标记完成
func (r *SessionRepository) SaveProgress(sessionID, progressType string, index int, state string) error {
	return r.DB.Model(&model.LearningSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"progress_type":  progressType,
			"progress_index": index,
			"progress_state": state,
		}).Error
}

func (r *SessionRepository) FindByUserID(userID uint, limit int) ([]model.LearningSession, error) {
	var sessions []model.LearningSession
	q := r.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) SaveFlashcards(cards []model.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	return r.DB.Create(&cards).Error
}

func (r *SessionRepository) SaveMCQs(questions []model.MCQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Create(&questions).Error
}

func (r *SessionRepository) FindFlashcardsBySession(sessionID string) ([]model.Flashcard, error) {
	var cards []model.Flashcard
	err := r.DB.Where("session_id = ?", sessionID).Find(&cards).Error
	return cards, err
}

func (r *SessionRepository) FindMCQsBySession(sessionID string) ([]model.MCQuestion, error) {
	var questions []model.MCQuestion
	err := r.DB.Where("session_id = ?", sessionID).Find(&questions).Error
	return questions, err
}

// SessionWindowStats 时间窗口内的会话统计
type SessionWindowStats struct {
	Total     int
	Completed int
	AvgScore  *float64 // 窗口内无计分会话时为空
}

// StatsInWindow 统计用户在 [start, end] 内创建的会话
func (r *SessionRepository) StatsInWindow(userID uint, start, end time.Time) (*SessionWindowStats, error) {
	var row struct {
		Total     int
		Completed int
		AvgScore  *float64
	}
	err := r.DB.Model(&model.LearningSession{}).
		Select("COUNT(*) AS total, COUNT(completed_at) AS completed, AVG(score) AS avg_score").
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &SessionWindowStats{Total: row.Total, Completed: row.Completed, AvgScore: row.AvgScore}, nil
}

// TopCategoryInWindow 窗口内按会话数排名第一的分类。
// 平手时按分类名升序取第一，保证结果可复现。
func (r *SessionRepository) TopCategoryInWindow(userID uint, start, end time.Time) (*string, error) {
	var row struct {
		Name string
		Cnt  int
	}
	err := r.DB.Model(&model.LearningSession{}).
		Select("categories.name AS name, COUNT(*) AS cnt").
		Joins("INNER JOIN categories ON categories.id = learning_sessions.category_id").
		Where("learning_sessions.user_id = ? AND learning_sessions.created_at >= ? AND learning_sessions.created_at <= ?", userID, start, end).
		Group("categories.name").
		Order("cnt DESC, name ASC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Name == "" {
		return nil, nil
	}
	return &row.Name, nil
}

// TopPerformingTopicInWindow 窗口内计分会话中平均分最高的主题。
// 平手时按主题名升序取第一。
func (r *SessionRepository) TopPerformingTopicInWindow(userID uint, start, end time.Time) (*string, error) {
	var row struct {
		Topic    string
		AvgScore float64
	}
	err := r.DB.Model(&model.LearningSession{}).
		Select("topic, AVG(score) AS avg_score").
		Where("user_id = ? AND created_at >= ? AND created_at <= ? AND score IS NOT NULL", userID, start, end).
		Group("topic").
		Order("avg_score DESC, topic ASC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Topic == "" {
		return nil, nil
	}
	return &row.Topic, nil
}

// FlashcardCountInWindow 窗口内会话下的闪卡总数（用于时间估算）
func (r *SessionRepository) FlashcardCountInWindow(userID uint, start, end time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Flashcard{}).
		Joins("INNER JOIN learning_sessions ON learning_sessions.id = flashcards.session_id").
		Where("learning_sessions.user_id = ? AND learning_sessions.created_at >= ? AND learning_sessions.created_at <= ?", userID, start, end).
		Count(&count).Error
	return count, err
}

// MCQCountInWindow 窗口内会话下的选择题总数（用于时间估算）
func (r *SessionRepository) MCQCountInWindow(userID uint, start, end time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.MCQuestion{}).
		Joins("INNER JOIN learning_sessions ON learning_sessions.id = mcqs.session_id").
		Where("learning_sessions.user_id = ? AND learning_sessions.created_at >= ? AND learning_sessions.created_at <= ?", userID, start, end).
		Count(&count).Error
	return count, err
}

// RecentTopics 用户最近学过的主题，用于推荐去重
func (r *SessionRepository) RecentTopics(userID uint, limit int) ([]string, error) {
	var topics []string
	err := r.DB.Model(&model.LearningSession{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("topic", &topics).Error
	return topics, err
}
