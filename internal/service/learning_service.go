package service

import (
	"context"
	"time"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/util"
	"topiclearn_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LearningService 学习会话的创建、查询、进度保存与成绩提交
type LearningService struct {
	SessionRepo *repository.SessionRepository
	CatalogRepo *repository.CatalogRepository
	UserRepo    *repository.UserRepository
	Generator   *GeneratorService
}

func NewLearningService(
	sessionRepo *repository.SessionRepository,
	catalogRepo *repository.CatalogRepository,
	userRepo *repository.UserRepository,
	generator *GeneratorService,
) *LearningService {
	return &LearningService{
		SessionRepo: sessionRepo,
		CatalogRepo: catalogRepo,
		UserRepo:    userRepo,
		Generator:   generator,
	}
}

// GenerateSession 为主题生成学习内容并落库，返回生成内容与会话ID。
// userID 为空表示匿名会话。
func (s *LearningService) GenerateSession(ctx context.Context, userID *uint, topic string) (*GeneratedContent, string, error) {
	content := s.Generator.GenerateContent(ctx, topic)

	session := &model.LearningSession{
		UserID:          userID,
		Topic:           topic,
		UsingSampleData: content.UsingSampleData,
	}

	// 主题命中目录时挂接分类，供周报的热门分类统计使用
	categoryID, err := s.CatalogRepo.FindCategoryByTopicName(topic)
	if err != nil {
		logger.Log.Warn("category lookup failed", zap.String("topic", topic), zap.Error(err))
	} else {
		session.CategoryID = categoryID
	}

	if err := s.SessionRepo.Create(session); err != nil {
		return nil, "", err
	}

	flashcards := make([]model.Flashcard, 0, len(content.Flashcards))
	for _, card := range content.Flashcards {
		flashcards = append(flashcards, model.Flashcard{
			UUIDBase:  model.UUIDBase{ID: card.ID},
			SessionID: session.ID,
			Title:     card.Title,
			Content:   card.Content,
		})
	}

	questions := make([]model.MCQuestion, 0, len(content.MCQs))
	for _, q := range content.MCQs {
		question := model.MCQuestion{
			UUIDBase:      model.UUIDBase{ID: q.ID},
			SessionID:     session.ID,
			Question:      q.Question,
			CorrectAnswer: q.CorrectAnswer,
		}
		if err := question.SetOptions(q.Options); err != nil {
			return nil, "", err
		}
		questions = append(questions, question)
	}

	if err := s.SessionRepo.SaveFlashcards(flashcards); err != nil {
		return nil, "", err
	}
	if err := s.SessionRepo.SaveMCQs(questions); err != nil {
		return nil, "", err
	}

	return content, session.ID, nil
}

// SessionDetail 会话及其全部内容
type SessionDetail struct {
	Session    *model.LearningSession `json:"session"`
	Flashcards []model.Flashcard      `json:"flashcards"`
	MCQs       []GeneratedMCQ         `json:"mcqs"`
}

// GetSession 查询会话详情。有属主的会话只允许属主访问。
func (s *LearningService) GetSession(sessionID string, requesterID *uint) (*SessionDetail, error) {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if session.UserID != nil && (requesterID == nil || *requesterID != *session.UserID) {
		return nil, util.ErrPermissionDenied
	}

	flashcards, err := s.SessionRepo.FindFlashcardsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	stored, err := s.SessionRepo.FindMCQsBySession(sessionID)
	if err != nil {
		return nil, err
	}

	mcqs := make([]GeneratedMCQ, 0, len(stored))
	for _, q := range stored {
		options, err := q.OptionList()
		if err != nil {
			return nil, err
		}
		mcqs = append(mcqs, GeneratedMCQ{
			ID:            q.ID,
			Question:      q.Question,
			Options:       options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}

	return &SessionDetail{Session: session, Flashcards: flashcards, MCQs: mcqs}, nil
}

func (s *LearningService) History(userID uint) ([]model.LearningSession, error) {
	return s.SessionRepo.FindByUserID(userID, 0)
}

// SaveProgress 保存进度检查点（保存稍后继续），不标记会话完成
func (s *LearningService) SaveProgress(sessionID, progressType string, index int, answers []string, timeRemaining int, requesterID *uint) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err == gorm.ErrRecordNotFound {
		return util.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if session.UserID != nil && (requesterID == nil || *requesterID != *session.UserID) {
		return util.ErrPermissionDenied
	}

	state := ""
	if progressType == model.ProgressTypeMCQ {
		cp := &model.ProgressCheckpoint{Answers: answers, TimeRemaining: timeRemaining}
		if err := session.SetCheckpoint(cp); err != nil {
			return err
		}
		state = session.ProgressState
	}

	return s.SessionRepo.SaveProgress(sessionID, progressType, index, state)
}

// CompleteSession 写入成绩并维护用户的连续学习天数和积分
func (s *LearningService) CompleteSession(sessionID string, score int, requesterID *uint) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err == gorm.ErrRecordNotFound {
		return util.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if session.UserID != nil && (requesterID == nil || *requesterID != *session.UserID) {
		return util.ErrPermissionDenied
	}

	if err := s.SessionRepo.CompleteWithScore(sessionID, score); err != nil {
		return err
	}

	if session.UserID != nil {
		if err := s.updateStreak(*session.UserID); err != nil {
			// 连续天数维护失败不影响成绩提交
			logger.Log.Warn("streak update failed", zap.Uint("userId", *session.UserID), zap.Error(err))
		}
		if err := s.UserRepo.AddPoints(*session.UserID, score/10); err != nil {
			logger.Log.Warn("points update failed", zap.Uint("userId", *session.UserID), zap.Error(err))
		}
	}

	return nil
}

// localDay 按本地时区取日历日零点，天数比较不跨UTC日界
func localDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// updateStreak 连续天数规则：昨天有活动则+1，今天已记录则不变，否则重置为1
func (s *LearningService) updateStreak(userID uint) error {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return err
	}

	now := time.Now()
	today := localDay(now)

	current := 1
	if user.LastActivityAt != nil {
		lastDay := localDay(*user.LastActivityAt)
		switch {
		case lastDay.Equal(today) && user.CurrentStreak > 0:
			current = user.CurrentStreak // 今天已计入
		case lastDay.Equal(today.AddDate(0, 0, -1)):
			current = user.CurrentStreak + 1
		}
	}

	longest := user.LongestStreak
	if current > longest {
		longest = current
	}

	return s.UserRepo.UpdateStreak(userID, current, longest, now)
}
