package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/util"
	"topiclearn_backend/pkg/logger"
	"topiclearn_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DigestService 每周学习摘要的计算与批量生成
type DigestService struct {
	SessionRepo *repository.SessionRepository
	DigestRepo  *repository.DigestRepository
	UserRepo    *repository.UserRepository
	CatalogRepo *repository.CatalogRepository
	Generator   TextGenerator // 为空时跳过AI洞察
	Redis       *redis.Client // 为空时批量生成不加锁
}

func NewDigestService(
	sessionRepo *repository.SessionRepository,
	digestRepo *repository.DigestRepository,
	userRepo *repository.UserRepository,
	catalogRepo *repository.CatalogRepository,
	generator TextGenerator,
	rdb *redis.Client,
) *DigestService {
	return &DigestService{
		SessionRepo: sessionRepo,
		DigestRepo:  digestRepo,
		UserRepo:    userRepo,
		CatalogRepo: catalogRepo,
		Generator:   generator,
		Redis:       rdb,
	}
}

// learningStats 单用户单周的聚合统计
type learningStats struct {
	TotalSessions      int
	CompletedSessions  int
	AvgScore           *float64
	TopCategory        *string
	TopPerformingTopic *string
	ImprovementAreas   *string
	Streak             int
	PointsEarned       int
	TimeSpentMinutes   int
}

// WeekWindow 返回包含 t 的周一 00:00 到周日 23:59:59 的窗口
func WeekWindow(t time.Time) (time.Time, time.Time) {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // 周日归入上周一开始的那一周
	}
	year, month, day := t.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, -(weekday - 1))
	end := start.AddDate(0, 0, 7).Add(-time.Second)
	return start, end
}

// ComputeWeeklyDigest 计算并持久化一份周报。
// 已存在窗口重叠的周报时返回 util.ErrDigestExists，不重复写入。
func (s *DigestService) ComputeWeeklyDigest(ctx context.Context, userID uint, weekStart, weekEnd time.Time) (*model.LearningDigest, error) {
	existing, err := s.DigestRepo.FindOverlapping(userID, weekStart, weekEnd)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if existing != nil {
		return nil, util.ErrDigestExists
	}

	stats, err := s.collectStats(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	insights := s.baselineInsights(stats)
	insights = append(insights, s.aiInsights(ctx, userID, stats)...)

	recommendations, err := s.buildRecommendations(userID, stats)
	if err != nil {
		return nil, err
	}

	digest := &model.LearningDigest{
		UserID:                userID,
		WeekStartDate:         weekStart,
		WeekEndDate:           weekEnd,
		TotalSessions:         stats.TotalSessions,
		CompletedSessions:     stats.CompletedSessions,
		AverageScore:          stats.AvgScore,
		TotalTimeSpentMinutes: stats.TimeSpentMinutes,
		TopCategory:           stats.TopCategory,
		TopPerformingTopic:    stats.TopPerformingTopic,
		ImprovementAreas:      stats.ImprovementAreas,
		Streak:                stats.Streak,
		PointsEarned:          stats.PointsEarned,
	}
	if err := digest.SetInsights(insights); err != nil {
		return nil, err
	}
	if err := digest.SetRecommendations(recommendations); err != nil {
		return nil, err
	}

	if err := s.DigestRepo.Create(digest); err != nil {
		return nil, err
	}
	return digest, nil
}

func (s *DigestService) collectStats(userID uint, weekStart, weekEnd time.Time) (*learningStats, error) {
	windowStats, err := s.SessionRepo.StatsInWindow(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	topCategory, err := s.SessionRepo.TopCategoryInWindow(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	topTopic, err := s.SessionRepo.TopPerformingTopicInWindow(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	flashcardCount, err := s.SessionRepo.FlashcardCountInWindow(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	mcqCount, err := s.SessionRepo.MCQCountInWindow(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	// 固定单件成本估算：闪卡1分钟，选择题2分钟
	timeSpent := int(flashcardCount)*1 + int(mcqCount)*2

	var improvementAreas *string
	if windowStats.AvgScore != nil && *windowStats.AvgScore < 70 {
		msg := "Focus on reviewing flashcards more thoroughly before taking quizzes"
		improvementAreas = &msg
	}

	scoreValue := 0.0
	if windowStats.AvgScore != nil {
		scoreValue = *windowStats.AvgScore
	}
	pointsEarned := int(math.Floor(float64(windowStats.Completed)*10 + scoreValue))

	return &learningStats{
		TotalSessions:      windowStats.Total,
		CompletedSessions:  windowStats.Completed,
		AvgScore:           windowStats.AvgScore,
		TopCategory:        topCategory,
		TopPerformingTopic: topTopic,
		ImprovementAreas:   improvementAreas,
		Streak:             user.CurrentStreak,
		PointsEarned:       pointsEarned,
		TimeSpentMinutes:   timeSpent,
	}, nil
}

// baselineInsights 固定模板的基础洞察，前置条件成立时总是生成
func (s *DigestService) baselineInsights(stats *learningStats) []model.DigestInsight {
	var insights []model.DigestInsight

	if stats.TotalSessions > 0 {
		insights = append(insights, model.DigestInsight{
			Type:        "activity",
			Title:       "Activity Summary",
			Description: fmt.Sprintf("You completed %d out of %d learning sessions this week.", stats.CompletedSessions, stats.TotalSessions),
		})
	}

	if stats.AvgScore != nil {
		rounded := int(math.Round(*stats.AvgScore))
		var remark string
		switch {
		case *stats.AvgScore >= 80:
			remark = "Great job!"
		case *stats.AvgScore >= 60:
			remark = "Keep practicing to improve."
		default:
			remark = "More review might help boost your scores."
		}
		insights = append(insights, model.DigestInsight{
			Type:        "performance",
			Title:       "Performance Overview",
			Description: fmt.Sprintf("Your average quiz score was %d%%. %s", rounded, remark),
		})
	}

	if stats.Streak > 0 {
		insights = append(insights, model.DigestInsight{
			Type:        "streak",
			Title:       "Learning Streak",
			Description: fmt.Sprintf("You're on a %d day learning streak. Keep it going!", stats.Streak),
		})
	}

	if stats.TimeSpentMinutes > 0 {
		insights = append(insights, model.DigestInsight{
			Type:        "timeSpent",
			Title:       "Time Investment",
			Description: fmt.Sprintf("You've invested about %d minutes learning this week.", stats.TimeSpentMinutes),
		})
	}

	return insights
}

const insightsPromptTemplate = `
Based on the following user learning data, generate 1-2 insightful observations about their learning patterns,
progress, or potential areas for growth. Keep each insight concise (under 100 words) and actionable.

User learning stats:
- Completed %d out of %d learning sessions
- Average quiz score: %s
- Current learning streak: %d days
- Top category: %s
- Top performing topic: %s
- Recent topics studied: %s
- Time spent learning: %d minutes

Return the response as a JSON array with objects in this format:
[
  {
    "type": "insight_type",
    "title": "Short Insight Title",
    "description": "Detailed insight (1-2 sentences)"
  }
]`

// aiInsights 追加1-2条AI生成的洞察。失败或返回不合法时静默跳过，不补样例。
func (s *DigestService) aiInsights(ctx context.Context, userID uint, stats *learningStats) []model.DigestInsight {
	if s.Generator == nil || stats.TotalSessions == 0 {
		return nil
	}

	recentTopics, err := s.SessionRepo.RecentTopics(userID, 5)
	if err != nil {
		logger.Log.Debug("recent topics lookup failed", zap.Error(err))
		return nil
	}

	avgScoreText := "No quizzes completed"
	if stats.AvgScore != nil {
		avgScoreText = fmt.Sprintf("%d%%", int(math.Round(*stats.AvgScore)))
	}

	prompt := fmt.Sprintf(insightsPromptTemplate,
		stats.CompletedSessions, stats.TotalSessions,
		avgScoreText,
		stats.Streak,
		orNone(stats.TopCategory),
		orNone(stats.TopPerformingTopic),
		strings.Join(recentTopics, ", "),
		stats.TimeSpentMinutes,
	)

	raw, err := s.Generator.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Debug("AI insights generation failed", zap.Uint("userId", userID), zap.Error(err))
		return nil
	}

	// 兼容裸数组和 {"insights": [...]} 两种返回形态
	var insights []model.DigestInsight
	if err := json.Unmarshal([]byte(raw), &insights); err == nil {
		return insights
	}
	var wrapped struct {
		Insights []model.DigestInsight `json:"insights"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		return wrapped.Insights
	}

	logger.Log.Debug("AI insights response was not valid JSON", zap.Uint("userId", userID))
	return nil
}

func orNone(s *string) string {
	if s == nil {
		return "None"
	}
	return *s
}

var defaultRecommendations = []string{
	"Schedule regular review sessions to reinforce what you've learned",
	"Try explaining topics you've studied to someone else to solidify understanding",
	"Set specific learning goals for next week to stay motivated",
	"Explore related topics to build a more comprehensive understanding",
}

// buildRecommendations 组装推荐列表：热门分类下未学过的主题，
// 高分用户追加进阶建议，无路径进度追加路径建议，不足时用通用文案补齐到5条。
func (s *DigestService) buildRecommendations(userID uint, stats *learningStats) ([]string, error) {
	recentTopics, err := s.SessionRepo.RecentTopics(userID, 10)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(recentTopics))
	for _, t := range recentTopics {
		seen[t] = true
	}

	var recommendations []string

	if stats.TopCategory != nil {
		candidates, err := s.CatalogRepo.PopularTopicsByCategory(*stats.TopCategory, 5)
		if err != nil {
			return nil, err
		}
		for _, name := range candidates {
			if !seen[name] {
				recommendations = append(recommendations, name)
			}
		}
	}

	if len(recentTopics) > 0 && stats.AvgScore != nil && *stats.AvgScore > 75 {
		recommendations = append(recommendations, "Try advancing to more challenging topics to maximize your learning")
	}

	pathCount, err := s.CatalogRepo.CountPathProgress(userID)
	if err != nil {
		return nil, err
	}
	if pathCount == 0 {
		recommendations = append(recommendations, "Explore structured learning paths to build skills systematically")
	}

	if len(recommendations) < 3 {
		for _, rec := range defaultRecommendations {
			if len(recommendations) >= 5 {
				break
			}
			recommendations = append(recommendations, rec)
		}
	}

	return recommendations, nil
}

// BatchResult 一次批量生成的汇总
type BatchResult struct {
	Users   int `json:"users"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

const batchLockKey = "digest:batch:lock"

// GenerateWeeklyDigests 为所有开启周报偏好的用户生成本周周报。
// 单个用户失败只记录日志，不中断批次。Redis锁防止并发批次重复写入。
func (s *DigestService) GenerateWeeklyDigests(ctx context.Context) (*BatchResult, error) {
	if s.Redis != nil {
		ok, err := s.Redis.SetNX(ctx, batchLockKey, time.Now().Unix(), 10*time.Minute).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, util.ErrBatchRunning
		}
		defer s.Redis.Del(ctx, batchLockKey)
	}

	users, err := s.UserRepo.FindWeeklyDigestEnabled()
	if err != nil {
		return nil, err
	}

	weekStart, weekEnd := WeekWindow(time.Now())
	logger.Log.Info("Generating weekly digests",
		zap.Int("users", len(users)),
		zap.Time("weekStart", weekStart))

	result := &BatchResult{Users: len(users)}
	for _, user := range users {
		_, err := s.ComputeWeeklyDigest(ctx, user.ID, weekStart, weekEnd)
		switch {
		case err == util.ErrDigestExists:
			result.Skipped++
			monitoring.DigestCounter.WithLabelValues("skipped").Inc()
		case err != nil:
			result.Failed++
			monitoring.DigestCounter.WithLabelValues("failed").Inc()
			logger.Log.Error("digest generation failed for user",
				zap.Uint("userId", user.ID), zap.Error(err))
		default:
			result.Created++
			monitoring.DigestCounter.WithLabelValues("created").Inc()
		}
	}

	return result, nil
}

// LatestDigest 用户最近一期周报
func (s *DigestService) LatestDigest(userID uint) (*model.LearningDigest, error) {
	digest, err := s.DigestRepo.FindLatest(userID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrDigestNotFound
	}
	return digest, err
}

// DigestForWeek 指定周起始日的周报
func (s *DigestService) DigestForWeek(userID uint, weekStart time.Time) (*model.LearningDigest, error) {
	digest, err := s.DigestRepo.FindByWeek(userID, weekStart)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrDigestNotFound
	}
	return digest, err
}

func (s *DigestService) UserDigests(userID uint) ([]model.LearningDigest, error) {
	return s.DigestRepo.FindAllByUser(userID)
}

func (s *DigestService) MarkOpened(digestID, userID uint) error {
	return s.DigestRepo.MarkOpened(digestID, userID)
}
