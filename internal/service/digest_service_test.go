package service

import (
	"context"
	"testing"
	"time"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/util"
	"topiclearn_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newDigestService(t *testing.T, db *gorm.DB, generator TextGenerator) *DigestService {
	t.Helper()
	return NewDigestService(
		repository.NewSessionRepository(db),
		repository.NewDigestRepository(db),
		repository.NewUserRepository(db),
		repository.NewCatalogRepository(db),
		generator,
		nil,
	)
}

func createUser(t *testing.T, db *gorm.DB, username string, streak int) *model.User {
	t.Helper()
	user := &model.User{
		Username:            username,
		Password:            "hashed",
		Role:                model.Student,
		WeeklyDigestEnabled: true,
		CurrentStreak:       streak,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createCategory(t *testing.T, db *gorm.DB, name string) *model.Category {
	t.Helper()
	category := &model.Category{Name: name}
	require.NoError(t, db.Create(category).Error)
	return category
}

func createTopic(t *testing.T, db *gorm.DB, name string, categoryID uint, popularity int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Topic{Name: name, CategoryID: categoryID, Popularity: popularity}).Error)
}

func createSession(t *testing.T, db *gorm.DB, userID uint, topic string, categoryID *uint, score *int, createdAt time.Time) *model.LearningSession {
	t.Helper()
	session := &model.LearningSession{
		UserID:     &userID,
		Topic:      topic,
		CategoryID: categoryID,
	}
	session.CreatedAt = createdAt
	if score != nil {
		session.Score = score
		completedAt := createdAt.Add(20 * time.Minute)
		session.CompletedAt = &completedAt
	}
	require.NoError(t, db.Create(session).Error)
	return session
}

func attachContent(t *testing.T, db *gorm.DB, sessionID string, flashcards, mcqs int) {
	t.Helper()
	for i := 0; i < flashcards; i++ {
		card := &model.Flashcard{SessionID: sessionID, Title: "card", Content: "<p>body</p>"}
		require.NoError(t, db.Create(card).Error)
	}
	for i := 0; i < mcqs; i++ {
		q := &model.MCQuestion{SessionID: sessionID, Question: "q?", CorrectAnswer: "A"}
		require.NoError(t, q.SetOptions([]string{"a", "b", "c", "d"}))
		require.NoError(t, db.Create(q).Error)
	}
}

func intPtr(v int) *int { return &v }

func TestWeekWindow(t *testing.T) {
	// 周三归入本周一开始的窗口
	start, end := WeekWindow(time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 8, 23, 59, 59, 0, time.UTC), end)

	// 周一当天是窗口起点
	start, _ = WeekWindow(time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), start)

	// 周日归入已开始的那一周，不开新窗口
	start, end = WeekWindow(time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 8, 23, 59, 59, 0, time.UTC), end)
}

func TestComputeWeeklyDigest(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)

	user := createUser(t, db, "alice", 3)
	programming := createCategory(t, db, "Programming")
	science := createCategory(t, db, "Science")

	createTopic(t, db, "Go", programming.ID, 10)
	createTopic(t, db, "Python", programming.ID, 8)
	createTopic(t, db, "JavaScript", programming.ID, 6)
	createTopic(t, db, "Chemistry", science.ID, 5)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	inWeek := weekStart.Add(26 * time.Hour)

	// 3次会话：2次完成（80、60分），1次未完成；窗口外的会话不计入
	s1 := createSession(t, db, user.ID, "Go", &programming.ID, intPtr(80), inWeek)
	s2 := createSession(t, db, user.ID, "Rust", &programming.ID, intPtr(60), inWeek.Add(time.Hour))
	createSession(t, db, user.ID, "Chemistry", &science.ID, nil, inWeek.Add(2*time.Hour))
	createSession(t, db, user.ID, "History", nil, intPtr(100), weekStart.Add(-48*time.Hour))

	attachContent(t, db, s1.ID, 5, 5)
	attachContent(t, db, s2.ID, 5, 5)

	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	assert.Equal(t, 3, digest.TotalSessions)
	assert.Equal(t, 2, digest.CompletedSessions)
	require.NotNil(t, digest.AverageScore)
	assert.InDelta(t, 70.0, *digest.AverageScore, 0.001)

	// 积分 = floor(完成数*10 + 平均分)
	assert.Equal(t, 90, digest.PointsEarned)

	// 时间估算：闪卡1分钟/张，选择题2分钟/道
	assert.Equal(t, 30, digest.TotalTimeSpentMinutes)

	require.NotNil(t, digest.TopCategory)
	assert.Equal(t, "Programming", *digest.TopCategory)
	require.NotNil(t, digest.TopPerformingTopic)
	assert.Equal(t, "Go", *digest.TopPerformingTopic)

	assert.Equal(t, 3, digest.Streak)
	assert.Nil(t, digest.ImprovementAreas) // 平均分未低于70

	insights, err := digest.InsightList()
	require.NoError(t, err)
	require.Len(t, insights, 4)
	assert.Equal(t, "activity", insights[0].Type)
	assert.Equal(t, "You completed 2 out of 3 learning sessions this week.", insights[0].Description)
	assert.Equal(t, "performance", insights[1].Type)
	assert.Equal(t, "Your average quiz score was 70%. Keep practicing to improve.", insights[1].Description)
	assert.Equal(t, "streak", insights[2].Type)
	assert.Equal(t, "You're on a 3 day learning streak. Keep it going!", insights[2].Description)
	assert.Equal(t, "timeSpent", insights[3].Type)
	assert.Equal(t, "You've invested about 30 minutes learning this week.", insights[3].Description)

	// 推荐：热门分类下没学过的主题 + 路径建议；学过的 Go 被去重
	recs, err := digest.RecommendationList()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Python",
		"JavaScript",
		"Explore structured learning paths to build skills systematically",
	}, recs)
}

func TestComputeWeeklyDigestRejectsOverlap(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)
	user := createUser(t, db, "bob", 0)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))

	_, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	_, err = svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	assert.ErrorIs(t, err, util.ErrDigestExists)

	// 部分重叠的窗口同样拒绝
	_, err = svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart.AddDate(0, 0, 3), weekEnd.AddDate(0, 0, 3))
	assert.ErrorIs(t, err, util.ErrDigestExists)

	// 相邻的下一周不受影响
	_, err = svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart.AddDate(0, 0, 7), weekEnd.AddDate(0, 0, 7))
	assert.NoError(t, err)
}

func TestComputeWeeklyDigestEmptyWeek(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)
	user := createUser(t, db, "carol", 0)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	assert.Equal(t, 0, digest.TotalSessions)
	assert.Equal(t, 0, digest.CompletedSessions)
	assert.Nil(t, digest.AverageScore)
	assert.Nil(t, digest.TopCategory)
	assert.Equal(t, 0, digest.PointsEarned)

	insights, err := digest.InsightList()
	require.NoError(t, err)
	assert.Empty(t, insights)

	// 无个性化素材时用通用建议补齐到5条
	recs, err := digest.RecommendationList()
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	assert.Equal(t, "Explore structured learning paths to build skills systematically", recs[0])
}

func TestComputeWeeklyDigestLowScoreFlagsImprovement(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)
	user := createUser(t, db, "dave", 1)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	createSession(t, db, user.ID, "Algebra", nil, intPtr(40), weekStart.Add(10*time.Hour))

	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	require.NotNil(t, digest.ImprovementAreas)
	assert.Equal(t, "Focus on reviewing flashcards more thoroughly before taking quizzes", *digest.ImprovementAreas)

	insights, err := digest.InsightList()
	require.NoError(t, err)
	var performance *model.DigestInsight
	for i := range insights {
		if insights[i].Type == "performance" {
			performance = &insights[i]
		}
	}
	require.NotNil(t, performance)
	assert.Contains(t, performance.Description, "More review might help boost your scores.")
}

func TestComputeWeeklyDigestAIInsightsAppended(t *testing.T) {
	db := newTestDB(t)
	aiResponse := `[{"type":"pattern","title":"Consistent Learner","description":"You study at regular times."}]`
	svc := newDigestService(t, db, generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return aiResponse, nil
	}))

	user := createUser(t, db, "erin", 2)
	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	createSession(t, db, user.ID, "Go", nil, intPtr(90), weekStart.Add(10*time.Hour))

	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	insights, err := digest.InsightList()
	require.NoError(t, err)
	require.NotEmpty(t, insights)
	last := insights[len(insights)-1]
	assert.Equal(t, "pattern", last.Type)
	assert.Equal(t, "Consistent Learner", last.Title)
}

func TestComputeWeeklyDigestAIFailureIsSilent(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "this is not json", nil
	}))

	user := createUser(t, db, "frank", 0)
	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	createSession(t, db, user.ID, "Go", nil, intPtr(90), weekStart.Add(10*time.Hour))

	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)

	// AI失败只损失AI洞察，基础洞察完整保留
	insights, err := digest.InsightList()
	require.NoError(t, err)
	assert.Len(t, insights, 2) // activity + performance
}

func TestGenerateWeeklyDigestsBatch(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)

	createUser(t, db, "u1", 0)
	createUser(t, db, "u2", 0)
	optedOut := createUser(t, db, "u3", 0)
	optedOut.WeeklyDigestEnabled = false
	require.NoError(t, db.Save(optedOut).Error)

	result, err := svc.GenerateWeeklyDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Users)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// 重复批次全部跳过，不产生重复周报
	result, err = svc.GenerateWeeklyDigests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Created)

	var count int64
	require.NoError(t, db.Model(&model.LearningDigest{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestMarkOpened(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)
	user := createUser(t, db, "gina", 0)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	digest, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)
	assert.Nil(t, digest.OpenedAt)

	require.NoError(t, svc.MarkOpened(digest.ID, user.ID))

	reloaded, err := svc.LatestDigest(user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.OpenedAt)
	firstOpened := *reloaded.OpenedAt

	// 再次打开不覆盖首次时间
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, svc.MarkOpened(digest.ID, user.ID))
	reloaded, err = svc.LatestDigest(user.ID)
	require.NoError(t, err)
	assert.Equal(t, firstOpened.Unix(), reloaded.OpenedAt.Unix())
}

func TestDigestQueries(t *testing.T) {
	db := newTestDB(t)
	svc := newDigestService(t, db, nil)
	user := createUser(t, db, "hank", 0)

	weekStart, weekEnd := WeekWindow(time.Date(2025, 6, 4, 12, 0, 0, 0, time.Local))
	first, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart, weekEnd)
	require.NoError(t, err)
	second, err := svc.ComputeWeeklyDigest(context.Background(), user.ID, weekStart.AddDate(0, 0, 7), weekEnd.AddDate(0, 0, 7))
	require.NoError(t, err)

	latest, err := svc.LatestDigest(user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	byWeek, err := svc.DigestForWeek(user.ID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byWeek.ID)

	_, err = svc.DigestForWeek(user.ID, weekStart.AddDate(0, 0, 14))
	assert.ErrorIs(t, err, util.ErrDigestNotFound)

	all, err := svc.UserDigests(user.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	// 其他用户看不到
	other := createUser(t, db, "ivy", 0)
	_, err = svc.LatestDigest(other.ID)
	assert.ErrorIs(t, err, util.ErrDigestNotFound)
}
