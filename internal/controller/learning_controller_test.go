package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"topiclearn_backend/internal/config"
	"topiclearn_backend/internal/middleware"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/pkg/database"
	"topiclearn_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	auth   *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	authService := service.NewAuthService(userRepo, nil, cfg)
	generator := service.NewGeneratorService(nil) // 无生成器，内容全部走样例
	learningService := service.NewLearningService(sessionRepo, catalogRepo, userRepo, generator)

	authCtl := NewAuthController(authService)
	learningCtl := NewLearningController(learningService)

	router := gin.New()
	api := router.Group("/api")
	api.POST("/register", authCtl.Register)
	api.POST("/login", authCtl.Login)

	optional := router.Group("/api")
	optional.Use(middleware.TryAuthMiddleware(cfg, authService))
	{
		optional.POST("/learning/generate", learningCtl.Generate)
		optional.POST("/learning/results", learningCtl.Results)
		optional.POST("/learning/save-progress", learningCtl.SaveProgress)
		optional.GET("/sessions/:sessionId", learningCtl.GetSession)
	}

	authed := router.Group("/api")
	authed.Use(middleware.AuthMiddleware(cfg, authService))
	{
		authed.GET("/user/history", learningCtl.History)
	}

	return &testEnv{router: router, db: db, cfg: cfg, auth: authService}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/register", "", gin.H{"username": username, "password": "pw12345678"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodPost, "/api/login", "", gin.H{"username": username, "password": "pw12345678"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func TestGenerateAndScoreFlow(t *testing.T) {
	env := newTestEnv(t)

	// 匿名生成
	w := env.do(t, http.MethodPost, "/api/learning/generate", "", gin.H{"topic": "Cats"})
	require.Equal(t, http.StatusOK, w.Code)

	var genResp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &genResp))
	assert.True(t, genResp.Data.UsingSampleData)
	assert.Len(t, genResp.Data.Flashcards, 5)
	require.Len(t, genResp.Data.MCQs, 5)
	require.NotEmpty(t, genResp.Data.SessionID)

	// 按位置作答：样例题正确答案为 A B C D A，答 A B C 得3分
	w = env.do(t, http.MethodPost, "/api/learning/results", "", gin.H{
		"topic":           "Cats",
		"sessionId":       genResp.Data.SessionID,
		"selectedAnswers": []string{"A", "B", "C"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resResp struct {
		Data service.LearningResults `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resResp))
	assert.Equal(t, 3, resResp.Data.CorrectAnswers)
	assert.Equal(t, 5, resResp.Data.TotalQuestions)
	assert.Equal(t, 60, resResp.Data.ScorePercentage)
	assert.NotEmpty(t, resResp.Data.Strengths)

	// 得分写回会话
	var session model.LearningSession
	require.NoError(t, env.db.Where("id = ?", genResp.Data.SessionID).First(&session).Error)
	require.NotNil(t, session.Score)
	assert.Equal(t, 60, *session.Score)
	assert.NotNil(t, session.CompletedAt)
}

func TestResultsWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/learning/results", "", gin.H{
		"topic": "Cats",
		"mcqs": []gin.H{
			{"question": "Q1", "correctAnswer": "A"},
			{"question": "Q2", "correctAnswer": "B"},
		},
		"selectedAnswers": []string{"A", "A"},
		"usingSampleData": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data service.LearningResults `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.CorrectAnswers)
	assert.Equal(t, 50, resp.Data.ScorePercentage)
}

func TestResultsRejectsMissingAnswers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/learning/generate", "", gin.H{"topic": "Cats"})
	require.Equal(t, http.StatusOK, w.Code)
	var genResp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &genResp))

	// 不携带 selectedAnswers 的请求被拒绝，会话不会被完结
	w = env.do(t, http.MethodPost, "/api/learning/results", "", gin.H{
		"topic":     "Cats",
		"sessionId": genResp.Data.SessionID,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var session model.LearningSession
	require.NoError(t, env.db.Where("id = ?", genResp.Data.SessionID).First(&session).Error)
	assert.Nil(t, session.Score)
	assert.Nil(t, session.CompletedAt)
}

func TestSessionOwnershipOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerAndLogin(t, "owner")
	strangerToken := env.registerAndLogin(t, "stranger")

	w := env.do(t, http.MethodPost, "/api/learning/generate", ownerToken, gin.H{"topic": "Go"})
	require.Equal(t, http.StatusOK, w.Code)
	var genResp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &genResp))
	sessionID := genResp.Data.SessionID

	// 属主可读
	w = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 非属主和匿名请求分别403
	w = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 不存在的会话404
	w = env.do(t, http.MethodGet, "/api/sessions/"+model.GenerateUUID(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveProgressOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/learning/generate", "", gin.H{"topic": "Go"})
	require.Equal(t, http.StatusOK, w.Code)
	var genResp struct {
		Data GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &genResp))

	w = env.do(t, http.MethodPost, "/api/learning/save-progress", "", gin.H{
		"sessionId":     genResp.Data.SessionID,
		"type":          "mcq",
		"currentIndex":  2,
		"answers":       []string{"A", "C"},
		"timeRemaining": 40,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var session model.LearningSession
	require.NoError(t, env.db.Where("id = ?", genResp.Data.SessionID).First(&session).Error)
	assert.Equal(t, "mcq", session.ProgressType)
	assert.Equal(t, 2, session.ProgressIndex)
	cp, err := session.Checkpoint()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, []string{"A", "C"}, cp.Answers)

	// 不合法的阶段名被参数校验拦下
	w = env.do(t, http.MethodPost, "/api/learning/save-progress", "", gin.H{
		"sessionId": genResp.Data.SessionID,
		"type":      "essay",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t, "alice")

	w := env.do(t, http.MethodGet, "/api/user/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 登录用户生成的会话出现在个人历史中
	w = env.do(t, http.MethodPost, "/api/learning/generate", token, gin.H{"topic": "Go"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/user/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []model.LearningSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Go", resp.Data[0].Topic)
}
