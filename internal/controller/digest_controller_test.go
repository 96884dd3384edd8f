package controller

import (
	"net/http"
	"testing"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatchErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	digestService := service.NewDigestService(
		repository.NewSessionRepository(env.db),
		repository.NewDigestRepository(env.db),
		repository.NewUserRepository(env.db),
		repository.NewCatalogRepository(env.db),
		nil,
		nil,
	)
	ctl := NewDigestController(digestService)

	router := gin.New()
	router.POST("/api/admin/generate-digests", ctl.GenerateBatch)
	env.router = router

	// 空批次正常返回汇总
	w := env.do(t, http.MethodPost, "/api/admin/generate-digests", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 存储故障是500，不能伪装成批次冲突
	require.NoError(t, env.db.Exec("DROP TABLE users").Error)
	w = env.do(t, http.MethodPost, "/api/admin/generate-digests", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
