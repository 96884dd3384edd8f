package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{DB: db}
}

// Check godoc
// @Summary 健康检查
// @Description 检查服务及数据库连接状态
// @Tags 系统
// @Produce  json
// @Success 200 {object} map[string]interface{} "健康"
// @Failure 503 {object} map[string]interface{} "数据库不可用"
// @Router /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}

	ctx.JSON(http.StatusOK, status)
}
