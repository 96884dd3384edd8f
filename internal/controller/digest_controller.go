package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// DigestController 每周学习摘要查询与批量生成
type DigestController struct {
	DigestService *service.DigestService
}

func NewDigestController(digestService *service.DigestService) *DigestController {
	return &DigestController{DigestService: digestService}
}

// Latest godoc
// @Summary 最新周报
// @Description 返回当前用户最近一期每周学习摘要
// @Tags 周报
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.LearningDigest} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "还没有周报"
// @Router /api/user/digest/latest [get]
func (c *DigestController) Latest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	digest, err := c.DigestService.LatestDigest(claims.UserID)
	if err != nil {
		respondDigestError(ctx, err)
		return
	}
	util.Success(ctx, digest)
}

// ByWeek godoc
// @Summary 指定周的周报
// @Description 按周起始日期（YYYY-MM-DD，周一）查询周报；传 latest 返回最近一期
// @Tags 周报
// @Produce  json
// @Security ApiKeyAuth
// @Param   weekStart path string true "周起始日期" example(2025-06-02)
// @Success 200 {object} util.Response{data=model.LearningDigest} "成功"
// @Failure 400 {object} util.Response "日期格式错误"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "该周无周报"
// @Router /api/user/digest/{weekStart} [get]
func (c *DigestController) ByWeek(ctx *gin.Context) {
	if ctx.Param("weekStart") == "latest" {
		c.Latest(ctx)
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	weekStart, err := time.ParseInLocation("2006-01-02", ctx.Param("weekStart"), time.Local)
	if err != nil {
		util.BadRequest(ctx, "weekStart 应为 YYYY-MM-DD")
		return
	}

	digest, err := c.DigestService.DigestForWeek(claims.UserID, weekStart)
	if err != nil {
		respondDigestError(ctx, err)
		return
	}
	util.Success(ctx, digest)
}

// List godoc
// @Summary 周报列表
// @Description 返回当前用户全部周报，按周起始日期倒序
// @Tags 周报
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.LearningDigest} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/user/digests [get]
func (c *DigestController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	digests, err := c.DigestService.UserDigests(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, digests)
}

// MarkOpened godoc
// @Summary 标记周报已读
// @Description 记录周报首次打开时间，重复调用不覆盖
// @Tags 周报
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "周报ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "ID格式错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/user/digests/{id}/open [post]
func (c *DigestController) MarkOpened(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	digestID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "无效的周报ID")
		return
	}

	if err := c.DigestService.MarkOpened(uint(digestID), claims.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "marked as opened"})
}

// GenerateBatch godoc
// @Summary 批量生成周报
// @Description 为所有开启周报偏好的用户生成本周周报，单个用户失败不中断批次。仅管理员可调用。
// @Tags 周报
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.BatchResult} "批次汇总"
// @Failure 401 {object} util.Response "未授权"
// @Failure 403 {object} util.Response "权限不足"
// @Failure 409 {object} util.Response "已有批次在运行"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/admin/generate-digests [post]
func (c *DigestController) GenerateBatch(ctx *gin.Context) {
	result, err := c.DigestService.GenerateWeeklyDigests(ctx.Request.Context())
	if err != nil {
		if errors.Is(err, util.ErrBatchRunning) {
			util.Error(ctx, http.StatusConflict, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func respondDigestError(ctx *gin.Context, err error) {
	if errors.Is(err, util.ErrDigestNotFound) {
		util.NotFound(ctx)
		return
	}
	util.LogInternalError(ctx, err)
}
