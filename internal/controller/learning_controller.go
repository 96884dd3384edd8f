package controller

import (
	"errors"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// LearningController 学习内容生成、会话查询与进度提交
type LearningController struct {
	LearningService *service.LearningService
}

func NewLearningController(learningService *service.LearningService) *LearningController {
	return &LearningController{LearningService: learningService}
}

func requesterID(ctx *gin.Context) *uint {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return nil
	}
	id := claims.UserID
	return &id
}

// GenerateRequest 内容生成请求
type GenerateRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// GenerateResponse 内容生成响应
type GenerateResponse struct {
	SessionID       string                       `json:"sessionId"`
	Flashcards      []service.GeneratedFlashcard `json:"flashcards"`
	MCQs            []service.GeneratedMCQ       `json:"mcqs"`
	UsingSampleData bool                         `json:"usingSampleData"`
}

// Generate godoc
// @Summary 生成学习内容
// @Description 为指定主题生成一组闪卡和5道选择题，创建学习会话。匿名用户也可调用。
// @Tags 学习
// @Accept  json
// @Produce  json
// @Param   body body GenerateRequest true "生成请求"
// @Success 200 {object} util.Response{data=GenerateResponse} "生成成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/learning/generate [post]
func (c *LearningController) Generate(ctx *gin.Context) {
	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	content, sessionID, err := c.LearningService.GenerateSession(ctx.Request.Context(), requesterID(ctx), req.Topic)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, GenerateResponse{
		SessionID:       sessionID,
		Flashcards:      content.Flashcards,
		MCQs:            content.MCQs,
		UsingSampleData: content.UsingSampleData,
	})
}

// ResultsRequest 成绩计算请求。
// 携带 sessionId 时题目与降级标记以会话存储为准，并把得分写回会话。
type ResultsRequest struct {
	Topic           string              `json:"topic" binding:"required"`
	SessionID       string              `json:"sessionId"`
	MCQs            []service.ScoredMCQ `json:"mcqs"`
	SelectedAnswers []string            `json:"selectedAnswers"`
	UsingSampleData bool                `json:"usingSampleData"`
}

// Results godoc
// @Summary 计算测验结果
// @Description 按位置比对答案计算得分并生成个性化反馈。未作答的题目按答错计，完全不携带答案的请求被拒绝。
// @Tags 学习
// @Accept  json
// @Produce  json
// @Param   body body ResultsRequest true "结果请求"
// @Success 200 {object} util.Response{data=service.LearningResults} "计算成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "无权访问该会话"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/learning/results [post]
func (c *LearningController) Results(ctx *gin.Context) {
	var req ResultsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.SelectedAnswers == nil {
		util.BadRequest(ctx, "缺少 selectedAnswers")
		return
	}

	mcqs := req.MCQs
	usingSample := req.UsingSampleData

	if req.SessionID != "" {
		detail, err := c.LearningService.GetSession(req.SessionID, requesterID(ctx))
		if err != nil {
			respondSessionError(ctx, err)
			return
		}
		mcqs = mcqs[:0]
		for _, q := range detail.MCQs {
			mcqs = append(mcqs, service.ScoredMCQ{Question: q.Question, CorrectAnswer: q.CorrectAnswer})
		}
		usingSample = detail.Session.UsingSampleData
	}

	if len(mcqs) == 0 {
		util.BadRequest(ctx, "没有可评分的题目")
		return
	}

	results := c.LearningService.Generator.GenerateResults(ctx.Request.Context(), req.Topic, mcqs, req.SelectedAnswers, usingSample)

	if req.SessionID != "" {
		if err := c.LearningService.CompleteSession(req.SessionID, results.ScorePercentage, requesterID(ctx)); err != nil {
			respondSessionError(ctx, err)
			return
		}
	}

	util.Success(ctx, results)
}

// SaveProgressRequest 进度保存请求
type SaveProgressRequest struct {
	SessionID     string   `json:"sessionId" binding:"required"`
	Type          string   `json:"type" binding:"required,oneof=flashcards mcq"`
	CurrentIndex  int      `json:"currentIndex" binding:"min=0"`
	Answers       []string `json:"answers"`
	TimeRemaining int      `json:"timeRemaining"`
}

// SaveProgress godoc
// @Summary 保存学习进度
// @Description 记录当前所处阶段和位置，选择题阶段还保存已选答案与剩余时间
// @Tags 学习
// @Accept  json
// @Produce  json
// @Param   body body SaveProgressRequest true "进度"
// @Success 200 {object} util.Response "保存成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "无权访问该会话"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/learning/save-progress [post]
func (c *LearningController) SaveProgress(ctx *gin.Context) {
	var req SaveProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.LearningService.SaveProgress(req.SessionID, req.Type, req.CurrentIndex, req.Answers, req.TimeRemaining, requesterID(ctx))
	if err != nil {
		respondSessionError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "progress saved"})
}

// GetSession godoc
// @Summary 查询会话详情
// @Description 返回会话元信息及其全部闪卡和选择题。有属主的会话只允许属主访问。
// @Tags 学习
// @Produce  json
// @Param   sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionDetail} "成功"
// @Failure 403 {object} util.Response "无权访问该会话"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/sessions/{sessionId} [get]
func (c *LearningController) GetSession(ctx *gin.Context) {
	sessionID := ctx.Param("sessionId")

	detail, err := c.LearningService.GetSession(sessionID, requesterID(ctx))
	if err != nil {
		respondSessionError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

// History godoc
// @Summary 学习历史
// @Description 返回当前用户的全部学习会话，按创建时间倒序
// @Tags 学习
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.LearningSession} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/user/history [get]
func (c *LearningController) History(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	sessions, err := c.LearningService.History(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, sessions)
}

func respondSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
