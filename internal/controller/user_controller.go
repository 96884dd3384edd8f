package controller

import (
	"fmt"
	"path/filepath"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/internal/repository"
	"topiclearn_backend/internal/service"
	"topiclearn_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController 用户资料与偏好设置
type UserController struct {
	UserRepo       *repository.UserRepository
	StorageService *service.StorageService
}

func NewUserController(userRepo *repository.UserRepository, storageService *service.StorageService) *UserController {
	return &UserController{UserRepo: userRepo, StorageService: storageService}
}

// UpdateProfileRequest 资料更新请求，仅更新携带的字段
type UpdateProfileRequest struct {
	DisplayName         *string `json:"displayName"`
	Email               *string `json:"email" binding:"omitempty,email"`
	Theme               *string `json:"theme" binding:"omitempty,oneof=light dark system"`
	WeeklyDigestEnabled *bool   `json:"weeklyDigestEnabled"`
}

// UpdateProfile godoc
// @Summary 更新用户资料
// @Description 更新展示名、邮箱、主题和周报订阅偏好，未携带的字段保持不变
// @Tags 用户
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdateProfileRequest true "资料"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/user/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserRepo.FindByID(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Theme != nil {
		user.Theme = *req.Theme
	}
	if req.WeeklyDigestEnabled != nil {
		user.WeeklyDigestEnabled = *req.WeeklyDigestEnabled
	}

	if err := c.UserRepo.Update(user); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// UploadAvatar godoc
// @Summary 上传头像
// @Description 上传用户头像到配置的存储后端并更新资料
// @Tags 用户
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   avatar formData file true "头像文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "文件缺失或过大"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/user/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	fileHeader, err := ctx.FormFile("avatar")
	if err != nil {
		util.BadRequest(ctx, "缺少 avatar 文件")
		return
	}
	if fileHeader.Size > 5<<20 {
		util.BadRequest(ctx, "头像不能超过5MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	filename := fmt.Sprintf("avatars/%d%s", claims.UserID, filepath.Ext(fileHeader.Filename))
	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if err := c.UserRepo.DB.Model(&model.User{}).Where("id = ?", claims.UserID).Update("avatar", url).Error; err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"avatar": url})
}
