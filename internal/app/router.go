package app

import (
	"topiclearn_backend/docs"
	"topiclearn_backend/internal/config"
	"topiclearn_backend/internal/middleware"
	"topiclearn_backend/internal/model"
	"topiclearn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.Check)

	// 1. 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 可选认证路由：匿名可用，登录用户的会话记入个人历史
	optional := router.Group("/api")
	optional.Use(middleware.TryAuthMiddleware(cfg, a.services.auth))
	{
		optional.POST("/learning/generate", c.learning.Generate)
		optional.POST("/learning/results", c.learning.Results)
		optional.POST("/learning/save-progress", c.learning.SaveProgress)
		optional.GET("/sessions/:sessionId", c.learning.GetSession)
	}

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.services.auth))
	{
		authGroup.POST("/logout", c.auth.Logout)
		authGroup.GET("/user/current", c.auth.CurrentUser)
		authGroup.GET("/user/history", c.learning.History)
		authGroup.PUT("/user/profile", c.user.UpdateProfile)
		authGroup.POST("/user/avatar", c.user.UploadAvatar)

		// gin 不允许 latest 与 :weekStart 同级共存，在处理器内分派
		authGroup.GET("/user/digest/:weekStart", c.digest.ByWeek)
		authGroup.GET("/user/digests", c.digest.List)
		authGroup.POST("/user/digests/:id/open", c.digest.MarkOpened)
	}

	// 4. 管理员接口
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg, a.services.auth), middleware.RoleMiddleware(model.Admin))
	{
		adminGroup.POST("/generate-digests", c.digest.GenerateBatch)
	}
}
