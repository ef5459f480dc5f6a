package api

import (
	"VoxMind/backend/go/internal/auth"
	"VoxMind/backend/go/internal/config"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, environment string, authCfg config.AuthConfig, keys *auth.KeyCache) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()

	r.GET("/health", h.Health)

	// 业务接口全部要求已验证的用户身份
	apiGroup := r.Group("/api")
	apiGroup.Use(auth.Middleware(environment, authCfg, keys))
	{
		apiGroup.POST("/upload", h.Upload)
		apiGroup.POST("/process", h.Process)
		apiGroup.GET("/runs/:id", h.RunStatus)
		apiGroup.POST("/runs/:id/resume", h.ResumeRun)
		apiGroup.POST("/chat", h.Chat)

		memos := apiGroup.Group("/memos")
		{
			memos.GET("", h.ListMemos)
			memos.GET("/:id", h.GetMemo)
			memos.DELETE("/:id", h.DeleteMemo)
		}
	}

	return r
}
