package routes

import (
	"github.com/gin-gonic/gin"

	handler "receivables-conciliation-backend/internal/handlers"
)

func RegisterRoutes(r *gin.Engine, workflows *handler.WorkflowHandler, auth *handler.AuthHandler) {
	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Conciliation workflow routes
	wf := api.Group("/workflows")
	wf.GET("", workflows.List)
	wf.POST("", workflows.Create)
	wf.GET("/:id", workflows.Get)
	wf.POST("/:id/upload", workflows.Upload)
	wf.POST("/:id/skip", workflows.Skip)
	wf.POST("/:id/conciliate", workflows.Conciliate)
	wf.POST("/:id/reset", workflows.Reset)

	// Results
	wf.GET("/:id/rows", workflows.ListRows)
	wf.GET("/:id/stats", workflows.Stats)
	wf.GET("/:id/export", workflows.Export)
	wf.GET("/:id/report.xlsx", workflows.Report)

	// History
	wf.GET("/:id/transitions", workflows.Transitions)
	wf.GET("/:id/runs", workflows.Runs)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.GET("/me", auth.Me)
		authGroup.POST("/logout", auth.Logout)
	}
}
