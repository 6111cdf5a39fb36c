package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/middleware"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/session"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Tasks   *handler.TaskHandler
	Focus   *handler.FocusHandler
}

func New(
	authService *service.AuthService,
	manager *session.Manager,
	handlers Handlers,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(middleware.CORSOptions{AllowedOrigins: corsOrigins}))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"backendAvailable": manager.BackendAvailable(),
		})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	scoped := api.Group("")
	scoped.Use(middleware.Identity(authService, manager))

	scoped.GET("/auth/me", handlers.Auth.Me)
	scoped.GET("/session", handlers.Session.GetSession)
	scoped.GET("/meta", handlers.Session.GetMeta)
	scoped.PUT("/meta/settings", handlers.Session.UpdateSettings)
	scoped.POST("/meta/recalculate", handlers.Session.Recalculate)
	scoped.GET("/stats/today", handlers.Session.Today)
	scoped.GET("/guest", handlers.Session.GuestStatus)
	scoped.PUT("/guest/migration-intent", handlers.Session.SetMigrationIntent)
	scoped.GET("/tags/:slug", handlers.Session.TagPresentation)

	tasks := scoped.Group("/tasks")
	tasks.GET("", handlers.Tasks.List)
	tasks.POST("", handlers.Tasks.Create)
	tasks.PUT("/:id", handlers.Tasks.Update)
	tasks.POST("/:id/toggle", handlers.Tasks.Toggle)
	tasks.DELETE("/:id", handlers.Tasks.Delete)

	records := scoped.Group("/focus-records")
	records.GET("", handlers.Focus.List)
	records.POST("", handlers.Focus.Create)
	records.POST("/sync", handlers.Focus.SyncPending)
	records.DELETE("/:id", handlers.Focus.Delete)
	records.POST("/:id/synced", handlers.Focus.MarkSynced)

	return engine
}
