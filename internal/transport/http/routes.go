package http

import (
	"github.com/gin-gonic/gin"

	"github.com/saan/taskflow-agent/internal/transport/http/middleware"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// SetupRoutes wires every §6 operation onto a gin.Engine, grounded on the
// teacher's routes.go (gin.New + explicit middleware chain), with all
// operations in a single /api/v1/users/:user group plus /health. There is
// no auth group: the upstream gateway is assumed
// to have already resolved :user.
func SetupRoutes(h *Handler, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.CORS())
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	r.GET("/health", h.HealthCheck)

	v1 := r.Group("/api/v1/users/:user")
	{
		v1.POST("/ingest/:source", h.RunIngest)

		v1.POST("/plans/:date", h.GeneratePlan)
		v1.GET("/plans/:date", h.GetPlan)
		v1.PATCH("/plans/:date/status", h.UpdatePlanStatus)

		v1.GET("/tasks", h.ListTasks)
		v1.PATCH("/tasks/:task_id/flags", h.UpdateTaskFlags)
		v1.POST("/tasks/:task_id/feedback", h.RecordFeedback)

		v1.GET("/notifications", h.ListNotifications)
		v1.POST("/notifications/:id/dismiss", h.DismissNotification)

		v1.POST("/sync", h.SyncTaskManager)
		v1.POST("/sync/tasks/:task_id/resolve", h.ResolveConflict)

		v1.PUT("/energy/:date", h.SetEnergy)

		v1.POST("/reminders/:id/promote", h.PromoteReminder)
	}

	return r
}
