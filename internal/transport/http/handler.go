// Package http is the thin operator-facing adapter over the thirteen core
// operations named in spec §6, grounded on the teacher's
// internal/transport/http/handler.go (one handler struct, gin.Context
// binding, domain-error-to-status mapping). There is no session/JWT
// middleware: spec §1 names that as an external collaborator, so every
// route takes a pre-authenticated user as a path segment.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/ingestion"
	"github.com/saan/taskflow-agent/internal/nudger"
	"github.com/saan/taskflow-agent/internal/planner"
	"github.com/saan/taskflow-agent/internal/sync"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// Handler wires the five core components to HTTP. SetupRoutes registers
// every route whether or not the component behind it is set; HealthCheck is
// the only handler that checks for a nil field (Pipeline).
type Handler struct {
	Pipeline   *ingestion.Pipeline
	Planner    *planner.Planner
	Feedback   *nudger.Feedback
	Nudger     *nudger.Nudger
	SyncEngine *sync.Engine

	Tasks         domain.TaskStore
	Reminders     domain.ReminderStore
	Energy        domain.EnergyStore
	Notifications domain.NotificationStore

	Log logger.Logger
}

// statusFor maps a core Kind to its HTTP status, per spec §7's error taxonomy.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindConflict, domain.KindBusy:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindTransient, domain.KindDegraded:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if h.Log != nil {
		h.Log.WithField("error", err.Error()).Warn("request failed")
	}
	c.JSON(statusFor(domain.KindOf(err)), gin.H{"error": err.Error()})
}

func resolveLocation(c *gin.Context) *time.Location {
	if tz := c.Query("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

// RunIngest handles POST /users/:user/ingest/:source -> run_ingest(user, source).
func (h *Handler) RunIngest(c *gin.Context) {
	user := c.Param("user")
	source := domain.Source(c.Param("source"))

	report, err := h.Pipeline.Run(c.Request.Context(), user, source)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GeneratePlan handles POST /users/:user/plans/:date -> generate_plan(user, date).
func (h *Handler) GeneratePlan(c *gin.Context) {
	user := c.Param("user")
	date := c.Param("date")

	plan, err := h.Planner.Generate(c.Request.Context(), user, date, resolveLocation(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetPlan handles GET /users/:user/plans/:date -> get_plan(user, date).
func (h *Handler) GetPlan(c *gin.Context) {
	user := c.Param("user")
	date := c.Param("date")

	plan, err := h.Planner.Plans.Get(c.Request.Context(), user, date)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindNotFound, domain.ErrPlanNotFound))
		return
	}
	c.JSON(http.StatusOK, plan)
}

type updatePlanStatusRequest struct {
	Status domain.PlanStatus `json:"status" binding:"required"`
}

// UpdatePlanStatus handles PATCH /users/:user/plans/:date/status -> update_plan_status(plan, status).
func (h *Handler) UpdatePlanStatus(c *gin.Context) {
	user := c.Param("user")
	date := c.Param("date")

	var req updatePlanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.Planner.Plans.Get(c.Request.Context(), user, date)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindNotFound, domain.ErrPlanNotFound))
		return
	}
	if err := plan.UpdateStatus(req.Status); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Planner.Plans.Save(c.Request.Context(), plan); err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.JSON(http.StatusOK, plan)
}

type recordFeedbackRequest struct {
	Action   domain.FeedbackAction `json:"action" binding:"required"`
	PlanDate string                `json:"plan_date"`
	Minutes  int                   `json:"minutes"`
}

// RecordFeedback handles POST /users/:user/tasks/:task_id/feedback -> record_feedback(user, task, action, …).
func (h *Handler) RecordFeedback(c *gin.Context) {
	user := c.Param("user")
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req recordFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case domain.FeedbackDone:
		err = h.Feedback.MarkDone(c.Request.Context(), user, taskID, req.PlanDate)
	case domain.FeedbackSnoozed:
		err = h.Feedback.Snooze(c.Request.Context(), user, taskID, req.PlanDate, req.Minutes)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feedback action"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNotifications handles GET /users/:user/notifications -> list_notifications(user, status?, limit?).
func (h *Handler) ListNotifications(c *gin.Context) {
	user := c.Param("user")
	status := domain.NotificationStatus(c.Query("status"))
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}

	list, err := h.Notifications.List(c.Request.Context(), user, status, limit)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// DismissNotification handles POST /users/:user/notifications/:id/dismiss -> dismiss_notification(user, id).
func (h *Handler) DismissNotification(c *gin.Context) {
	user := c.Param("user")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if err := h.Nudger.Dismiss(c.Request.Context(), user, id); err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncTaskManager handles POST /users/:user/sync -> sync_task_manager(user).
func (h *Handler) SyncTaskManager(c *gin.Context) {
	user := c.Param("user")
	summary, err := h.SyncEngine.Run(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type resolveConflictRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// ResolveConflict handles POST /users/:user/sync/tasks/:task_id/resolve -> resolve_conflict(user, task_id, choice).
func (h *Handler) ResolveConflict(c *gin.Context) {
	user := c.Param("user")
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.SyncEngine.Resolve(c.Request.Context(), user, taskID, req.Choice); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setEnergyRequest struct {
	Level int `json:"level" binding:"required,min=1,max=5"`
}

// SetEnergy handles PUT /users/:user/energy/:date -> set_energy(user, date, level).
func (h *Handler) SetEnergy(c *gin.Context) {
	user := c.Param("user")
	date := c.Param("date")

	var req setEnergyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Energy.Set(c.Request.Context(), &domain.EnergyLevel{User: user, Date: date, Level: req.Level}); err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTasks handles GET /users/:user/tasks -> list_tasks(user, window?).
func (h *Handler) ListTasks(c *gin.Context) {
	user := c.Param("user")
	now := time.Now()
	from := now.Add(-7 * 24 * time.Hour)
	to := now.Add(30 * 24 * time.Hour)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}

	tasks, err := h.Tasks.ListByUserAndWindow(c.Request.Context(), user, from, to)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type updateTaskFlagsRequest struct {
	IsCritical *bool `json:"is_critical"`
	IsUrgent   *bool `json:"is_urgent"`
	IsSpam     *bool `json:"is_spam"`
}

// UpdateTaskFlags handles PATCH /users/:user/tasks/:task_id/flags -> update_task_flags(user, task, flags).
func (h *Handler) UpdateTaskFlags(c *gin.Context) {
	user := c.Param("user")
	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req updateTaskFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.Tasks.Get(c.Request.Context(), user, taskID)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound))
		return
	}
	if req.IsCritical != nil {
		task.IsCritical = *req.IsCritical
	}
	if req.IsUrgent != nil {
		task.IsUrgent = *req.IsUrgent
	}
	if req.IsSpam != nil {
		task.IsSpam = *req.IsSpam
	}
	task.UpdatedAt = time.Now()
	if err := h.Tasks.Update(c.Request.Context(), task); err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.JSON(http.StatusOK, task)
}

// PromoteReminder handles POST /users/:user/reminders/:id/promote -> promote_reminder(user, reminder_id).
func (h *Handler) PromoteReminder(c *gin.Context) {
	user := c.Param("user")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder id"})
		return
	}

	reminder, err := h.Reminders.Get(c.Request.Context(), user, id)
	if err != nil {
		h.fail(c, domain.NewError(domain.KindNotFound, err))
		return
	}

	task := reminder.PromoteToTask()
	if _, err := h.Tasks.UpsertByExternalID(c.Request.Context(), task); err != nil {
		h.fail(c, domain.NewError(domain.KindTransient, err))
		return
	}
	c.JSON(http.StatusCreated, task)
}

// HealthCheck handles GET /health, exposing the Ingestion Pipeline's
// running success-rate metric per spec §4.2.
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{"status": "healthy", "service": "taskflow-agent"}
	if h.Pipeline != nil && h.Pipeline.Metrics != nil {
		resp["ingestion"] = h.Pipeline.Metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
