package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
	memorystore "github.com/saan/taskflow-agent/internal/infrastructure/store/memory"
	"github.com/saan/taskflow-agent/internal/ingestion"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func newTestRouter() (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	h := &Handler{
		Tasks:         memorystore.NewTaskStore(),
		Reminders:     memorystore.NewReminderStore(),
		Energy:        memorystore.NewEnergyStore(),
		Notifications: memorystore.NewNotificationStore(),
		Log:           logger.NewLogger("error", "text"),
	}
	r := gin.New()
	v1 := r.Group("/api/v1/users/:user")
	v1.GET("/tasks", h.ListTasks)
	v1.PATCH("/tasks/:task_id/flags", h.UpdateTaskFlags)
	v1.PUT("/energy/:date", h.SetEnergy)
	v1.POST("/reminders/:id/promote", h.PromoteReminder)
	v1.GET("/notifications", h.ListNotifications)
	r.GET("/health", h.HealthCheck)
	return r, h
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck_ExposesIngestionSnapshot(t *testing.T) {
	h := &Handler{
		Pipeline: &ingestion.Pipeline{Metrics: ingestion.NewMetrics()},
		Log:      logger.NewLogger("error", "text"),
	}
	r := gin.New()
	r.GET("/health", h.HealthCheck)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, ok := body["ingestion"]
	assert.True(t, ok, "expected an ingestion snapshot in the health response")
}

func TestSetEnergy_PersistsLevel(t *testing.T) {
	r, h := newTestRouter()
	body, _ := json.Marshal(setEnergyRequest{Level: 4})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/energy/2026-07-31", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	e, err := h.Energy.Get(req.Context(), "u1", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, 4, e.Level)
}

func TestSetEnergy_RejectsOutOfRangeLevel(t *testing.T) {
	r, _ := newTestRouter()
	body := []byte(`{"level": 9}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/u1/energy/2026-07-31", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTaskFlags_SetsOnlyProvidedFields(t *testing.T) {
	r, h := newTestRouter()
	task := domain.NewTask("u1", domain.SourceManual, "write report", time.Now(), time.Now().Add(time.Hour))
	_, err := h.Tasks.UpsertByExternalID(context.Background(), task)
	require.NoError(t, err)

	body := []byte(`{"is_critical": true}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/u1/tasks/"+task.ID.String()+"/flags", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.IsCritical)
	assert.False(t, updated.IsUrgent)
}

func TestPromoteReminder_CreatesTask(t *testing.T) {
	r, h := newTestRouter()
	reminder := &domain.Reminder{
		ID:     uuid.New(),
		User:   "u1",
		Source: domain.SourceCalendar,
		Title:  "Mom's birthday",
		Start:  time.Now(),
		End:    time.Now().Add(24 * time.Hour),
	}
	_, err := h.Reminders.Upsert(context.Background(), reminder)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/reminders/"+reminder.ID.String()+"/promote", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Mom's birthday", created.Title)
}

func TestListNotifications_FiltersByStatus(t *testing.T) {
	r, h := newTestRouter()
	pending := domain.NewReservedNotification("u1", uuid.New(), uuid.New(), "task_start", "pending one", time.Now())
	sent := domain.NewReservedNotification("u1", uuid.New(), uuid.New(), "task_start", "sent one", time.Now())
	require.NoError(t, h.Notifications.Reserve(context.Background(), pending))
	require.NoError(t, h.Notifications.Reserve(context.Background(), sent))
	require.NoError(t, h.Notifications.MarkSent(context.Background(), sent.ID, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/notifications?status=pending", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, pending.ID, body.Notifications[0].ID)
}
