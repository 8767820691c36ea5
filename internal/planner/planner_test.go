package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
	memorystore "github.com/saan/taskflow-agent/internal/infrastructure/store/memory"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func newTestPlanner() (*Planner, domain.TaskStore, domain.EnergyStore) {
	tasks := memorystore.NewTaskStore()
	energy := memorystore.NewEnergyStore()
	return &Planner{
		Tasks:        tasks,
		Plans:        memorystore.NewPlanStore(),
		Energy:       energy,
		Feedback:     memorystore.NewFeedbackStore(),
		Dependencies: memorystore.NewDependencyStore(),
		Log:          logger.NewLogger("error", "text"),
	}, tasks, energy
}

func seedTask(t *testing.T, store domain.TaskStore, user, title string, start time.Time, priority domain.Priority, critical, urgent bool) *domain.Task {
	t.Helper()
	task := domain.NewTask(user, domain.SourceManual, title, start, start.Add(time.Hour))
	task.Priority = priority
	task.IsCritical = critical
	task.IsUrgent = urgent
	_, err := store.UpsertByExternalID(context.Background(), task)
	require.NoError(t, err)
	return task
}

func TestGenerate_OrdersByScoreWithLowEnergy(t *testing.T) {
	p, tasks, energy := newTestPlanner()
	loc := time.UTC
	date := "2026-08-03"
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	require.NoError(t, err)

	seedTask(t, tasks, "u1", "Normal task", day.Add(9*time.Hour), domain.PriorityNormal, false, false)
	seedTask(t, tasks, "u1", "Critical task", day.Add(10*time.Hour), domain.PriorityHigh, true, false)
	seedTask(t, tasks, "u1", "Urgent task", day.Add(11*time.Hour), domain.PriorityNormal, false, true)

	require.NoError(t, energy.Set(context.Background(), &domain.EnergyLevel{User: "u1", Date: date, Level: 2}))

	plan, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 3)

	assert.Equal(t, "Critical task", plan.Tasks[0].Title)
	assert.Equal(t, "Urgent task", plan.Tasks[1].Title)
	assert.Equal(t, "Normal task", plan.Tasks[2].Title)
	assert.Equal(t, domain.PlanStatusActive, plan.Status)
	assert.Equal(t, 2, *plan.EnergyLevel)
}

func TestGenerate_IsDeterministicWithoutLLM(t *testing.T) {
	p, tasks, _ := newTestPlanner()
	loc := time.UTC
	date := "2026-08-03"
	day, _ := time.ParseInLocation("2006-01-02", date, loc)
	seedTask(t, tasks, "u1", "Task A", day.Add(9*time.Hour), domain.PriorityHigh, false, false)
	seedTask(t, tasks, "u1", "Task B", day.Add(10*time.Hour), domain.PriorityLow, false, false)

	plan1, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)
	plan2, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)

	require.Len(t, plan1.Tasks, 2)
	require.Len(t, plan2.Tasks, 2)
	for i := range plan1.Tasks {
		assert.Equal(t, plan1.Tasks[i].TaskID, plan2.Tasks[i].TaskID)
		assert.Equal(t, plan1.Tasks[i].PriorityScore, plan2.Tasks[i].PriorityScore)
	}
}

func TestGenerate_ExcludesSpamAndOutsideDay(t *testing.T) {
	p, tasks, _ := newTestPlanner()
	loc := time.UTC
	date := "2026-08-03"
	day, _ := time.ParseInLocation("2006-01-02", date, loc)

	inDay := seedTask(t, tasks, "u1", "In day", day.Add(9*time.Hour), domain.PriorityNormal, false, false)
	inDay.IsSpam = true
	require.NoError(t, tasks.Update(context.Background(), inDay))
	seedTask(t, tasks, "u1", "Tomorrow", day.Add(30*time.Hour), domain.PriorityHigh, false, false)

	plan, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)
	assert.Len(t, plan.Tasks, 0)
}

func TestGenerate_DropsTitleMatchingPromotionalPattern(t *testing.T) {
	p, tasks, _ := newTestPlanner()
	p.PromotionalPatterns = []string{"unsubscribe", "% off"}
	loc := time.UTC
	date := "2026-08-03"
	day, _ := time.ParseInLocation("2006-01-02", date, loc)

	seedTask(t, tasks, "u1", "Kept task", day.Add(9*time.Hour), domain.PriorityNormal, false, false)
	seedTask(t, tasks, "u1", "50% Off Everything - unsubscribe here", day.Add(10*time.Hour), domain.PriorityHigh, false, false)

	plan, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "Kept task", plan.Tasks[0].Title)
}

func TestGenerate_DefersDependentWithOpenBlocker(t *testing.T) {
	p, tasks, _ := newTestPlanner()
	loc := time.UTC
	date := "2026-08-03"
	day, _ := time.ParseInLocation("2006-01-02", date, loc)

	blocker := seedTask(t, tasks, "u1", "Blocker", day.Add(9*time.Hour), domain.PriorityNormal, false, false)
	dependent := seedTask(t, tasks, "u1", "Dependent", day.Add(10*time.Hour), domain.PriorityNormal, false, false)
	require.NoError(t, p.Dependencies.Insert(context.Background(), domain.TaskDependency{
		Task: dependent.ID, BlockedBy: blocker.ID, Type: domain.DependencyDependsOn,
	}))

	plan, err := p.Generate(context.Background(), "u1", date, loc)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)

	entry := plan.FindEntry(dependent.ID)
	require.NotNil(t, entry)
	assert.True(t, entry.PredictedStart.After(dependent.Start))
}
