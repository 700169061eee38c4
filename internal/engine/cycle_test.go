package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

// failingScores fails UpdateHealthScore for one project.
type failingScores struct {
	engine.RecordStore
	failID string
}

func (f failingScores) UpdateHealthScore(ctx context.Context, id string, score int, at time.Time) error {
	if id == f.failID {
		return domain.StoreError{Op: "update health score", Err: errors.New("disk full")}
	}
	return f.RecordStore.UpdateHealthScore(ctx, id, score, at)
}

type fixedDocs int

func (d fixedDocs) DocumentStatus(context.Context, string) (int, bool, error) { return int(d), true, nil }

// seedTroubled creates a project with 6 overdue milestones, 95% spend and an
// inactive team: 100 - 60 - 20 - 15 clamps to 5.
func seedTroubled(t *testing.T, env testEnv, name string) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, owner, engine.ProjectInput{Name: name, BudgetTotal: 1000})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := env.Engine.AddMilestone(env.Ctx, owner, p.ID, engine.MilestoneInput{Title: "late", DueDate: clock.Add(-time.Duration(i+1) * 24 * time.Hour)})
		require.NoError(t, err)
	}
	_, err = env.Engine.RecordTransaction(env.Ctx, owner, p.ID, engine.TransactionInput{Amount: 950})
	require.NoError(t, err)
	return p
}

func TestRunCycleUpdatesScoresAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	troubled := seedTroubled(t, env, "Troubled")
	healthy, err := env.Engine.CreateProject(env.Ctx, owner, engine.ProjectInput{Name: "Healthy", BudgetTotal: 1000})
	require.NoError(t, err)
	_, err = env.Engine.AddTeamMember(env.Ctx, owner, healthy.ID, "worker-1", "carpenter")
	require.NoError(t, err)
	_, err = env.Engine.AddMilestone(env.Ctx, owner, healthy.ID, engine.MilestoneInput{Title: "Frame", DueDate: clock.Add(36 * time.Hour)})
	require.NoError(t, err)
	env.Engine.Documents = fixedDocs(75)

	report, err := env.Engine.RunCycle(env.Ctx)
	require.NoError(t, err)
	require.Len(t, report.Scores, 2)
	assert.Empty(t, report.Failures)

	got, err := env.Engine.GetProject(env.Ctx, owner, troubled.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.HealthScore)

	var kinds []string
	for _, a := range report.Alerts {
		kinds = append(kinds, a.Kind)
	}
	assert.Contains(t, kinds, engine.AlertLowHealth)
	assert.Contains(t, kinds, engine.AlertDeadline)
	assert.Contains(t, kinds, engine.AlertInsights)
	require.Len(t, report.Deadlines, 1)
	assert.Equal(t, domain.PriorityHigh, report.Deadlines[0].Priority)
	assert.Equal(t, 2, report.Deadlines[0].DaysUntil)

	// insights use the freshly written score
	require.Len(t, report.Insights.Insights, 1)
	assert.Equal(t, troubled.ID, report.Insights.Insights[0].ProjectID)
	require.Len(t, report.Insights.Recommendations, 1)

	hr, err := env.Engine.ProjectHealth(env.Ctx, owner, troubled.ID)
	require.NoError(t, err)
	require.Len(t, hr.History, 1)
	assert.Equal(t, 5, hr.History[0].Score)
	require.NotNil(t, hr.History[0].Factors.DocumentStatus)
	assert.Equal(t, 75, *hr.History[0].Factors.DocumentStatus)

	latest, err := env.Engine.LatestInsights(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Insights.ID, latest.ID)
}

func TestRunCycleSkipsFailedProject(t *testing.T) {
	env := newTestEnv(t)
	bad := seedTroubled(t, env, "Bad")
	good := seedTroubled(t, env, "Good")
	env.Engine.Records = failingScores{RecordStore: env.Engine.Records, failID: bad.ID}

	report, err := env.Engine.RunCycle(env.Ctx)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad.ID, report.Failures[0].ProjectID)
	assert.Equal(t, "health", report.Failures[0].Stage)
	require.Len(t, report.Scores, 1)
	assert.Equal(t, good.ID, report.Scores[0].ProjectID)

	stale, err := env.Engine.GetProject(env.Ctx, owner, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stale.HealthScore)

	// the failed project keeps its stored score, so it raises no warning
	for _, in := range report.Insights.Insights {
		assert.NotEqual(t, bad.ID, in.ProjectID)
	}
}

func TestRunCycleWithoutProjects(t *testing.T) {
	env := newTestEnv(t)
	report, err := env.Engine.RunCycle(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Scores)
	assert.Empty(t, report.Alerts)
	assert.NotEmpty(t, report.Insights.ID)
}

func TestProjectHealthWithoutDocumentTracker(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, owner, engine.ProjectInput{Name: "Quiet"})
	require.NoError(t, err)
	hr, err := env.Engine.ProjectHealth(env.Ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Nil(t, hr.Factors.DocumentStatus)
	assert.Equal(t, 100, hr.Factors.MilestoneCompletion)
	assert.Empty(t, hr.History)

	_, err = env.Engine.ProjectHealth(env.Ctx, stranger, p.ID)
	var pe domain.PermissionError
	assert.True(t, errors.As(err, &pe))
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	troubled := seedTroubled(t, env, "Troubled")
	_, err := env.Engine.CreateProject(env.Ctx, owner, engine.ProjectInput{Name: "Paused", Status: "on_hold", BudgetTotal: 500})
	require.NoError(t, err)
	_, err = env.Engine.RunCycle(env.Ctx)
	require.NoError(t, err)

	d, err := env.Engine.Dashboard(env.Ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Metrics.TotalProjects)
	assert.Equal(t, 1, d.Metrics.ActiveProjects)
	assert.Equal(t, 6, d.Metrics.UpcomingDeadlines)
	assert.Equal(t, 1500.0, d.Metrics.TotalBudget)
	assert.Equal(t, 950.0, d.Metrics.TotalSpent)
	assert.Equal(t, 45.0, d.Metrics.AverageHealth)
	require.NotNil(t, d.Insights)
	assert.Len(t, d.TodaysFocus, 5)
	assert.Len(t, d.RecentActivities, 7)

	var summary engine.ProjectSummary
	for _, s := range d.Projects {
		if s.ID == troubled.ID {
			summary = s
		}
	}
	assert.Len(t, summary.UpcomingMilestones, 3)
	assert.Equal(t, 95.0, summary.BudgetUtilization)
	require.NotNil(t, summary.RecentActivity)

	_, err = env.Engine.Dashboard(env.Ctx, stranger, owner.ID)
	var pe domain.PermissionError
	assert.True(t, errors.As(err, &pe))

	other, err := env.Engine.Dashboard(env.Ctx, admin, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, other.Metrics.TotalProjects)
}
