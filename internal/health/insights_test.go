package health_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/health"
)

func TestDeadlineWindow(t *testing.T) {
	p := domain.Project{ID: "p1"}
	tests := []struct {
		name     string
		due      time.Duration
		status   domain.MilestoneStatus
		ok       bool
		priority domain.Priority
	}{
		{"due now", 0, domain.MilestonePending, true, domain.PriorityUrgent},
		{"due in 12h", 12 * time.Hour, domain.MilestonePending, true, domain.PriorityUrgent},
		{"due in exactly 1 day", 24 * time.Hour, domain.MilestoneInProgress, true, domain.PriorityUrgent},
		{"due in 2 days", 48 * time.Hour, domain.MilestonePending, true, domain.PriorityHigh},
		{"due in exactly 3 days", 72 * time.Hour, domain.MilestonePending, true, domain.PriorityHigh},
		{"due in 4 days", 96 * time.Hour, domain.MilestonePending, false, ""},
		{"already overdue", -time.Hour, domain.MilestonePending, false, ""},
		{"completed", time.Hour, domain.MilestoneCompleted, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, ok := health.Deadline(p, milestone("m", now.Add(tt.due), tt.status), now)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.priority, alert.Priority)
				assert.Equal(t, "p1", alert.ProjectID)
			}
		})
	}
}

func TestDailyInsights(t *testing.T) {
	low := project(1000, 100)
	low.ID, low.Name, low.HealthScore = "low", "Low", 55
	spender := project(1000, 810)
	spender.ID, spender.Name, spender.HealthScore = "spend", "Spender", 90
	edge := project(1000, 800)
	edge.ID, edge.Name, edge.HealthScore = "edge", "Edge", 70

	snap := health.DailyInsights([]domain.ProjectDetail{low, spender, edge}, now)
	assert.True(t, snap.GeneratedAt.Equal(now))
	require.Len(t, snap.Insights, 1)
	assert.Equal(t, "low", snap.Insights[0].ProjectID)
	assert.Equal(t, "warning", snap.Insights[0].Type)
	assert.Contains(t, snap.Insights[0].Message, "(55%)")
	require.Len(t, snap.Recommendations, 1)
	assert.Equal(t, "spend", snap.Recommendations[0].ProjectID)
	assert.Equal(t, "budget", snap.Recommendations[0].Type)
}

func TestDailyInsightsEmpty(t *testing.T) {
	snap := health.DailyInsights(nil, now)
	assert.NotNil(t, snap.Insights)
	assert.NotNil(t, snap.Recommendations)
	assert.Empty(t, snap.Insights)
}

func TestTodaysFocusOrdering(t *testing.T) {
	p := project(0)
	p.HealthScore = 60
	p.Milestones = []domain.Milestone{
		milestone("late-1", now.Add(-48*time.Hour), domain.MilestonePending),
		milestone("late-2", now.Add(-time.Hour), domain.MilestoneInProgress),
	}
	items := health.TodaysFocus([]domain.ProjectDetail{p}, now)
	require.Len(t, items, 3)
	assert.Equal(t, domain.PriorityUrgent, items[0].Priority)
	assert.Equal(t, "late-1", items[0].MilestoneID)
	assert.Equal(t, domain.PriorityUrgent, items[1].Priority)
	assert.Equal(t, "late-2", items[1].MilestoneID)
	assert.Equal(t, domain.PriorityMedium, items[2].Priority)
	require.NotNil(t, items[2].HealthScore)
	assert.Equal(t, 60, *items[2].HealthScore)
}

func TestTodaysFocusTruncatesAndKeepsSourceOrder(t *testing.T) {
	a := project(0)
	a.ID, a.Name, a.HealthScore = "a", "A", 40
	a.Milestones = []domain.Milestone{
		milestone("soon-a", now.Add(2*time.Hour), domain.MilestonePending),
		milestone("late-a", now.Add(-2*time.Hour), domain.MilestonePending),
	}
	b := project(0)
	b.ID, b.Name, b.HealthScore = "b", "B", 30
	b.Milestones = []domain.Milestone{
		milestone("late-b1", now.Add(-3*time.Hour), domain.MilestonePending),
		milestone("late-b2", now.Add(-4*time.Hour), domain.MilestonePending),
		milestone("later-b", now.Add(5*24*time.Hour), domain.MilestonePending),
	}
	items := health.TodaysFocus([]domain.ProjectDetail{a, b}, now)
	require.Len(t, items, 5)
	var ids []string
	for _, it := range items {
		if it.MilestoneID != "" {
			ids = append(ids, it.MilestoneID)
		} else {
			ids = append(ids, "health-"+it.ProjectID)
		}
	}
	assert.Equal(t, []string{"late-a", "late-b1", "late-b2", "soon-a", "health-a"}, ids)
}
