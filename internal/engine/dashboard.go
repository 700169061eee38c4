package engine

import (
	"context"
	"math"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/health"
)

const (
	upcomingWindow    = 7 * 24 * time.Hour
	summaryMilestones = 3
	recentActivityCap = 10
)

type DashboardMetrics struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	AverageHealth     float64 `json:"average_health"`
	UpcomingDeadlines int     `json:"upcoming_deadlines"`
	TotalBudget       float64 `json:"total_budget"`
	TotalSpent        float64 `json:"total_spent"`
}

type ProjectSummary struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	HealthScore        int                `json:"health_score"`
	Status             string             `json:"status"`
	UpcomingMilestones []domain.Milestone `json:"upcoming_milestones"`
	RecentActivity     *domain.Activity   `json:"recent_activity,omitempty"`
	TeamSize           int                `json:"team_size"`
	BudgetUtilization  float64            `json:"budget_utilization"`
}

type Dashboard struct {
	UserID           string                  `json:"user_id"`
	Metrics          DashboardMetrics        `json:"metrics"`
	Projects         []ProjectSummary        `json:"projects"`
	TodaysFocus      []domain.FocusItem      `json:"todays_focus"`
	Insights         *domain.InsightSnapshot `json:"insights,omitempty"`
	RecentActivities []domain.Activity       `json:"recent_activities"`
}

// Dashboard aggregates the projects owned by userID. Callers may only read
// their own dashboard unless they are admins.
func (e Engine) Dashboard(ctx context.Context, caller domain.Caller, userID string) (Dashboard, error) {
	if userID == "" {
		userID = caller.ID
	}
	if err := requireCaller(caller); err != nil {
		return Dashboard{}, err
	}
	if userID != caller.ID && !caller.IsAdmin() {
		return Dashboard{}, domain.PermissionError{Message: "you can only view your own dashboard"}
	}
	projects, err := e.Records.ListProjectDetails(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	now := e.now()
	horizon := now.Add(upcomingWindow)

	d := Dashboard{
		UserID:      userID,
		Projects:    make([]ProjectSummary, 0, len(projects)),
		TodaysFocus: health.TodaysFocus(projects, now),
	}
	ids := make([]string, 0, len(projects))
	var healthSum int
	for _, p := range projects {
		ids = append(ids, p.ID)
		d.Metrics.TotalProjects++
		if p.Status == "active" {
			d.Metrics.ActiveProjects++
		}
		healthSum += p.HealthScore
		d.Metrics.TotalBudget += p.BudgetTotal
		d.Metrics.TotalSpent += health.Spent(p)

		upcoming := []domain.Milestone{}
		for _, m := range p.Milestones {
			if m.Status == domain.MilestoneCompleted {
				continue
			}
			if m.DueDate.Before(horizon) {
				d.Metrics.UpcomingDeadlines++
			}
			if len(upcoming) < summaryMilestones {
				upcoming = append(upcoming, m)
			}
		}
		latest, err := e.Records.RecentActivities(ctx, []string{p.ID}, 1)
		if err != nil {
			return Dashboard{}, err
		}
		summary := ProjectSummary{
			ID:                 p.ID,
			Name:               p.Name,
			HealthScore:        p.HealthScore,
			Status:             p.Status,
			UpcomingMilestones: upcoming,
			TeamSize:           len(p.TeamMembers),
			BudgetUtilization:  round2(health.Utilization(p)),
		}
		if len(latest) > 0 {
			summary.RecentActivity = &latest[0]
		}
		d.Projects = append(d.Projects, summary)
	}
	if len(projects) > 0 {
		d.Metrics.AverageHealth = round2(float64(healthSum) / float64(len(projects)))
	}

	if d.RecentActivities, err = e.Records.RecentActivities(ctx, ids, recentActivityCap); err != nil {
		return Dashboard{}, err
	}
	snap, err := e.Snapshots.LatestInsights(ctx)
	switch {
	case err == nil:
		d.Insights = &snap
	case isNotFound(err):
	default:
		return Dashboard{}, err
	}
	return d, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
