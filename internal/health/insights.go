package health

import (
	"fmt"
	"math"
	"sort"
	"time"

	"servicehub/internal/domain"
)

const (
	deadlineWindow = 3 * day
	focusLimit     = 5
)

// Deadline reports whether a milestone is approaching (due within the next
// three days, inclusive of now) and how urgent it is.
func Deadline(p domain.Project, m domain.Milestone, now time.Time) (domain.DeadlineAlert, bool) {
	if m.Status == domain.MilestoneCompleted {
		return domain.DeadlineAlert{}, false
	}
	until := m.DueDate.Sub(now)
	if until < 0 || until > deadlineWindow {
		return domain.DeadlineAlert{}, false
	}
	days := int(math.Ceil(until.Hours() / 24))
	priority := domain.PriorityHigh
	if days <= 1 {
		priority = domain.PriorityUrgent
	}
	return domain.DeadlineAlert{
		MilestoneID:    m.ID,
		MilestoneTitle: m.Title,
		ProjectID:      p.ID,
		DueDate:        m.DueDate,
		DaysUntil:      days,
		Priority:       priority,
	}, true
}

// Deadlines collects approaching milestones across projects in input order.
func Deadlines(projects []domain.ProjectDetail, now time.Time) []domain.DeadlineAlert {
	var out []domain.DeadlineAlert
	for _, p := range projects {
		for _, m := range p.Milestones {
			if alert, ok := Deadline(p.Project, m, now); ok {
				out = append(out, alert)
			}
		}
	}
	return out
}

// DailyInsights builds the snapshot for one cycle from the stored scores.
func DailyInsights(projects []domain.ProjectDetail, now time.Time) domain.InsightSnapshot {
	snap := domain.InsightSnapshot{
		GeneratedAt:     now.UTC(),
		Insights:        []domain.InsightItem{},
		Recommendations: []domain.InsightItem{},
	}
	for _, p := range projects {
		if p.HealthScore < LowHealthThreshold {
			snap.Insights = append(snap.Insights, domain.InsightItem{
				Type:      "warning",
				Message:   fmt.Sprintf("Project %q health is below optimal (%d%%)", p.Name, p.HealthScore),
				ProjectID: p.ID,
			})
		}
		if p.BudgetTotal > 0 && Spent(p) > p.BudgetTotal*BudgetInsightRatio {
			snap.Recommendations = append(snap.Recommendations, domain.InsightItem{
				Type:      "budget",
				Message:   fmt.Sprintf("Review budget allocation for %q", p.Name),
				ProjectID: p.ID,
			})
		}
	}
	return snap
}

// TodaysFocus ranks overdue milestones, milestones due in the next 24 hours
// and low-health projects, keeping source order within a priority, and
// returns at most five items.
func TodaysFocus(projects []domain.ProjectDetail, now time.Time) []domain.FocusItem {
	items := []domain.FocusItem{}
	for _, p := range projects {
		for _, m := range OverdueMilestones(p, now) {
			items = append(items, domain.FocusItem{
				Priority:    domain.PriorityUrgent,
				Type:        "milestone",
				Action:      "Complete overdue milestone: " + m.Title,
				ProjectID:   p.ID,
				ProjectName: p.Name,
				MilestoneID: m.ID,
			})
		}
	}
	tomorrow := now.Add(day)
	for _, p := range projects {
		for _, m := range p.Milestones {
			if m.Status == domain.MilestoneCompleted || m.DueDate.Before(now) || m.DueDate.After(tomorrow) {
				continue
			}
			items = append(items, domain.FocusItem{
				Priority:    domain.PriorityHigh,
				Type:        "milestone",
				Action:      m.Title + " due soon",
				ProjectID:   p.ID,
				ProjectName: p.Name,
				MilestoneID: m.ID,
			})
		}
	}
	for _, p := range projects {
		if p.HealthScore >= LowHealthThreshold {
			continue
		}
		score := p.HealthScore
		items = append(items, domain.FocusItem{
			Priority:    domain.PriorityMedium,
			Type:        "health",
			Action:      fmt.Sprintf("Review project health: %s (%d%%)", p.Name, p.HealthScore),
			ProjectID:   p.ID,
			ProjectName: p.Name,
			HealthScore: &score,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Rank() < items[j].Priority.Rank()
	})
	if len(items) > focusLimit {
		items = items[:focusLimit]
	}
	return items
}
