// Package health computes project health scores, factors, deadline signals,
// daily insights and the dashboard focus list. Everything here is a pure
// function of already-loaded records and an explicit "now".
package health

import (
	"math"
	"time"

	"servicehub/internal/domain"
)

const (
	day = 24 * time.Hour

	overduePenalty        = 10
	budgetCriticalPenalty = 20
	budgetWarningPenalty  = 10
	inactiveTeamPenalty   = 15

	budgetCriticalPct = 90.0
	budgetWarningPct  = 75.0

	scoreWindow      = 7 * day
	engagementWindow = 3 * day

	// LowHealthThreshold marks projects that get insights and focus items.
	LowHealthThreshold = 70
	// AlertThreshold marks projects that raise a low_health alert.
	AlertThreshold = 50
	// BudgetInsightRatio is the spent/budget ratio above which a budget
	// recommendation is emitted.
	BudgetInsightRatio = 0.8
)

// Spent sums all transaction amounts.
func Spent(p domain.ProjectDetail) float64 {
	var sum float64
	for _, t := range p.Transactions {
		sum += t.Amount
	}
	return sum
}

// Utilization is spent/budget as a percentage, 0 when no budget is set.
func Utilization(p domain.ProjectDetail) float64 {
	if p.BudgetTotal <= 0 {
		return 0
	}
	return Spent(p) / p.BudgetTotal * 100
}

func IsOverdue(m domain.Milestone, now time.Time) bool {
	return m.Status != domain.MilestoneCompleted && m.DueDate.Before(now)
}

func OverdueMilestones(p domain.ProjectDetail, now time.Time) []domain.Milestone {
	var out []domain.Milestone
	for _, m := range p.Milestones {
		if IsOverdue(m, now) {
			out = append(out, m)
		}
	}
	return out
}

func activeSince(members []domain.TeamMember, since time.Time) int {
	n := 0
	for _, m := range members {
		if m.LastActive.After(since) {
			n++
		}
	}
	return n
}

// Score recomputes the health score from scratch. It is clamped to [0,100].
func Score(p domain.ProjectDetail, now time.Time) int {
	score := 100
	score -= len(OverdueMilestones(p, now)) * overduePenalty

	switch util := Utilization(p); {
	case util > budgetCriticalPct:
		score -= budgetCriticalPenalty
	case util > budgetWarningPct:
		score -= budgetWarningPenalty
	}

	if activeSince(p.TeamMembers, now.Add(-scoreWindow)) == 0 {
		score -= inactiveTeamPenalty
	}
	return clamp(score, 0, 100)
}

// Factors reports the auxiliary health factors. documentStatus comes from an
// external collaborator and is passed through untouched (nil when unknown).
func Factors(p domain.ProjectDetail, now time.Time, documentStatus *int) domain.HealthFactors {
	return domain.HealthFactors{
		MilestoneCompletion: milestoneCompletion(p),
		BudgetHealth:        budgetHealth(p),
		TeamEngagement:      teamEngagement(p, now),
		DocumentStatus:      documentStatus,
	}
}

func milestoneCompletion(p domain.ProjectDetail) int {
	if len(p.Milestones) == 0 {
		return 100
	}
	done := 0
	for _, m := range p.Milestones {
		if m.Status == domain.MilestoneCompleted {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(p.Milestones)) * 100))
}

func budgetHealth(p domain.ProjectDetail) float64 {
	if p.BudgetTotal <= 0 {
		return 100
	}
	return math.Max(0, 100-Utilization(p))
}

func teamEngagement(p domain.ProjectDetail, now time.Time) int {
	if len(p.TeamMembers) == 0 {
		return 0
	}
	active := activeSince(p.TeamMembers, now.Add(-engagementWindow))
	return int(math.Round(float64(active) / float64(len(p.TeamMembers)) * 100))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
