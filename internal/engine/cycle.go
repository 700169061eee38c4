package engine

import (
	"context"
	"fmt"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/health"
)

// Alert kinds published by a cycle.
const (
	AlertLowHealth = "low_health"
	AlertDeadline  = "deadline"
	AlertInsights  = "insights"
)

type Alert struct {
	Kind      string                `json:"kind"`
	ProjectID string                `json:"project_id,omitempty"`
	Message   string                `json:"message"`
	Score     *int                  `json:"score,omitempty"`
	Deadline  *domain.DeadlineAlert `json:"deadline,omitempty"`
}

type ScoreResult struct {
	ProjectID string `json:"project_id"`
	Previous  int    `json:"previous"`
	Score     int    `json:"score"`
}

// CycleFailure is a per-project store failure that was logged and skipped.
type CycleFailure struct {
	Stage     string `json:"stage"`
	ProjectID string `json:"project_id,omitempty"`
	Error     string `json:"error"`
}

type CycleReport struct {
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Scores     []ScoreResult          `json:"scores"`
	Deadlines  []domain.DeadlineAlert `json:"deadlines"`
	Insights   domain.InsightSnapshot `json:"insights"`
	Alerts     []Alert                `json:"alerts"`
	Failures   []CycleFailure         `json:"failures"`
}

func (r *CycleReport) fail(stage, projectID string, err error) {
	r.Failures = append(r.Failures, CycleFailure{Stage: stage, ProjectID: projectID, Error: err.Error()})
}

// RunCycle runs the health check, then the deadline check, then daily
// insights over every project. Only a failure to load projects aborts the
// cycle; per-project write failures are logged and recorded in the report.
func (e Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	now := e.now()
	log := e.log()
	report := CycleReport{
		StartedAt: now,
		Scores:    []ScoreResult{},
		Deadlines: []domain.DeadlineAlert{},
		Alerts:    []Alert{},
		Failures:  []CycleFailure{},
	}
	projects, err := e.Records.ListProjectDetails(ctx, "")
	if err != nil {
		return report, fmt.Errorf("load projects: %w", err)
	}

	for i := range projects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p := &projects[i]
		score := health.Score(*p, now)
		if err := e.Records.UpdateHealthScore(ctx, p.ID, score, now); err != nil {
			log.Error("health score update failed", "project_id", p.ID, "err", err)
			report.fail("health", p.ID, err)
			continue
		}
		report.Scores = append(report.Scores, ScoreResult{ProjectID: p.ID, Previous: p.HealthScore, Score: score})
		p.HealthScore = score

		docs, err := e.documentStatus(ctx, p.ID)
		if err != nil {
			log.Warn("document status unavailable", "project_id", p.ID, "err", err)
		}
		rec := domain.HealthRecord{ID: newID(), ProjectID: p.ID, Score: score, Factors: health.Factors(*p, now, docs), Timestamp: now}
		if err := e.Snapshots.AppendHealthRecord(ctx, rec); err != nil {
			log.Error("health history append failed", "project_id", p.ID, "err", err)
			report.fail("health_history", p.ID, err)
		}
		if score < health.AlertThreshold {
			s := score
			report.Alerts = append(report.Alerts, Alert{
				Kind:      AlertLowHealth,
				ProjectID: p.ID,
				Message:   fmt.Sprintf("Project %q health dropped to %d", p.Name, score),
				Score:     &s,
			})
		}
	}

	report.Deadlines = health.Deadlines(projects, now)
	for i := range report.Deadlines {
		d := report.Deadlines[i]
		report.Alerts = append(report.Alerts, Alert{
			Kind:      AlertDeadline,
			ProjectID: d.ProjectID,
			Message:   fmt.Sprintf("Milestone %q is due in %d day(s)", d.MilestoneTitle, d.DaysUntil),
			Deadline:  &d,
		})
	}

	snap := health.DailyInsights(projects, now)
	snap.ID = newID()
	report.Insights = snap
	if err := e.Snapshots.AppendInsights(ctx, snap); err != nil {
		log.Error("insight snapshot append failed", "err", err)
		report.fail("insights", "", err)
	}
	if n := len(snap.Insights) + len(snap.Recommendations); n > 0 {
		report.Alerts = append(report.Alerts, Alert{Kind: AlertInsights, Message: fmt.Sprintf("%d new insight(s)", n)})
	}

	report.FinishedAt = e.now()
	log.Info("automation cycle finished",
		"projects", len(projects),
		"scored", len(report.Scores),
		"deadlines", len(report.Deadlines),
		"alerts", len(report.Alerts),
		"failures", len(report.Failures))
	return report, nil
}

// LatestInsights returns the newest insight snapshot.
func (e Engine) LatestInsights(ctx context.Context) (domain.InsightSnapshot, error) {
	return e.Snapshots.LatestInsights(ctx)
}
