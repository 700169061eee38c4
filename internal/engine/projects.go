package engine

import (
	"context"
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/health"
)

// ProjectStatuses are the accepted project states.
var ProjectStatuses = []string{"active", "on_hold", "completed"}

func validProjectStatus(s string) bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type ProjectInput struct {
	Name        string
	Status      string
	BudgetTotal float64
}

// CreateProject starts a project owned by the caller with a full health score.
func (e Engine) CreateProject(ctx context.Context, caller domain.Caller, in ProjectInput) (domain.Project, error) {
	if err := requireCaller(caller); err != nil {
		return domain.Project{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Project{}, domain.Invalid("name", "is required")
	}
	if in.Status == "" {
		in.Status = "active"
	}
	if !validProjectStatus(in.Status) {
		return domain.Project{}, domain.Invalid("status", "must be active, on_hold or completed")
	}
	if in.BudgetTotal < 0 {
		return domain.Project{}, domain.Invalid("budget_total", "must not be negative")
	}
	now := e.now()
	p := domain.Project{
		ID:          newID(),
		OwnerID:     caller.ID,
		Name:        name,
		Status:      in.Status,
		BudgetTotal: in.BudgetTotal,
		HealthScore: 100,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Records.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	e.log().Info("project created", "project_id", p.ID, "owner_id", caller.ID)
	return p, nil
}

func isMember(p domain.ProjectDetail, userID string) bool {
	for _, m := range p.TeamMembers {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// project loads a project the caller may see: owner, team member or admin.
// With manage set, only the owner or an admin passes.
func (e Engine) project(ctx context.Context, caller domain.Caller, id string, manage bool) (domain.ProjectDetail, error) {
	p, err := e.Records.GetProjectDetail(ctx, id)
	if err != nil {
		return p, err
	}
	if caller.IsAdmin() || (caller.ID != "" && caller.ID == p.OwnerID) {
		return p, nil
	}
	if !manage && caller.ID != "" && isMember(p, caller.ID) {
		return p, nil
	}
	return domain.ProjectDetail{}, domain.PermissionError{Message: "you do not have access to this project"}
}

func (e Engine) GetProject(ctx context.Context, caller domain.Caller, id string) (domain.ProjectDetail, error) {
	return e.project(ctx, caller, id, false)
}

// ListProjects returns the projects the caller owns.
func (e Engine) ListProjects(ctx context.Context, caller domain.Caller) ([]domain.ProjectDetail, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	items, err := e.Records.ListProjectDetails(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ProjectDetail{}
	}
	return items, nil
}

type MilestoneInput struct {
	Title   string
	DueDate time.Time
	Status  domain.MilestoneStatus
}

func (e Engine) AddMilestone(ctx context.Context, caller domain.Caller, projectID string, in MilestoneInput) (domain.Milestone, error) {
	if _, err := e.project(ctx, caller, projectID, true); err != nil {
		return domain.Milestone{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Milestone{}, domain.Invalid("title", "is required")
	}
	if in.DueDate.IsZero() {
		return domain.Milestone{}, domain.Invalid("due_date", "is required")
	}
	if in.Status == "" {
		in.Status = domain.MilestonePending
	}
	if !in.Status.Valid() {
		return domain.Milestone{}, domain.Invalid("status", "must be pending, in_progress or completed")
	}
	m := domain.Milestone{
		ID:        newID(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(in.Title),
		DueDate:   in.DueDate.UTC(),
		Status:    in.Status,
		CreatedAt: e.now(),
	}
	if err := e.Records.InsertMilestone(ctx, m); err != nil {
		return domain.Milestone{}, err
	}
	e.recordActivity(ctx, projectID, caller.ID, "milestone", "Added milestone "+m.Title)
	return m, nil
}

func (e Engine) SetMilestoneStatus(ctx context.Context, caller domain.Caller, milestoneID string, status domain.MilestoneStatus) (domain.Milestone, error) {
	if !status.Valid() {
		return domain.Milestone{}, domain.Invalid("status", "must be pending, in_progress or completed")
	}
	m, err := e.Records.GetMilestone(ctx, milestoneID)
	if err != nil {
		return m, err
	}
	if _, err := e.project(ctx, caller, m.ProjectID, false); err != nil {
		return domain.Milestone{}, err
	}
	if err := e.Records.UpdateMilestoneStatus(ctx, milestoneID, status); err != nil {
		return domain.Milestone{}, err
	}
	m.Status = status
	e.recordActivity(ctx, m.ProjectID, caller.ID, "milestone", "Milestone "+m.Title+" is now "+string(status))
	return m, nil
}

type TransactionInput struct {
	Amount      float64
	Description string
}

func (e Engine) RecordTransaction(ctx context.Context, caller domain.Caller, projectID string, in TransactionInput) (domain.Transaction, error) {
	if _, err := e.project(ctx, caller, projectID, true); err != nil {
		return domain.Transaction{}, err
	}
	if in.Amount == 0 {
		return domain.Transaction{}, domain.Invalid("amount", "must not be zero")
	}
	t := domain.Transaction{
		ID:          newID(),
		ProjectID:   projectID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   e.now(),
	}
	if err := e.Records.InsertTransaction(ctx, t); err != nil {
		return domain.Transaction{}, err
	}
	e.recordActivity(ctx, projectID, caller.ID, "transaction", "Recorded transaction")
	return t, nil
}

// AddTeamMember adds a user to the project, or refreshes their role.
func (e Engine) AddTeamMember(ctx context.Context, caller domain.Caller, projectID, userID, role string) (domain.TeamMember, error) {
	if _, err := e.project(ctx, caller, projectID, true); err != nil {
		return domain.TeamMember{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return domain.TeamMember{}, domain.Invalid("user_id", "is required")
	}
	m := domain.TeamMember{ID: newID(), ProjectID: projectID, UserID: strings.TrimSpace(userID), Role: strings.TrimSpace(role), LastActive: e.now()}
	if err := e.Records.UpsertTeamMember(ctx, m); err != nil {
		return domain.TeamMember{}, err
	}
	return m, nil
}

// TouchMember marks the caller active on a project they belong to.
func (e Engine) TouchMember(ctx context.Context, caller domain.Caller, projectID string) error {
	p, err := e.project(ctx, caller, projectID, false)
	if err != nil {
		return err
	}
	if !isMember(p, caller.ID) {
		return domain.PermissionError{Message: "only team members can record activity"}
	}
	return e.Records.UpsertTeamMember(ctx, domain.TeamMember{ID: newID(), ProjectID: projectID, UserID: caller.ID, LastActive: e.now()})
}

func (e Engine) AddActivity(ctx context.Context, caller domain.Caller, projectID, kind, message string) (domain.Activity, error) {
	if _, err := e.project(ctx, caller, projectID, false); err != nil {
		return domain.Activity{}, err
	}
	if strings.TrimSpace(message) == "" {
		return domain.Activity{}, domain.Invalid("message", "is required")
	}
	if kind == "" {
		kind = "note"
	}
	a := domain.Activity{ID: newID(), ProjectID: projectID, ActorID: caller.ID, Kind: kind, Message: strings.TrimSpace(message), CreatedAt: e.now()}
	if err := e.Records.InsertActivity(ctx, a); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

// recordActivity is best effort; the primary write already succeeded.
func (e Engine) recordActivity(ctx context.Context, projectID, actorID, kind, message string) {
	a := domain.Activity{ID: newID(), ProjectID: projectID, ActorID: actorID, Kind: kind, Message: message, CreatedAt: e.now()}
	if err := e.Records.InsertActivity(ctx, a); err != nil {
		e.log().Warn("record activity failed", "project_id", projectID, "err", err)
	}
}

// HealthReport is the current score of a project with live factors and history.
type HealthReport struct {
	ProjectID   string                `json:"project_id"`
	HealthScore int                   `json:"health_score"`
	Factors     domain.HealthFactors  `json:"factors"`
	History     []domain.HealthRecord `json:"history"`
}

const healthHistoryLimit = 30

func (e Engine) ProjectHealth(ctx context.Context, caller domain.Caller, projectID string) (HealthReport, error) {
	p, err := e.project(ctx, caller, projectID, false)
	if err != nil {
		return HealthReport{}, err
	}
	docs, err := e.documentStatus(ctx, projectID)
	if err != nil {
		return HealthReport{}, err
	}
	hist, err := e.Snapshots.HealthHistory(ctx, projectID, healthHistoryLimit)
	if err != nil {
		return HealthReport{}, err
	}
	return HealthReport{
		ProjectID:   projectID,
		HealthScore: p.HealthScore,
		Factors:     health.Factors(p, e.now(), docs),
		History:     hist,
	}, nil
}
