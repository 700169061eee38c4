package repo

import (
	"context"
	"time"

	"servicehub/internal/db"
	"servicehub/internal/domain"
)

const projectColumns = `id,owner_id,name,status,budget_total,health_score,created_at,updated_at`

func scanProject(row rowScanner) (domain.Project, error) {
	var p domain.Project
	var created, updated string
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Status, &p.BudgetTotal, &p.HealthScore, &created, &updated); err != nil {
		return p, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, err
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.exec(ctx, nil, `INSERT INTO projects(id,owner_id,name,status,budget_total,health_score,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.OwnerID, p.Name, p.Status, p.BudgetTotal, p.HealthScore, db.FormatTime(p.CreatedAt), db.FormatTime(p.UpdatedAt))
	return storeErr("insert project", err)
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, r.q(`SELECT `+projectColumns+` FROM projects WHERE id=?`), id))
	if err != nil {
		return p, notFoundOr("get project", "project", id, err)
	}
	return p, nil
}

// ListProjects returns projects for an owner, or every project when ownerID is empty.
func (r Repo) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id=?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, storeErr("list projects", err)
	}
	defer rows.Close()
	res := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, storeErr("scan project", err)
		}
		res = append(res, p)
	}
	return res, storeErr("list projects", rows.Err())
}

// UpdateHealthScore overwrites the derived score.
func (r Repo) UpdateHealthScore(ctx context.Context, projectID string, score int, at time.Time) error {
	res, err := r.exec(ctx, nil, `UPDATE projects SET health_score=?, updated_at=? WHERE id=?`, score, db.FormatTime(at), projectID)
	if err != nil {
		return storeErr("update health score", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "project", ID: projectID}
	}
	return nil
}

func (r Repo) GetProjectDetail(ctx context.Context, id string) (domain.ProjectDetail, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return domain.ProjectDetail{}, err
	}
	return r.loadDetail(ctx, p)
}

// ListProjectDetails loads every project (optionally for one owner) with its
// milestones, transactions and team members.
func (r Repo) ListProjectDetails(ctx context.Context, ownerID string) ([]domain.ProjectDetail, error) {
	projects, err := r.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.ProjectDetail, 0, len(projects))
	for _, p := range projects {
		d, err := r.loadDetail(ctx, p)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) loadDetail(ctx context.Context, p domain.Project) (domain.ProjectDetail, error) {
	d := domain.ProjectDetail{Project: p}
	var err error
	if d.Milestones, err = r.ListMilestones(ctx, p.ID); err != nil {
		return d, err
	}
	if d.Transactions, err = r.ListTransactions(ctx, p.ID); err != nil {
		return d, err
	}
	if d.TeamMembers, err = r.ListTeamMembers(ctx, p.ID); err != nil {
		return d, err
	}
	return d, nil
}

func (r Repo) InsertMilestone(ctx context.Context, m domain.Milestone) error {
	_, err := r.exec(ctx, nil, `INSERT INTO milestones(id,project_id,title,due_date,status,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Title, db.FormatTime(m.DueDate), string(m.Status), db.FormatTime(m.CreatedAt))
	return storeErr("insert milestone", err)
}

func scanMilestone(row rowScanner) (domain.Milestone, error) {
	var m domain.Milestone
	var due, status, created string
	if err := row.Scan(&m.ID, &m.ProjectID, &m.Title, &due, &status, &created); err != nil {
		return m, err
	}
	m.Status = domain.MilestoneStatus(status)
	var err error
	if m.DueDate, err = parseTime(due); err != nil {
		return m, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return m, err
	}
	return m, nil
}

func (r Repo) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	m, err := scanMilestone(r.DB.QueryRowContext(ctx, r.q(`SELECT id,project_id,title,due_date,status,created_at FROM milestones WHERE id=?`), id))
	if err != nil {
		return m, notFoundOr("get milestone", "milestone", id, err)
	}
	return m, nil
}

func (r Repo) UpdateMilestoneStatus(ctx context.Context, id string, status domain.MilestoneStatus) error {
	res, err := r.exec(ctx, nil, `UPDATE milestones SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return storeErr("update milestone", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "milestone", ID: id}
	}
	return nil
}

// ListMilestones returns a project's milestones ordered by due date.
func (r Repo) ListMilestones(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,project_id,title,due_date,status,created_at FROM milestones WHERE project_id=? ORDER BY due_date ASC, id ASC`), projectID)
	if err != nil {
		return nil, storeErr("list milestones", err)
	}
	defer rows.Close()
	res := []domain.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, storeErr("scan milestone", err)
		}
		res = append(res, m)
	}
	return res, storeErr("list milestones", rows.Err())
}

func (r Repo) InsertTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := r.exec(ctx, nil, `INSERT INTO transactions(id,project_id,amount,description,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Amount, nullable(t.Description), db.FormatTime(t.CreatedAt))
	return storeErr("insert transaction", err)
}

// ListTransactions returns a project's transactions, newest first.
func (r Repo) ListTransactions(ctx context.Context, projectID string) ([]domain.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,project_id,amount,COALESCE(description,''),created_at FROM transactions WHERE project_id=? ORDER BY created_at DESC, id DESC`), projectID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()
	res := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		var created string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Amount, &t.Description, &created); err != nil {
			return nil, storeErr("scan transaction", err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, storeErr("scan transaction", err)
		}
		res = append(res, t)
	}
	return res, storeErr("list transactions", rows.Err())
}

// UpsertTeamMember adds a member or refreshes role and last activity.
func (r Repo) UpsertTeamMember(ctx context.Context, m domain.TeamMember) error {
	_, err := r.exec(ctx, nil, `INSERT INTO team_members(id,project_id,user_id,role,last_active) VALUES (?,?,?,?,?)
ON CONFLICT(project_id,user_id) DO UPDATE SET role=COALESCE(excluded.role, team_members.role), last_active=excluded.last_active`,
		m.ID, m.ProjectID, m.UserID, nullable(m.Role), db.FormatTime(m.LastActive))
	return storeErr("upsert team member", err)
}

func (r Repo) ListTeamMembers(ctx context.Context, projectID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,project_id,user_id,COALESCE(role,''),last_active FROM team_members WHERE project_id=? ORDER BY user_id ASC`), projectID)
	if err != nil {
		return nil, storeErr("list team members", err)
	}
	defer rows.Close()
	res := []domain.TeamMember{}
	for rows.Next() {
		var m domain.TeamMember
		var last string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &last); err != nil {
			return nil, storeErr("scan team member", err)
		}
		if m.LastActive, err = parseTime(last); err != nil {
			return nil, storeErr("scan team member", err)
		}
		res = append(res, m)
	}
	return res, storeErr("list team members", rows.Err())
}

func (r Repo) InsertActivity(ctx context.Context, a domain.Activity) error {
	_, err := r.exec(ctx, nil, `INSERT INTO activities(id,project_id,actor_id,kind,message,created_at) VALUES (?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.ActorID, a.Kind, a.Message, db.FormatTime(a.CreatedAt))
	return storeErr("insert activity", err)
}

// RecentActivities returns the newest activities across the given projects.
func (r Repo) RecentActivities(ctx context.Context, projectIDs []string, limit int) ([]domain.Activity, error) {
	res := []domain.Activity{}
	if len(projectIDs) == 0 {
		return res, nil
	}
	args := make([]any, 0, len(projectIDs)+1)
	for _, id := range projectIDs {
		args = append(args, id)
	}
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,project_id,actor_id,kind,message,created_at FROM activities WHERE project_id IN (`+placeholders(len(projectIDs))+`) ORDER BY created_at DESC, id DESC LIMIT ?`), args...)
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.Activity
		var created string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ActorID, &a.Kind, &a.Message, &created); err != nil {
			return nil, storeErr("scan activity", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, storeErr("scan activity", err)
		}
		res = append(res, a)
	}
	return res, storeErr("list activities", rows.Err())
}
