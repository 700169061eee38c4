package repo

import (
	"context"
	"database/sql"
	"strings"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/events"
)

const requestColumns = `r.id,r.user_id,r.provider_id,p.user_id,r.service_category,r.description,r.location,r.preferred_date,r.budget_min,r.budget_max,COALESCE(r.urgency,''),COALESCE(r.contact_phone,''),r.status,COALESCE(r.notes,''),r.created_at,r.updated_at,r.accepted_at,r.completed_at`

const requestFrom = ` FROM service_requests r JOIN service_providers p ON p.id=r.provider_id`

type RequestFilter struct {
	UserID      string
	ProviderIDs []string
	Status      domain.RequestStatus
	Page        int
	Limit       int
}

func scanRequest(row rowScanner) (domain.ServiceRequest, error) {
	var sr domain.ServiceRequest
	var preferred, accepted, completed sql.NullString
	var budgetMin, budgetMax sql.NullFloat64
	var status, created, updated string
	err := row.Scan(&sr.ID, &sr.UserID, &sr.ProviderID, &sr.ProviderOwnerID, &sr.ServiceCategory, &sr.Description, &sr.Location,
		&preferred, &budgetMin, &budgetMax, &sr.Urgency, &sr.ContactPhone, &status, &sr.Notes, &created, &updated, &accepted, &completed)
	if err != nil {
		return sr, err
	}
	sr.Status = domain.RequestStatus(status)
	if budgetMin.Valid {
		v := budgetMin.Float64
		sr.BudgetMin = &v
	}
	if budgetMax.Valid {
		v := budgetMax.Float64
		sr.BudgetMax = &v
	}
	if sr.PreferredDate, err = parseNullTime(preferred); err != nil {
		return sr, err
	}
	if sr.AcceptedAt, err = parseNullTime(accepted); err != nil {
		return sr, err
	}
	if sr.CompletedAt, err = parseNullTime(completed); err != nil {
		return sr, err
	}
	if sr.CreatedAt, err = parseTime(created); err != nil {
		return sr, err
	}
	if sr.UpdatedAt, err = parseTime(updated); err != nil {
		return sr, err
	}
	return sr, nil
}

// InsertRequest stores a new request and its creation event.
func (r Repo) InsertRequest(ctx context.Context, sr domain.ServiceRequest) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()
	_, err = r.exec(ctx, tx, `INSERT INTO service_requests(id,user_id,provider_id,service_category,description,location,preferred_date,budget_min,budget_max,urgency,contact_phone,status,notes,created_at,updated_at,accepted_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sr.ID, sr.UserID, sr.ProviderID, sr.ServiceCategory, sr.Description, sr.Location, nullableTime(sr.PreferredDate),
		nullableFloat(sr.BudgetMin), nullableFloat(sr.BudgetMax), nullable(sr.Urgency), nullable(sr.ContactPhone), string(sr.Status),
		nullable(sr.Notes), db.FormatTime(sr.CreatedAt), db.FormatTime(sr.UpdatedAt), nullableTime(sr.AcceptedAt), nullableTime(sr.CompletedAt))
	if err != nil {
		return storeErr("insert request", err)
	}
	if err := r.Events.Append(ctx, tx, events.RequestCreated, "request", sr.ID, sr.UserID, events.EventPayload{
		"provider_id": sr.ProviderID,
		"category":    sr.ServiceCategory,
		"status":      sr.Status,
	}); err != nil {
		return storeErr("append event", err)
	}
	return storeErr("commit", tx.Commit())
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.ServiceRequest, error) {
	sr, err := scanRequest(r.DB.QueryRowContext(ctx, r.q(`SELECT `+requestColumns+requestFrom+` WHERE r.id=?`), id))
	if err != nil {
		return sr, notFoundOr("get request", "service request", id, err)
	}
	return sr, nil
}

// UpdateRequestStatus persists a transition computed by the lifecycle engine
// together with its audit event. The update is guarded on the previous status
// so a concurrent change is reported as not found instead of overwritten.
func (r Repo) UpdateRequestStatus(ctx context.Context, sr domain.ServiceRequest, from domain.RequestStatus, actorID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()
	res, err := r.exec(ctx, tx, `UPDATE service_requests SET status=?, notes=?, updated_at=?, accepted_at=?, completed_at=? WHERE id=? AND status=?`,
		string(sr.Status), nullable(sr.Notes), db.FormatTime(sr.UpdatedAt), nullableTime(sr.AcceptedAt), nullableTime(sr.CompletedAt),
		sr.ID, string(from))
	if err != nil {
		return storeErr("update request status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "service request", ID: sr.ID}
	}
	if err := r.Events.Append(ctx, tx, events.RequestStatusChanged, "request", sr.ID, actorID, events.EventPayload{
		"old_status": from,
		"new_status": sr.Status,
	}); err != nil {
		return storeErr("append event", err)
	}
	return storeErr("commit", tx.Commit())
}

func (r Repo) ListRequests(ctx context.Context, f RequestFilter) ([]domain.ServiceRequest, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "r.user_id=?")
		args = append(args, f.UserID)
	}
	if f.ProviderIDs != nil {
		if len(f.ProviderIDs) == 0 {
			return []domain.ServiceRequest{}, nil
		}
		clauses = append(clauses, "r.provider_id IN ("+placeholders(len(f.ProviderIDs))+")")
		for _, id := range f.ProviderIDs {
			args = append(args, id)
		}
	}
	if f.Status != "" {
		clauses = append(clauses, "r.status=?")
		args = append(args, string(f.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + requestColumns + requestFrom + where + ` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, offset(f.Page, f.Limit))
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, storeErr("list requests", err)
	}
	defer rows.Close()
	res := []domain.ServiceRequest{}
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, storeErr("scan request", err)
		}
		res = append(res, sr)
	}
	return res, storeErr("list requests", rows.Err())
}

// RequestEvents returns the audit trail for a request.
func (r Repo) RequestEvents(ctx context.Context, id string) ([]domain.Event, error) {
	evts, err := r.Events.List(ctx, r.DB, "request", id)
	return evts, storeErr("list events", err)
}
