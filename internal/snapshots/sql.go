package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"servicehub/internal/db"
	"servicehub/internal/domain"
)

// SQLStore keeps documents in the documents table of the relational database.
type SQLStore struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func (s SQLStore) insert(ctx context.Context, collection, subjectID, id string, ts string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return domain.StoreError{Op: "encode " + collection, Err: err}
	}
	if id == "" {
		id = uuid.NewString()
	}
	var subject any
	if subjectID != "" {
		subject = subjectID
	}
	_, err = s.DB.ExecContext(ctx, db.Rebind(s.Dialect, `INSERT INTO documents(id,collection,subject_id,ts,body_json) VALUES (?,?,?,?,?)`),
		id, collection, subject, ts, string(data))
	if err != nil {
		return domain.StoreError{Op: "append " + collection, Err: err}
	}
	return nil
}

func (s SQLStore) AppendHealthRecord(ctx context.Context, rec domain.HealthRecord) error {
	return s.insert(ctx, collectionHealth, rec.ProjectID, rec.ID, db.FormatTime(rec.Timestamp), rec)
}

// HealthHistory returns up to limit records for a project, newest first.
func (s SQLStore) HealthHistory(ctx context.Context, projectID string, limit int) ([]domain.HealthRecord, error) {
	rows, err := s.DB.QueryContext(ctx, db.Rebind(s.Dialect, `SELECT body_json FROM documents WHERE collection=? AND subject_id=? ORDER BY ts DESC, id DESC LIMIT ?`),
		collectionHealth, projectID, limit)
	if err != nil {
		return nil, domain.StoreError{Op: "health history", Err: err}
	}
	defer rows.Close()
	res := []domain.HealthRecord{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, domain.StoreError{Op: "health history", Err: err}
		}
		rec, err := decodeHealth([]byte(body))
		if err != nil {
			return nil, domain.StoreError{Op: "health history", Err: err}
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError{Op: "health history", Err: err}
	}
	return res, nil
}

func (s SQLStore) AppendInsights(ctx context.Context, snap domain.InsightSnapshot) error {
	return s.insert(ctx, collectionInsights, "", snap.ID, db.FormatTime(snap.GeneratedAt), snap)
}

func (s SQLStore) LatestInsights(ctx context.Context) (domain.InsightSnapshot, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, db.Rebind(s.Dialect, `SELECT body_json FROM documents WHERE collection=? ORDER BY ts DESC, id DESC LIMIT 1`),
		collectionInsights).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InsightSnapshot{}, domain.NotFoundError{Kind: "insight snapshot"}
	}
	if err != nil {
		return domain.InsightSnapshot{}, domain.StoreError{Op: "latest insights", Err: err}
	}
	snap, err := decodeInsights([]byte(body))
	if err != nil {
		return snap, domain.StoreError{Op: "latest insights", Err: err}
	}
	return snap, nil
}
