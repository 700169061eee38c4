package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/db"
	"servicehub/internal/domain"
)

const (
	RequestCreated       = "request.created"
	RequestStatusChanged = "request.status_changed"
	ProviderVerified     = "provider.verified"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := db.FormatTime(now())
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.Rebind(w.Dialect, `INSERT INTO events(id,ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`),
		uuid.NewString(), ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

// List returns the events recorded for an entity, oldest first.
func (w Writer) List(ctx context.Context, conn *sql.DB, entityKind, entityID string) ([]domain.Event, error) {
	rows, err := conn.QueryContext(ctx, db.Rebind(w.Dialect, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE entity_kind=? AND entity_id=? ORDER BY ts ASC, id ASC`),
		entityKind, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if e.TS, err = db.ParseTime(ts); err != nil {
			return nil, fmt.Errorf("parse event ts: %w", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
