// Package snapshots stores append-only JSON documents: per-project health
// history and the insight snapshot written by each automation cycle.
package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"servicehub/internal/config"
	"servicehub/internal/domain"
)

const (
	collectionHealth   = "health_history"
	collectionInsights = "insights"
)

// Store is implemented by SQLStore and FileStore.
type Store interface {
	AppendHealthRecord(ctx context.Context, rec domain.HealthRecord) error
	HealthHistory(ctx context.Context, projectID string, limit int) ([]domain.HealthRecord, error)
	AppendInsights(ctx context.Context, snap domain.InsightSnapshot) error
	LatestInsights(ctx context.Context) (domain.InsightSnapshot, error)
}

// Open builds the store selected by cfg. The sql backend shares the relational
// connection; the file backend writes under cfg.Dir (relative to workspace).
func Open(cfg config.SnapshotsConfig, workspace string, sqlStore SQLStore) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "sql":
		return sqlStore, nil
	case "file":
		return NewFileStore(resolveDir(workspace, cfg.Dir))
	default:
		return nil, fmt.Errorf("unknown snapshots backend %q", cfg.Backend)
	}
}

func decodeHealth(body []byte) (domain.HealthRecord, error) {
	var rec domain.HealthRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("decode health record: %w", err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func decodeInsights(body []byte) (domain.InsightSnapshot, error) {
	var snap domain.InsightSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("decode insight snapshot: %w", err)
	}
	snap.GeneratedAt = snap.GeneratedAt.UTC()
	if snap.Insights == nil {
		snap.Insights = []domain.InsightItem{}
	}
	if snap.Recommendations == nil {
		snap.Recommendations = []domain.InsightItem{}
	}
	return snap, nil
}
