package snapshots_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/config"
	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/migrate"
	"servicehub/internal/snapshots"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func stores(t *testing.T) map[string]snapshots.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn, db.SQLite)
	require.NoError(t, err)
	fs, err := snapshots.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]snapshots.Store{
		"sql":  snapshots.SQLStore{DB: conn, Dialect: db.SQLite},
		"file": fs,
	}
}

func docStatus(v int) *int { return &v }

func TestHealthHistoryNewestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, score := range []int{90, 80, 70} {
				require.NoError(t, store.AppendHealthRecord(ctx, domain.HealthRecord{
					ProjectID: "p1",
					Score:     score,
					Factors:   domain.HealthFactors{MilestoneCompletion: 50, BudgetHealth: 40, TeamEngagement: 100, DocumentStatus: docStatus(i)},
					Timestamp: t0.Add(time.Duration(i) * time.Hour),
				}))
			}
			require.NoError(t, store.AppendHealthRecord(ctx, domain.HealthRecord{ProjectID: "p2", Score: 10, Timestamp: t0}))

			hist, err := store.HealthHistory(ctx, "p1", 2)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, 70, hist[0].Score)
			assert.Equal(t, 80, hist[1].Score)
			want := domain.HealthFactors{MilestoneCompletion: 50, BudgetHealth: 40, TeamEngagement: 100, DocumentStatus: docStatus(2)}
			if diff := cmp.Diff(want, hist[0].Factors); diff != "" {
				t.Fatalf("factors mismatch (-want +got):\n%s", diff)
			}
			assert.True(t, hist[0].Timestamp.Equal(t0.Add(2*time.Hour)))

			empty, err := store.HealthHistory(ctx, "nobody", 5)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestLatestInsights(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.LatestInsights(ctx)
			assert.True(t, errors.Is(err, domain.ErrNotFound))

			require.NoError(t, store.AppendInsights(ctx, domain.InsightSnapshot{ID: "s1", GeneratedAt: t0,
				Insights: []domain.InsightItem{{Type: "warning", Message: "old", ProjectID: "p1"}}}))
			require.NoError(t, store.AppendInsights(ctx, domain.InsightSnapshot{ID: "s2", GeneratedAt: t0.Add(24 * time.Hour),
				Recommendations: []domain.InsightItem{{Type: "budget", Message: "new", ProjectID: "p1"}}}))

			snap, err := store.LatestInsights(ctx)
			require.NoError(t, err)
			assert.Equal(t, "s2", snap.ID)
			assert.NotNil(t, snap.Insights)
			require.Len(t, snap.Recommendations, 1)
			assert.Equal(t, "new", snap.Recommendations[0].Message)
		})
	}
}

func TestFileStoreRejectsPathSegments(t *testing.T) {
	fs, err := snapshots.NewFileStore(t.TempDir())
	require.NoError(t, err)
	err = fs.AppendHealthRecord(context.Background(), domain.HealthRecord{ProjectID: "../escape", Timestamp: t0})
	var ve domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestOpenSelectsBackend(t *testing.T) {
	ws := t.TempDir()
	sqlStore := snapshots.SQLStore{Dialect: db.SQLite}

	s, err := snapshots.Open(config.SnapshotsConfig{Backend: "sql"}, ws, sqlStore)
	require.NoError(t, err)
	assert.IsType(t, snapshots.SQLStore{}, s)

	s, err = snapshots.Open(config.SnapshotsConfig{Backend: "file"}, ws, sqlStore)
	require.NoError(t, err)
	fs, ok := s.(snapshots.FileStore)
	require.True(t, ok)
	assert.DirExists(t, fs.Dir)

	_, err = snapshots.Open(config.SnapshotsConfig{Backend: "mongo"}, ws, sqlStore)
	assert.Error(t, err)
}
