package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/config"
	"servicehub/internal/snapshots"
)

func TestOpenWiresConfiguredBackends(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default()
	cfg.Snapshots.Backend = "file"
	cfg.Snapshots.Dir = "docs"

	rt, err := Open(context.Background(), workspace, cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	if _, ok := rt.Engine.Snapshots.(snapshots.FileStore); !ok {
		t.Fatalf("expected file snapshot store, got %T", rt.Engine.Snapshots)
	}
	report, err := rt.Engine.RunCycle(context.Background())
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(workspace, "docs", "insights"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NotEmpty(t, report.Insights.ID)

	checks := rt.Checks()
	assert.Equal(t, "file", checks["snapshots"])
	assert.Equal(t, "sqlite", checks["database"])
}

func TestHandlerServesHealth(t *testing.T) {
	rt, err := Open(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer rt.Close()

	h, err := rt.Handler("secret", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServeRequiresSecret(t *testing.T) {
	rt, err := Open(context.Background(), t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer rt.Close()
	assert.Error(t, rt.Serve(context.Background(), "127.0.0.1:0", ""))
}
