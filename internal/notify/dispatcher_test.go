package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/config"
	"servicehub/internal/engine"
)

type captured struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
	events []string
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, data)
		c.sigs = append(c.sigs, r.Header.Get(SignatureHeader))
		c.events = append(c.events, r.Header.Get(EventHeader))
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func report() engine.CycleReport {
	score := 12
	return engine.CycleReport{
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Alerts: []engine.Alert{
			{Kind: engine.AlertLowHealth, ProjectID: "p1", Message: "low", Score: &score},
			{Kind: engine.AlertDeadline, ProjectID: "p2", Message: "soon"},
			{Kind: engine.AlertInsights, Message: "2 new insight(s)"},
		},
	}
}

func TestNewDisabled(t *testing.T) {
	assert.Nil(t, New(config.WebhooksConfig{Enabled: false, URL: "http://x"}, time.Second, nil))
	assert.Nil(t, New(config.WebhooksConfig{Enabled: true}, time.Second, nil))
}

func TestDeliverFiltersAndSigns(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusNoContent))
	defer srv.Close()

	d := New(config.WebhooksConfig{Enabled: true, URL: srv.URL, Secret: "s3cret", Events: []string{"low_health", "insights"}}, time.Second, nil)
	require.NotNil(t, d)
	sent, failed := d.Deliver(context.Background(), report())
	assert.Equal(t, 2, sent)
	assert.Zero(t, failed)

	require.Len(t, c.bodies, 2)
	assert.Equal(t, []string{"low_health", "insights"}, c.events)
	assert.Equal(t, Sign("s3cret", c.bodies[0]), c.sigs[0])

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.bodies[0], &body))
	assert.Equal(t, "low_health", body["event"])
	alert := body["alert"].(map[string]any)
	assert.Equal(t, "p1", alert["project_id"])
	assert.EqualValues(t, 12, alert["score"])
}

func TestDeliverCountsFailures(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError))
	defer srv.Close()

	d := New(config.WebhooksConfig{Enabled: true, URL: srv.URL}, time.Second, nil)
	sent, failed := d.Deliver(context.Background(), report())
	assert.Zero(t, sent)
	assert.Equal(t, 3, failed)
	assert.Empty(t, c.sigs[0])
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	d := New(config.WebhooksConfig{Enabled: true, URL: srv.URL, Events: []string{"deadline"}}, time.Second, nil)
	ch := make(chan engine.CycleReport, 1)
	ch <- report()
	close(ch)
	d.Run(context.Background(), ch)
	assert.Equal(t, []string{"deadline"}, c.events)
}

func TestSignDependsOnSecret(t *testing.T) {
	body := []byte(`{"event":"deadline"}`)
	a := Sign("key-a", body)
	assert.Len(t, a, len("sha256=")+64)
	assert.Equal(t, a, Sign("key-a", body))
	assert.NotEqual(t, a, Sign("key-b", body))
}
