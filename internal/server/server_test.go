package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/engine"
	"servicehub/internal/logging"
	"servicehub/internal/migrate"
	servicehubsdk "servicehub/sdk/go"
)

const testSecret = "test-secret"

var testClock = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	engine engine.Engine
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(conn, db.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, db.SQLite)
	e.Now = func() time.Time { return testClock }
	cfg := Config{Engine: e, Auth: AuthConfig{JWTSecret: testSecret}}
	if mutate != nil {
		mutate(&cfg)
	}
	handler, err := New(cfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), engine: e}
}

// as returns an SDK client authenticated as userID.
func (s *testServer) as(t *testing.T, userID string, role domain.Role) *servicehubsdk.Client {
	t.Helper()
	if userID == "" {
		return servicehubsdk.New(s.URL, "")
	}
	token, err := IssueToken(testSecret, userID, role, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return servicehubsdk.New(s.URL, token)
}

func apiErr(t *testing.T, err error) *servicehubsdk.APIError {
	t.Helper()
	var ae *servicehubsdk.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error, got %v", err)
	}
	return ae
}

func providerInput() servicehubsdk.ProviderInput {
	return servicehubsdk.ProviderInput{
		BusinessName:        "Pipe Masters",
		BusinessDescription: "Residential plumbing and emergency repairs",
		Category:            "plumbing",
		Location:            "Lyon",
		Email:               "hello@pipes.example",
	}
}

func requestInput(providerID string) servicehubsdk.RequestInput {
	return servicehubsdk.RequestInput{
		ProviderID:      providerID,
		ServiceCategory: "plumbing",
		Description:     "Kitchen sink is leaking under the cabinet",
		Location:        "Lyon 3e",
		Urgency:         "high",
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)
	client := srv.as(t, "client-1", domain.RoleUser)

	provider, err := owner.CreateProvider(ctx, providerInput())
	require.NoError(t, err)
	assert.False(t, provider.Verified)

	sr, err := client.CreateRequest(ctx, requestInput(provider.ID))
	require.NoError(t, err)
	assert.Equal(t, "pending", sr.Status)

	_, err = client.UpdateRequestStatus(ctx, sr.ID, "accepted", "")
	assert.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	for _, status := range []string{"accepted", "in_progress", "completed"} {
		sr, err = owner.UpdateRequestStatus(ctx, sr.ID, status, "")
		if err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
		assert.Equal(t, status, sr.Status)
	}
	require.NotNil(t, sr.AcceptedAt)
	require.NotNil(t, sr.CompletedAt)

	_, err = owner.UpdateRequestStatus(ctx, sr.ID, "pending", "")
	ae := apiErr(t, err)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Equal(t, "validation_failed", ae.Code)
	assert.Equal(t, "completed", ae.Details["current"])
	assert.Equal(t, "pending", ae.Details["attempted"])

	events, err := client.RequestEvents(ctx, sr.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "request.created", events[0].Type)

	incoming, err := owner.ProviderRequests(ctx, "completed", 0, 0)
	require.NoError(t, err)
	require.Len(t, incoming.Requests, 1)
	assert.Equal(t, 20, incoming.Pagination.ItemsPerPage)

	_, err = srv.as(t, "stranger", domain.RoleUser).GetRequest(ctx, sr.ID)
	assert.Equal(t, "forbidden", apiErr(t, err).Code)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)
	p, err := owner.CreateProvider(ctx, providerInput())
	require.NoError(t, err)

	anon := srv.as(t, "", "")
	list, err := anon.ListProviders(ctx, servicehubsdk.ProviderQuery{})
	require.NoError(t, err)
	require.Len(t, list.Providers, 1)
	assert.Equal(t, 1, list.Pagination.TotalItems)

	got, err := anon.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pipe Masters", got.BusinessName)

	_, err = anon.CreateRequest(ctx, requestInput(p.ID))
	ae := apiErr(t, err)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Equal(t, "unauthorized", ae.Code)

	forged, err := IssueToken("other-secret", "owner-1", domain.RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = servicehubsdk.New(srv.URL, forged).ListProviders(ctx, servicehubsdk.ProviderQuery{})
	assert.Equal(t, http.StatusUnauthorized, apiErr(t, err).StatusCode)

	expired, err := IssueToken(testSecret, "owner-1", domain.RoleUser, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = servicehubsdk.New(srv.URL, expired).Dashboard(ctx)
	assert.Equal(t, http.StatusUnauthorized, apiErr(t, err).StatusCode)
}

func TestProviderVerificationRequiresAdmin(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)
	p, err := owner.CreateProvider(ctx, providerInput())
	require.NoError(t, err)

	_, err = owner.VerifyProvider(ctx, p.ID, true)
	assert.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	verified, err := srv.as(t, "admin-1", domain.RoleAdmin).VerifyProvider(ctx, p.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	require.NotNil(t, verified.VerifiedAt)

	yes := true
	list, err := owner.ListProviders(ctx, servicehubsdk.ProviderQuery{Verified: &yes})
	require.NoError(t, err)
	assert.Len(t, list.Providers, 1)

	require.NoError(t, owner.DeleteProvider(ctx, p.ID))
	_, err = owner.GetProvider(ctx, p.ID)
	assert.Equal(t, "not_found", apiErr(t, err).Code)
}

func TestRequestBodyValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)

	in := providerInput()
	in.BusinessDescription = "short"
	_, err := owner.CreateProvider(ctx, in)
	ae := apiErr(t, err)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Equal(t, "validation_failed", ae.Code)
	assert.Equal(t, "business_description", ae.Details["field"])

	p, err := owner.CreateProvider(ctx, providerInput())
	require.NoError(t, err)
	bad := requestInput(p.ID)
	lo, hi := 500.0, 100.0
	bad.BudgetMin, bad.BudgetMax = &lo, &hi
	_, err = owner.CreateRequest(ctx, bad)
	assert.Equal(t, "validation_failed", apiErr(t, err).Code)

	_, err = owner.CreateRequest(ctx, requestInput("missing"))
	assert.Equal(t, http.StatusNotFound, apiErr(t, err).StatusCode)

	_, err = owner.ListProviders(ctx, servicehubsdk.ProviderQuery{Limit: 500})
	assert.Equal(t, "validation_failed", apiErr(t, err).Code)
}

func TestRequestCreationIsRateLimited(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.RateRequests = 2
		cfg.RateWindow = time.Hour
	})
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)
	p, err := owner.CreateProvider(ctx, providerInput())
	require.NoError(t, err)

	client := srv.as(t, "client-1", domain.RoleUser)
	for i := 0; i < 2; i++ {
		_, err := client.CreateRequest(ctx, requestInput(p.ID))
		require.NoError(t, err)
	}
	_, err = client.CreateRequest(ctx, requestInput(p.ID))
	ae := apiErr(t, err)
	assert.Equal(t, http.StatusTooManyRequests, ae.StatusCode)
	assert.Equal(t, "rate_limited", ae.Code)

	// limits are per user
	_, err = srv.as(t, "client-2", domain.RoleUser).CreateRequest(ctx, requestInput(p.ID))
	require.NoError(t, err)
}

type countingTrigger struct{ calls int }

func (b *countingTrigger) Trigger(ctx context.Context) (engine.CycleReport, error) {
	b.calls++
	return engine.CycleReport{StartedAt: testClock}, nil
}

func TestAutomationAndDashboard(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	owner := srv.as(t, "owner-1", domain.RoleUser)

	p, err := owner.CreateProject(ctx, "Kitchen remodel", 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, p.HealthScore)
	for i := 1; i <= 6; i++ {
		_, err := owner.AddMilestone(ctx, p.ID, "late", testClock.Add(-time.Duration(i)*24*time.Hour))
		require.NoError(t, err)
	}

	_, err = owner.RunAutomation(ctx)
	assert.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	report, err := srv.as(t, "admin-1", domain.RoleAdmin).RunAutomation(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	require.NotEmpty(t, report.Alerts)
	assert.Equal(t, "low_health", report.Alerts[0]["kind"])

	d, err := owner.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", d.UserID)
	assert.Equal(t, 1, d.Metrics.TotalProjects)
	assert.Equal(t, 25.0, d.Metrics.AverageHealth)
	assert.NotEmpty(t, d.TodaysFocus)
}

func TestAutomationUsesTrigger(t *testing.T) {
	trig := &countingTrigger{}
	srv := newTestServer(t, func(cfg *Config) { cfg.Automation = trig })
	_, err := srv.as(t, "admin-1", domain.RoleAdmin).RunAutomation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, trig.calls)
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.Checks = map[string]string{"snapshots": "sql"}
	})
	for _, path := range []string{"/api/health", "/api/health/detailed", "/api/ready", "/api/live", "/api/openapi.json"} {
		res, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d: %s", path, res.StatusCode, body)
		}
		if path == "/api/health/detailed" {
			var h HealthResponse
			require.NoError(t, json.Unmarshal(body, &h))
			assert.Equal(t, "healthy", h.Status)
			assert.Equal(t, "sql", h.Checks["snapshots"])
			assert.Equal(t, "ok", h.Checks["store"])
		}
	}
}

func TestHandleErrorMapping(t *testing.T) {
	a := &api{log: logging.Discard()}
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.Invalid("name", "is required"), http.StatusBadRequest, "validation_failed"},
		{domain.PermissionError{}, http.StatusForbidden, "forbidden"},
		{domain.NotFoundError{Kind: "provider", ID: "x"}, http.StatusNotFound, "not_found"},
		{domain.StoreError{Op: "insert", Err: errors.New("disk")}, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		got := a.handleError(tc.err).(*apiError)
		assert.Equal(t, tc.status, got.status, tc.err.Error())
		assert.Equal(t, tc.code, got.Body.Code, tc.err.Error())
	}
	store := a.handleError(domain.StoreError{Op: "insert", Err: errors.New("disk")}).(*apiError)
	assert.Equal(t, "internal error", store.Body.Message)
}
