package repo_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/migrate"
	"servicehub/internal/repo"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn, db.SQLite)
	require.NoError(t, err)
	r := repo.New(conn, db.SQLite)
	tick := 0
	r.Events.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return r
}

func seedProvider(t *testing.T, r repo.Repo, id, owner string, mod func(*domain.Provider)) domain.Provider {
	t.Helper()
	p := domain.Provider{
		ID:                  id,
		UserID:              owner,
		BusinessName:        "Biz " + id,
		BusinessDescription: "Plumbing and repairs",
		Category:            "plumbing",
		Location:            "Lyon",
		Email:               id + "@example.com",
		CreatedAt:           base,
		UpdatedAt:           base,
	}
	if mod != nil {
		mod(&p)
	}
	require.NoError(t, r.InsertProvider(context.Background(), p))
	return p
}

func TestProviderRoundTripAndNotFound(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	p := seedProvider(t, r, "pv1", "owner-1", func(p *domain.Provider) { p.Website = "https://pipes.example" })

	got, err := r.GetProvider(ctx, "pv1")
	require.NoError(t, err)
	assert.Equal(t, p.BusinessName, got.BusinessName)
	assert.Equal(t, "https://pipes.example", got.Website)
	assert.True(t, got.CreatedAt.Equal(base))
	assert.Nil(t, got.VerifiedAt)

	_, err = r.GetProvider(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProviderVerifyWritesEvent(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	p := seedProvider(t, r, "pv1", "owner-1", nil)
	at := base.Add(time.Hour)
	p.Verified, p.VerifiedAt, p.UpdatedAt = true, &at, at
	require.NoError(t, r.SetProviderVerified(ctx, p, "admin-1"))

	got, err := r.GetProvider(ctx, "pv1")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	require.NotNil(t, got.VerifiedAt)
	assert.True(t, got.VerifiedAt.Equal(at))
}

func TestListProvidersFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	seedProvider(t, r, "a", "u1", func(p *domain.Provider) { p.RatingAverage = 3 })
	seedProvider(t, r, "b", "u2", func(p *domain.Provider) { p.Verified = true; p.RatingAverage = 1 })
	seedProvider(t, r, "c", "u3", func(p *domain.Provider) { p.RatingAverage = 4.5; p.Location = "Paris" })
	seedProvider(t, r, "d", "u4", func(p *domain.Provider) { p.Category = "electrical" })

	items, total, err := r.ListProviders(ctx, repo.ProviderFilter{Category: "plumbing", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)

	items, total, err = r.ListProviders(ctx, repo.ProviderFilter{Location: "paris", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)

	items, total, err = r.ListProviders(ctx, repo.ProviderFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, items, 2)
}

func TestRequestLifecyclePersistence(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	seedProvider(t, r, "pv1", "owner-1", nil)
	budget := 250.0
	sr := domain.ServiceRequest{
		ID:              "req-1",
		UserID:          "client-1",
		ProviderID:      "pv1",
		ServiceCategory: "plumbing",
		Description:     "Leaking sink in the kitchen",
		Location:        "Lyon",
		BudgetMax:       &budget,
		Status:          domain.StatusPending,
		CreatedAt:       base,
		UpdatedAt:       base,
	}
	require.NoError(t, r.InsertRequest(ctx, sr))

	got, err := r.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.ProviderOwnerID)
	require.NotNil(t, got.BudgetMax)
	assert.Equal(t, 250.0, *got.BudgetMax)
	assert.Nil(t, got.BudgetMin)

	at := base.Add(time.Hour)
	got.Status, got.UpdatedAt, got.AcceptedAt = domain.StatusAccepted, at, &at
	require.NoError(t, r.UpdateRequestStatus(ctx, got, domain.StatusPending, "owner-1"))

	// A second write based on the stale status must not overwrite.
	err = r.UpdateRequestStatus(ctx, got, domain.StatusPending, "owner-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	after, err := r.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, after.Status)
	require.NotNil(t, after.AcceptedAt)

	evts, err := r.RequestEvents(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "request.created", evts[0].Type)
	assert.Equal(t, "request.status_changed", evts[1].Type)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(evts[1].Payload), &payload))
	assert.Equal(t, "pending", payload["old_status"])
	assert.Equal(t, "accepted", payload["new_status"])
}

func TestListRequestsByProvider(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	seedProvider(t, r, "pv1", "owner-1", nil)
	seedProvider(t, r, "pv2", "owner-2", nil)
	for i, pid := range []string{"pv1", "pv2", "pv1"} {
		require.NoError(t, r.InsertRequest(ctx, domain.ServiceRequest{
			ID: "req-" + string(rune('a'+i)), UserID: "client-1", ProviderID: pid, ServiceCategory: "plumbing",
			Description: "Fix the boiler", Location: "Lyon", Status: domain.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute), UpdatedAt: base,
		}))
	}
	owned, err := r.ProviderIDsOwnedBy(ctx, "owner-1")
	require.NoError(t, err)
	items, err := r.ListRequests(ctx, repo.RequestFilter{ProviderIDs: owned, Limit: 20})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "req-c", items[0].ID)
	assert.Equal(t, "req-a", items[1].ID)

	none, err := r.ListRequests(ctx, repo.RequestFilter{ProviderIDs: []string{}, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := r.ListRequests(ctx, repo.RequestFilter{UserID: "client-1", Limit: 20})
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestProjectDetailAndTeamUpsert(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	require.NoError(t, r.InsertProject(ctx, domain.Project{ID: "p1", OwnerID: "u1", Name: "Kitchen", Status: "active", BudgetTotal: 1000, HealthScore: 100, CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, r.InsertMilestone(ctx, domain.Milestone{ID: "m2", ProjectID: "p1", Title: "Tiles", DueDate: base.Add(48 * time.Hour), Status: domain.MilestonePending, CreatedAt: base}))
	require.NoError(t, r.InsertMilestone(ctx, domain.Milestone{ID: "m1", ProjectID: "p1", Title: "Demolition", DueDate: base.Add(24 * time.Hour), Status: domain.MilestonePending, CreatedAt: base}))
	require.NoError(t, r.InsertTransaction(ctx, domain.Transaction{ID: "t1", ProjectID: "p1", Amount: 300, CreatedAt: base}))
	require.NoError(t, r.UpsertTeamMember(ctx, domain.TeamMember{ID: "tm1", ProjectID: "p1", UserID: "u2", Role: "electrician", LastActive: base}))
	require.NoError(t, r.UpsertTeamMember(ctx, domain.TeamMember{ID: "tm-ignored", ProjectID: "p1", UserID: "u2", LastActive: base.Add(time.Hour)}))

	d, err := r.GetProjectDetail(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, d.Milestones, 2)
	assert.Equal(t, "m1", d.Milestones[0].ID)
	require.Len(t, d.Transactions, 1)
	require.Len(t, d.TeamMembers, 1)
	assert.Equal(t, "electrician", d.TeamMembers[0].Role)
	assert.True(t, d.TeamMembers[0].LastActive.Equal(base.Add(time.Hour)))

	require.NoError(t, r.UpdateHealthScore(ctx, "p1", 70, base))
	require.NoError(t, r.UpdateMilestoneStatus(ctx, "m1", domain.MilestoneCompleted))
	d, err = r.GetProjectDetail(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 70, d.HealthScore)
	assert.Equal(t, domain.MilestoneCompleted, d.Milestones[0].Status)

	assert.True(t, errors.Is(r.UpdateHealthScore(ctx, "nope", 1, base), domain.ErrNotFound))
}

func TestRecentActivities(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	require.NoError(t, r.InsertProject(ctx, domain.Project{ID: "p1", OwnerID: "u1", Name: "A", Status: "active", CreatedAt: base, UpdatedAt: base}))
	for i := 0; i < 4; i++ {
		require.NoError(t, r.InsertActivity(ctx, domain.Activity{
			ID: string(rune('a' + i)), ProjectID: "p1", ActorID: "u1", Kind: "note", Message: "did work",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	acts, err := r.RecentActivities(ctx, []string{"p1"}, 3)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	assert.Equal(t, "d", acts[0].ID)

	acts, err = r.RecentActivities(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, acts)
}
