package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/logging"
	"servicehub/internal/repo"
	"servicehub/internal/snapshots"
)

// RecordStore is the relational side: providers, requests and projects.
type RecordStore interface {
	Ping(ctx context.Context) error

	InsertProvider(ctx context.Context, p domain.Provider) error
	GetProvider(ctx context.Context, id string) (domain.Provider, error)
	UpdateProvider(ctx context.Context, p domain.Provider) error
	SetProviderVerified(ctx context.Context, p domain.Provider, actorID string) error
	DeleteProvider(ctx context.Context, id string) error
	ListProviders(ctx context.Context, f repo.ProviderFilter) ([]domain.Provider, int, error)
	ProviderIDsOwnedBy(ctx context.Context, userID string) ([]string, error)

	InsertRequest(ctx context.Context, sr domain.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (domain.ServiceRequest, error)
	UpdateRequestStatus(ctx context.Context, sr domain.ServiceRequest, from domain.RequestStatus, actorID string) error
	ListRequests(ctx context.Context, f repo.RequestFilter) ([]domain.ServiceRequest, error)
	RequestEvents(ctx context.Context, id string) ([]domain.Event, error)

	InsertProject(ctx context.Context, p domain.Project) error
	GetProjectDetail(ctx context.Context, id string) (domain.ProjectDetail, error)
	ListProjectDetails(ctx context.Context, ownerID string) ([]domain.ProjectDetail, error)
	UpdateHealthScore(ctx context.Context, projectID string, score int, at time.Time) error
	InsertMilestone(ctx context.Context, m domain.Milestone) error
	GetMilestone(ctx context.Context, id string) (domain.Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, id string, status domain.MilestoneStatus) error
	InsertTransaction(ctx context.Context, t domain.Transaction) error
	UpsertTeamMember(ctx context.Context, m domain.TeamMember) error
	InsertActivity(ctx context.Context, a domain.Activity) error
	RecentActivities(ctx context.Context, projectIDs []string, limit int) ([]domain.Activity, error)
}

// SnapshotStore is the document side: health history and insight snapshots.
type SnapshotStore interface {
	AppendHealthRecord(ctx context.Context, rec domain.HealthRecord) error
	HealthHistory(ctx context.Context, projectID string, limit int) ([]domain.HealthRecord, error)
	AppendInsights(ctx context.Context, snap domain.InsightSnapshot) error
	LatestInsights(ctx context.Context) (domain.InsightSnapshot, error)
}

// DocumentTracker reports a 0..100 document completeness figure for a
// project. ok is false when nothing is known.
type DocumentTracker interface {
	DocumentStatus(ctx context.Context, projectID string) (status int, ok bool, err error)
}

type Engine struct {
	Records   RecordStore
	Snapshots SnapshotStore
	Documents DocumentTracker
	Now       func() time.Time
	Logger    *slog.Logger
}

// New wires an engine over a migrated database. Snapshots default to the
// documents table of the same database.
func New(conn *sql.DB, dialect db.Dialect) Engine {
	return Engine{
		Records:   repo.New(conn, dialect),
		Snapshots: snapshots.SQLStore{DB: conn, Dialect: dialect},
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Discard()
}

func newID() string { return uuid.NewString() }

func (e Engine) documentStatus(ctx context.Context, projectID string) (*int, error) {
	if e.Documents == nil {
		return nil, nil
	}
	v, ok, err := e.Documents.DocumentStatus(ctx, projectID)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// Ping checks the record store.
func (e Engine) Ping(ctx context.Context) error {
	return e.Records.Ping(ctx)
}

// Page describes one page of a listing.
type Page struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

func newPage(page, limit, total int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page{CurrentPage: page, TotalPages: pages, TotalItems: total, HasNext: page < pages, HasPrev: page > 1}
}

func normalizePage(page, limit, def, max int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = def
	}
	if page < 1 {
		return 0, 0, domain.Invalid("page", "must be at least 1")
	}
	if limit < 1 || limit > max {
		return 0, 0, domain.Invalid("limit", "must be between 1 and "+strconv.Itoa(max))
	}
	return page, limit, nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
