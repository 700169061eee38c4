package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"servicehub/internal/domain"
	"servicehub/internal/lifecycle"
	"servicehub/internal/repo"
)

type RequestInput struct {
	ProviderID      string
	ServiceCategory string
	Description     string
	Location        string
	PreferredDate   *time.Time
	BudgetMin       *float64
	BudgetMax       *float64
	Urgency         string
	ContactPhone    string
}

func (in RequestInput) validate() error {
	if strings.TrimSpace(in.ProviderID) == "" {
		return domain.Invalid("provider_id", "is required")
	}
	if strings.TrimSpace(in.ServiceCategory) == "" {
		return domain.Invalid("service_category", "is required")
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Description)); n < 10 || n > 1000 {
		return domain.Invalid("description", "must be between 10 and 1000 characters")
	}
	if strings.TrimSpace(in.Location) == "" {
		return domain.Invalid("location", "is required")
	}
	switch in.Urgency {
	case "", "low", "medium", "high":
	default:
		return domain.Invalid("urgency", "must be low, medium or high")
	}
	if in.BudgetMin != nil && *in.BudgetMin < 0 {
		return domain.Invalid("budget_min", "must not be negative")
	}
	if in.BudgetMin != nil && in.BudgetMax != nil && *in.BudgetMin > *in.BudgetMax {
		return domain.Invalid("budget_max", "must not be below budget_min")
	}
	return nil
}

// CreateRequest opens a pending request against an existing provider.
func (e Engine) CreateRequest(ctx context.Context, caller domain.Caller, in RequestInput) (domain.ServiceRequest, error) {
	if err := requireCaller(caller); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := in.validate(); err != nil {
		return domain.ServiceRequest{}, err
	}
	provider, err := e.Records.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	now := e.now()
	sr := domain.ServiceRequest{
		ID:              newID(),
		UserID:          caller.ID,
		ProviderID:      provider.ID,
		ProviderOwnerID: provider.UserID,
		ServiceCategory: strings.TrimSpace(in.ServiceCategory),
		Description:     strings.TrimSpace(in.Description),
		Location:        strings.TrimSpace(in.Location),
		PreferredDate:   in.PreferredDate,
		BudgetMin:       in.BudgetMin,
		BudgetMax:       in.BudgetMax,
		Urgency:         in.Urgency,
		ContactPhone:    strings.TrimSpace(in.ContactPhone),
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Records.InsertRequest(ctx, sr); err != nil {
		return domain.ServiceRequest{}, err
	}
	e.log().Info("service request created", "request_id", sr.ID, "user_id", caller.ID, "provider_id", sr.ProviderID, "category", sr.ServiceCategory)
	return sr, nil
}

// GetRequest returns a request visible to the client, the provider owner or an admin.
func (e Engine) GetRequest(ctx context.Context, caller domain.Caller, id string) (domain.ServiceRequest, error) {
	sr, err := e.Records.GetRequest(ctx, id)
	if err != nil {
		return sr, err
	}
	if err := lifecycle.Authorize(sr, caller); err != nil {
		return domain.ServiceRequest{}, domain.PermissionError{Message: "you do not have permission to view this request"}
	}
	return sr, nil
}

// UpdateRequestStatus moves a request through the lifecycle and records the change.
func (e Engine) UpdateRequestStatus(ctx context.Context, caller domain.Caller, id string, target domain.RequestStatus, notes string) (domain.ServiceRequest, error) {
	if !target.Valid() {
		return domain.ServiceRequest{}, domain.Invalid("status", "unknown status "+string(target))
	}
	current, err := e.Records.GetRequest(ctx, id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	next, err := lifecycle.Apply(current, lifecycle.Change{Target: target, Caller: caller, Notes: strings.TrimSpace(notes), At: e.now()})
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := e.Records.UpdateRequestStatus(ctx, next, current.Status, caller.ID); err != nil {
		return domain.ServiceRequest{}, err
	}
	e.log().Info("service request status updated", "request_id", id, "old_status", current.Status, "new_status", next.Status, "actor_id", caller.ID)
	return next, nil
}

// RequestEvents lists the audit trail of a request the caller may see.
func (e Engine) RequestEvents(ctx context.Context, caller domain.Caller, id string) ([]domain.Event, error) {
	if _, err := e.GetRequest(ctx, caller, id); err != nil {
		return nil, err
	}
	return e.Records.RequestEvents(ctx, id)
}

type RequestQuery struct {
	Status domain.RequestStatus
	Page   int
	Limit  int
}

type RequestPage struct {
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
}

type RequestList struct {
	Requests   []domain.ServiceRequest `json:"requests"`
	Pagination RequestPage             `json:"pagination"`
}

func (q RequestQuery) filter() (repo.RequestFilter, error) {
	if q.Status != "" && !q.Status.Valid() {
		return repo.RequestFilter{}, domain.Invalid("status", "unknown status "+string(q.Status))
	}
	page, limit, err := normalizePage(q.Page, q.Limit, 20, 50)
	if err != nil {
		return repo.RequestFilter{}, err
	}
	return repo.RequestFilter{Status: q.Status, Page: page, Limit: limit}, nil
}

// MyRequests lists requests the caller opened as a client.
func (e Engine) MyRequests(ctx context.Context, caller domain.Caller, q RequestQuery) (RequestList, error) {
	if err := requireCaller(caller); err != nil {
		return RequestList{}, err
	}
	f, err := q.filter()
	if err != nil {
		return RequestList{}, err
	}
	f.UserID = caller.ID
	items, err := e.Records.ListRequests(ctx, f)
	if err != nil {
		return RequestList{}, err
	}
	return RequestList{Requests: items, Pagination: RequestPage{CurrentPage: f.Page, ItemsPerPage: f.Limit}}, nil
}

// ProviderRequests lists requests addressed to any provider the caller owns.
func (e Engine) ProviderRequests(ctx context.Context, caller domain.Caller, q RequestQuery) (RequestList, error) {
	if err := requireCaller(caller); err != nil {
		return RequestList{}, err
	}
	f, err := q.filter()
	if err != nil {
		return RequestList{}, err
	}
	owned, err := e.Records.ProviderIDsOwnedBy(ctx, caller.ID)
	if err != nil {
		return RequestList{}, err
	}
	page := RequestPage{CurrentPage: f.Page, ItemsPerPage: f.Limit}
	if len(owned) == 0 {
		return RequestList{Requests: []domain.ServiceRequest{}, Pagination: page}, nil
	}
	f.ProviderIDs = owned
	items, err := e.Records.ListRequests(ctx, f)
	if err != nil {
		return RequestList{}, err
	}
	return RequestList{Requests: items, Pagination: page}, nil
}
