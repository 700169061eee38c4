package servicehubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Servicehub HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/api",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Provider represents the API provider model.
type Provider struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	BusinessName        string     `json:"business_name"`
	BusinessDescription string     `json:"business_description"`
	Category            string     `json:"category"`
	Subcategory         string     `json:"subcategory,omitempty"`
	Location            string     `json:"location"`
	Phone               string     `json:"phone,omitempty"`
	Email               string     `json:"email"`
	Website             string     `json:"website,omitempty"`
	Verified            bool       `json:"verified"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	RatingAverage       float64    `json:"rating_average"`
	RatingCount         int        `json:"rating_count"`
	CreatedAt           time.Time  `json:"created_at"`
}

type ProviderInput struct {
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
	Category            string `json:"category"`
	Subcategory         string `json:"subcategory,omitempty"`
	Location            string `json:"location"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email"`
	Website             string `json:"website,omitempty"`
}

type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages,omitempty"`
	TotalItems   int  `json:"total_items,omitempty"`
	HasNext      bool `json:"has_next,omitempty"`
	HasPrev      bool `json:"has_prev,omitempty"`
	ItemsPerPage int  `json:"items_per_page,omitempty"`
}

type ProviderPage struct {
	Providers  []Provider `json:"providers"`
	Pagination Pagination `json:"pagination"`
}

// ProviderQuery filters ListProviders. Zero values are omitted.
type ProviderQuery struct {
	Category string
	Location string
	Verified *bool
	Search   string
	Page     int
	Limit    int
}

// Request represents a service request (partial).
type Request struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ProviderID  string     `json:"provider_id"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Urgency     string     `json:"urgency,omitempty"`
	BudgetMin   *float64   `json:"budget_min,omitempty"`
	BudgetMax   *float64   `json:"budget_max,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type RequestInput struct {
	ProviderID      string   `json:"provider_id"`
	ServiceCategory string   `json:"service_category"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	BudgetMin       *float64 `json:"budget_min,omitempty"`
	BudgetMax       *float64 `json:"budget_max,omitempty"`
	Urgency         string   `json:"urgency,omitempty"`
	ContactPhone    string   `json:"contact_phone,omitempty"`
}

type RequestPage struct {
	Requests   []Request  `json:"requests"`
	Pagination Pagination `json:"pagination"`
}

// Event represents an audit log entry.
type Event struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}

type Project struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	BudgetTotal float64 `json:"budget_total"`
	HealthScore int     `json:"health_score"`
}

type Milestone struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"due_date"`
	Status    string    `json:"status"`
}

// Dashboard is decoded partially; Raw keeps the rest.
type Dashboard struct {
	UserID  string `json:"user_id"`
	Metrics struct {
		TotalProjects     int     `json:"total_projects"`
		ActiveProjects    int     `json:"active_projects"`
		AverageHealth     float64 `json:"average_health"`
		UpcomingDeadlines int     `json:"upcoming_deadlines"`
		TotalBudget       float64 `json:"total_budget"`
		TotalSpent        float64 `json:"total_spent"`
	} `json:"metrics"`
	TodaysFocus []map[string]any `json:"todays_focus"`
}

type CycleReport struct {
	StartedAt time.Time        `json:"started_at"`
	Alerts    []map[string]any `json:"alerts"`
	Failures  []map[string]any `json:"failures"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) ListProviders(ctx context.Context, q ProviderQuery) (ProviderPage, error) {
	v := url.Values{}
	setIf(v, "category", q.Category)
	setIf(v, "location", q.Location)
	setIf(v, "search", q.Search)
	if q.Verified != nil {
		v.Set("verified", strconv.FormatBool(*q.Verified))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var resp ProviderPage
	err := c.do(ctx, http.MethodGet, withQuery("providers", v), nil, &resp)
	return resp, err
}

func (c *Client) GetProvider(ctx context.Context, id string) (Provider, error) {
	var resp Provider
	err := c.do(ctx, http.MethodGet, "providers/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateProvider(ctx context.Context, in ProviderInput) (Provider, error) {
	var resp Provider
	err := c.do(ctx, http.MethodPost, "providers", in, &resp)
	return resp, err
}

func (c *Client) UpdateProvider(ctx context.Context, id string, in ProviderInput) (Provider, error) {
	var resp Provider
	err := c.do(ctx, http.MethodPut, "providers/"+url.PathEscape(id), in, &resp)
	return resp, err
}

func (c *Client) DeleteProvider(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "providers/"+url.PathEscape(id), nil, nil)
}

// VerifyProvider sets or clears the verified flag. Admin only.
func (c *Client) VerifyProvider(ctx context.Context, id string, verified bool) (Provider, error) {
	var resp Provider
	err := c.do(ctx, http.MethodPost, "providers/"+url.PathEscape(id)+"/verify", map[string]bool{"verified": verified}, &resp)
	return resp, err
}

func (c *Client) CreateRequest(ctx context.Context, in RequestInput) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests", in, &resp)
	return resp, err
}

func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateRequestStatus(ctx context.Context, id, status, notes string) (Request, error) {
	body := map[string]string{"status": status}
	if notes != "" {
		body["notes"] = notes
	}
	var resp Request
	err := c.do(ctx, http.MethodPatch, "requests/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// MyRequests lists requests opened by the caller; status may be empty.
func (c *Client) MyRequests(ctx context.Context, status string, page, limit int) (RequestPage, error) {
	return c.listRequests(ctx, "requests/my-requests", status, page, limit)
}

// ProviderRequests lists requests addressed to the caller's providers.
func (c *Client) ProviderRequests(ctx context.Context, status string, page, limit int) (RequestPage, error) {
	return c.listRequests(ctx, "requests/provider-requests", status, page, limit)
}

func (c *Client) listRequests(ctx context.Context, endpoint, status string, page, limit int) (RequestPage, error) {
	v := url.Values{}
	setIf(v, "status", status)
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var resp RequestPage
	err := c.do(ctx, http.MethodGet, withQuery(endpoint, v), nil, &resp)
	return resp, err
}

func (c *Client) RequestEvents(ctx context.Context, id string) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "requests/"+url.PathEscape(id)+"/events", nil, &resp)
	return resp, err
}

func (c *Client) CreateProject(ctx context.Context, name string, budget float64) (Project, error) {
	body := map[string]any{"name": name}
	if budget > 0 {
		body["budget_total"] = budget
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

func (c *Client) AddMilestone(ctx context.Context, projectID, title string, due time.Time) (Milestone, error) {
	var resp Milestone
	body := map[string]any{"title": title, "due_date": due.UTC().Format(time.RFC3339)}
	err := c.do(ctx, http.MethodPost, "projects/"+url.PathEscape(projectID)+"/milestones", body, &resp)
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// RunAutomation triggers one cycle. Admin only.
func (c *Client) RunAutomation(ctx context.Context) (CycleReport, error) {
	var resp CycleReport
	err := c.do(ctx, http.MethodPost, "automation/run", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Details = envelope.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

func withQuery(endpoint string, v url.Values) string {
	if len(v) == 0 {
		return endpoint
	}
	return endpoint + "?" + v.Encode()
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
