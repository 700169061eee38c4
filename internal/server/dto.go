package server

import (
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

// Request payloads

type ProviderRequest struct {
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
	Category            string `json:"category"`
	Subcategory         string `json:"subcategory,omitempty"`
	Location            string `json:"location"`
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email" format:"email"`
	Website             string `json:"website,omitempty"`
}

func (r ProviderRequest) input() engine.ProviderInput {
	return engine.ProviderInput{
		BusinessName:        r.BusinessName,
		BusinessDescription: r.BusinessDescription,
		Category:            r.Category,
		Subcategory:         r.Subcategory,
		Location:            r.Location,
		Phone:               r.Phone,
		Email:               r.Email,
		Website:             r.Website,
	}
}

type VerifyProviderRequest struct {
	Verified bool `json:"verified"`
}

type CreateServiceRequest struct {
	ProviderID      string     `json:"provider_id"`
	ServiceCategory string     `json:"service_category"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	PreferredDate   *time.Time `json:"preferred_date,omitempty"`
	BudgetMin       *float64   `json:"budget_min,omitempty"`
	BudgetMax       *float64   `json:"budget_max,omitempty"`
	Urgency         string     `json:"urgency,omitempty"`
	ContactPhone    string     `json:"contact_phone,omitempty"`
}

func (r CreateServiceRequest) input() engine.RequestInput {
	return engine.RequestInput{
		ProviderID:      r.ProviderID,
		ServiceCategory: r.ServiceCategory,
		Description:     r.Description,
		Location:        r.Location,
		PreferredDate:   r.PreferredDate,
		BudgetMin:       r.BudgetMin,
		BudgetMax:       r.BudgetMax,
		Urgency:         r.Urgency,
		ContactPhone:    r.ContactPhone,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Status      string  `json:"status,omitempty"`
	BudgetTotal float64 `json:"budget_total,omitempty"`
}

type CreateMilestoneRequest struct {
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status,omitempty"`
}

type MilestoneStatusRequest struct {
	Status string `json:"status"`
}

type TransactionRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

type TeamMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

type ActivityRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Query inputs

type providerListInput struct {
	Category string `query:"category"`
	Location string `query:"location"`
	Verified string `query:"verified" doc:"true or false"`
	Search   string `query:"search"`
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
}

func (in providerListInput) query() (engine.ProviderQuery, error) {
	q := engine.ProviderQuery{
		Category: in.Category,
		Location: in.Location,
		Search:   in.Search,
		Page:     in.Page,
		Limit:    in.Limit,
	}
	switch strings.ToLower(strings.TrimSpace(in.Verified)) {
	case "":
	case "true":
		v := true
		q.Verified = &v
	case "false":
		v := false
		q.Verified = &v
	default:
		return q, domain.Invalid("verified", "must be true or false")
	}
	return q, nil
}

type requestListInput struct {
	Status string `query:"status"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
}

func (in requestListInput) query() engine.RequestQuery {
	return engine.RequestQuery{Status: domain.RequestStatus(in.Status), Page: in.Page, Limit: in.Limit}
}

// Responses

type MeResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	LatencyMS *int64            `json:"store_latency_ms,omitempty"`
}
