package domain

import "time"

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAccepted   RequestStatus = "accepted"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// RequestStatuses lists every known request status in lifecycle order.
var RequestStatuses = []RequestStatus{StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled}

func (s RequestStatus) Valid() bool {
	for _, known := range RequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller is the authenticated identity acting on a record.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

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
	UpdatedAt           time.Time  `json:"updated_at"`
}

type ServiceRequest struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	ProviderID      string        `json:"provider_id"`
	ProviderOwnerID string        `json:"provider_owner_id,omitempty"`
	ServiceCategory string        `json:"service_category"`
	Description     string        `json:"description"`
	Location        string        `json:"location"`
	PreferredDate   *time.Time    `json:"preferred_date,omitempty"`
	BudgetMin       *float64      `json:"budget_min,omitempty"`
	BudgetMax       *float64      `json:"budget_max,omitempty"`
	Urgency         string        `json:"urgency,omitempty" enum:"low,medium,high"`
	ContactPhone    string        `json:"contact_phone,omitempty"`
	Status          RequestStatus `json:"status" enum:"pending,accepted,in_progress,completed,cancelled"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	AcceptedAt      *time.Time    `json:"accepted_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
)

func (s MilestoneStatus) Valid() bool {
	return s == MilestonePending || s == MilestoneInProgress || s == MilestoneCompleted
}

type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status" enum:"active,on_hold,completed"`
	BudgetTotal float64   `json:"budget_total"`
	HealthScore int       `json:"health_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Milestone struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Title     string          `json:"title"`
	DueDate   time.Time       `json:"due_date"`
	Status    MilestoneStatus `json:"status" enum:"pending,in_progress,completed"`
	CreatedAt time.Time       `json:"created_at"`
}

type Transaction struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type TeamMember struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role,omitempty"`
	LastActive time.Time `json:"last_active"`
}

type Activity struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	ActorID   string    `json:"actor_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectDetail is a project with the collections the health engine reads.
type ProjectDetail struct {
	Project
	Milestones   []Milestone   `json:"milestones"`
	Transactions []Transaction `json:"transactions"`
	TeamMembers  []TeamMember  `json:"team_members"`
}

// HealthFactors are reported next to the score; none of them feed into it.
type HealthFactors struct {
	MilestoneCompletion int     `json:"milestone_completion"`
	BudgetHealth        float64 `json:"budget_health"`
	TeamEngagement      int     `json:"team_engagement"`
	DocumentStatus      *int    `json:"document_status"`
}

// HealthRecord is one entry of a project's health history.
type HealthRecord struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	Score     int           `json:"score"`
	Factors   HealthFactors `json:"factors"`
	Timestamp time.Time     `json:"timestamp"`
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities, lowest rank first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type InsightItem struct {
	Type      string `json:"type" enum:"warning,budget"`
	Message   string `json:"message"`
	ProjectID string `json:"project_id"`
}

// InsightSnapshot is appended once per cycle and never updated.
type InsightSnapshot struct {
	ID              string        `json:"id"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Insights        []InsightItem `json:"insights"`
	Recommendations []InsightItem `json:"recommendations"`
}

type FocusItem struct {
	Priority    Priority `json:"priority" enum:"urgent,high,medium,low"`
	Type        string   `json:"type" enum:"milestone,health"`
	Action      string   `json:"action"`
	ProjectID   string   `json:"project_id"`
	ProjectName string   `json:"project_name"`
	MilestoneID string   `json:"milestone_id,omitempty"`
	HealthScore *int     `json:"health_score,omitempty"`
}

type DeadlineAlert struct {
	MilestoneID    string    `json:"milestone_id"`
	MilestoneTitle string    `json:"milestone_title"`
	ProjectID      string    `json:"project_id"`
	DueDate        time.Time `json:"due_date"`
	DaysUntil      int       `json:"days_until"`
	Priority       Priority  `json:"priority"`
}

type Event struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}
