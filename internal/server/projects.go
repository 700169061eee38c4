package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

type projectPath struct {
	ID string `path:"id"`
}

var projectErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}

func (a *api) registerProjects(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := a.engine.CreateProject(ctx, caller, engine.ProjectInput{
			Name:        input.Body.Name,
			Status:      input.Body.Status,
			BudgetTotal: input.Body.BudgetTotal,
		})
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "Projects owned by the caller",
		Tags:        []string{"projects"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.ProjectDetail], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := a.engine.ListProjects(ctx, caller)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Project with milestones, spend and team",
		Tags:        []string{"projects"},
		Errors:      projectErrors,
	}, func(ctx context.Context, input *projectPath) (*output[domain.ProjectDetail], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := a.engine.GetProject(ctx, caller, input.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "add-milestone",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/milestones",
		Summary:       "Add milestone",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        projectErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body CreateMilestoneRequest `json:"body"`
	}) (*output[domain.Milestone], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := a.engine.AddMilestone(ctx, caller, input.ID, engine.MilestoneInput{
			Title:   input.Body.Title,
			DueDate: input.Body.DueDate,
			Status:  domain.MilestoneStatus(input.Body.Status),
		})
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "set-milestone-status",
		Method:      http.MethodPatch,
		Path:        "/milestones/{id}",
		Summary:     "Set milestone status",
		Tags:        []string{"projects"},
		Errors:      projectErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body MilestoneStatusRequest `json:"body"`
	}) (*output[domain.Milestone], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := a.engine.SetMilestoneStatus(ctx, caller, input.ID, domain.MilestoneStatus(input.Body.Status))
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "record-transaction",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/transactions",
		Summary:       "Record spend against the project budget",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        projectErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body TransactionRequest `json:"body"`
	}) (*output[domain.Transaction], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := a.engine.RecordTransaction(ctx, caller, input.ID, engine.TransactionInput{
			Amount:      input.Body.Amount,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "add-team-member",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/members",
		Summary:     "Add or update a team member",
		Tags:        []string{"projects"},
		Errors:      projectErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TeamMemberRequest `json:"body"`
	}) (*output[domain.TeamMember], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := a.engine.AddTeamMember(ctx, caller, input.ID, input.Body.UserID, input.Body.Role)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "touch-member",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/members/me/touch",
		Summary:       "Mark the caller active on the project",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusNoContent,
		Errors:        projectErrors,
	}, func(ctx context.Context, input *projectPath) (*struct{}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := a.engine.TouchMember(ctx, caller, input.ID); err != nil {
			return nil, a.handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "add-activity",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/activities",
		Summary:       "Record an activity",
		Tags:          []string{"projects"},
		DefaultStatus: http.StatusCreated,
		Errors:        projectErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ActivityRequest `json:"body"`
	}) (*output[domain.Activity], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		act, err := a.engine.AddActivity(ctx, caller, input.ID, input.Body.Kind, input.Body.Message)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(act), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "project-health",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/health",
		Summary:     "Health score, factors and history",
		Tags:        []string{"projects"},
		Errors:      projectErrors,
	}, func(ctx context.Context, input *projectPath) (*output[engine.HealthReport], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		hr, err := a.engine.ProjectHealth(ctx, caller, input.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(hr), nil
	})
}
