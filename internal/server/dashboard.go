package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"servicehub/internal/automation"
	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

func (a *api) registerDashboard(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard for the caller",
		Tags:        []string{"dashboard"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[engine.Dashboard], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := a.engine.Dashboard(ctx, caller, caller.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "user-dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard/{user_id}",
		Summary:     "Dashboard for a user (self or admin)",
		Tags:        []string{"dashboard"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*output[engine.Dashboard], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := a.engine.Dashboard(ctx, caller, input.UserID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "latest-insights",
		Method:      http.MethodGet,
		Path:        "/insights/latest",
		Summary:     "Most recent insight snapshot",
		Tags:        []string{"dashboard"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*output[domain.InsightSnapshot], error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		snap, err := a.engine.LatestInsights(ctx)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(snap), nil
	})
}

func (a *api) registerAutomation(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "run-automation",
		Method:      http.MethodPost,
		Path:        "/automation/run",
		Summary:     "Run one health, deadline and insight cycle now (admin)",
		Tags:        []string{"automation"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*output[engine.CycleReport], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !caller.IsAdmin() {
			return nil, a.handleError(domain.PermissionError{Message: "only admins can run automation"})
		}
		var (
			report engine.CycleReport
			err    error
		)
		if a.trigger != nil {
			report, err = a.trigger.Trigger(ctx)
		} else {
			report, err = a.engine.RunCycle(ctx)
		}
		if errors.Is(err, automation.ErrBusy) {
			return nil, newAPIError(http.StatusConflict, "cycle_running", err.Error(), nil)
		}
		if err != nil {
			return nil, a.handleError(err)
		}
		a.log.Info("manual automation cycle", "actor_id", caller.ID, "alerts", len(report.Alerts), "failures", len(report.Failures))
		return respond(report), nil
	})
}
