package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

type requestPath struct {
	ID string `path:"id"`
}

func (a *api) registerRequests(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Open a service request",
		Tags:          []string{"requests"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Body CreateServiceRequest `json:"body"`
	}) (*output[domain.ServiceRequest], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !a.limiter.allow(caller.ID) {
			a.log.Warn("request creation rate limited", "user_id", caller.ID)
			return nil, newAPIError(http.StatusTooManyRequests, "rate_limited", "too many service requests, try again later", nil)
		}
		sr, err := a.engine.CreateRequest(ctx, caller, input.Body.input())
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(sr), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "my-requests",
		Method:      http.MethodGet,
		Path:        "/requests/my-requests",
		Summary:     "Requests opened by the caller",
		Tags:        []string{"requests"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *requestListInput) (*output[engine.RequestList], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		list, err := a.engine.MyRequests(ctx, caller, input.query())
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(list), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "provider-requests",
		Method:      http.MethodGet,
		Path:        "/requests/provider-requests",
		Summary:     "Requests addressed to the caller's providers",
		Tags:        []string{"requests"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *requestListInput) (*output[engine.RequestList], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		list, err := a.engine.ProviderRequests(ctx, caller, input.query())
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(list), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get service request",
		Tags:        []string{"requests"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requestPath) (*output[domain.ServiceRequest], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sr, err := a.engine.GetRequest(ctx, caller, input.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(sr), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "update-request-status",
		Method:      http.MethodPatch,
		Path:        "/requests/{id}/status",
		Summary:     "Move a request through its lifecycle",
		Tags:        []string{"requests"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateStatusRequest `json:"body"`
	}) (*output[domain.ServiceRequest], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sr, err := a.engine.UpdateRequestStatus(ctx, caller, input.ID, domain.RequestStatus(input.Body.Status), input.Body.Notes)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(sr), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "request-events",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/events",
		Summary:     "Status change audit trail",
		Tags:        []string{"requests"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requestPath) (*output[[]domain.Event], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		events, err := a.engine.RequestEvents(ctx, caller, input.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		if events == nil {
			events = []domain.Event{}
		}
		return respond(events), nil
	})
}
