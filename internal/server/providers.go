package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
)

type providerPath struct {
	ID string `path:"id"`
}

func (a *api) registerProviders(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/providers",
		Summary:     "Search providers",
		Tags:        []string{"providers"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *providerListInput) (*output[engine.ProviderList], error) {
		q, err := input.query()
		if err != nil {
			return nil, a.handleError(err)
		}
		list, err := a.engine.ListProviders(ctx, q)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(list), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "get-provider",
		Method:      http.MethodGet,
		Path:        "/providers/{id}",
		Summary:     "Get provider",
		Tags:        []string{"providers"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *providerPath) (*output[domain.Provider], error) {
		p, err := a.engine.GetProvider(ctx, input.ID)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "create-provider",
		Method:        http.MethodPost,
		Path:          "/providers",
		Summary:       "Register a provider profile",
		Tags:          []string{"providers"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ProviderRequest `json:"body"`
	}) (*output[domain.Provider], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := a.engine.CreateProvider(ctx, caller, input.Body.input())
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "update-provider",
		Method:      http.MethodPut,
		Path:        "/providers/{id}",
		Summary:     "Update provider",
		Tags:        []string{"providers"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ProviderRequest `json:"body"`
	}) (*output[domain.Provider], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := a.engine.UpdateProvider(ctx, caller, input.ID, input.Body.input())
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(group, huma.Operation{
		OperationID:   "delete-provider",
		Method:        http.MethodDelete,
		Path:          "/providers/{id}",
		Summary:       "Delete provider",
		Tags:          []string{"providers"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *providerPath) (*struct{}, error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := a.engine.DeleteProvider(ctx, caller, input.ID); err != nil {
			return nil, a.handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "verify-provider",
		Method:      http.MethodPost,
		Path:        "/providers/{id}/verify",
		Summary:     "Set provider verification (admin)",
		Tags:        []string{"providers"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body VerifyProviderRequest `json:"body"`
	}) (*output[domain.Provider], error) {
		caller, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := a.engine.VerifyProvider(ctx, caller, input.ID, input.Body.Verified)
		if err != nil {
			return nil, a.handleError(err)
		}
		return respond(p), nil
	})
}
