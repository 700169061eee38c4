package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"servicehub/internal/domain"
	"servicehub/internal/engine"
	"servicehub/internal/logging"
)

// CycleTrigger runs one automation cycle on demand.
type CycleTrigger interface {
	Trigger(ctx context.Context) (engine.CycleReport, error)
}

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
	// RateRequests per RateWindow limits request creation per user. Zero
	// disables the limit.
	RateRequests int
	RateWindow   time.Duration
	// Automation serializes manual cycles with the scheduler. When nil the
	// engine runs the cycle directly.
	Automation CycleTrigger
	// Checks are reported verbatim by /health/detailed.
	Checks map[string]string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"cannot change status from completed to pending"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"current\":\"completed\",\"attempted\":\"pending\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

func respond[T any](v T) *output[T] { return &output[T]{Body: v} }

type api struct {
	engine   engine.Engine
	log      *slog.Logger
	limiter  *userLimiter
	trigger  CycleTrigger
	checks   map[string]string
	basePath string
}

// New returns an HTTP handler exposing the marketplace API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine.Records == nil {
		return nil, errors.New("server: engine has no record store")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		code := ""
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors share the 400 envelope.
			status = http.StatusBadRequest
			code = "validation_failed"
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, code, msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("Servicehub API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	humaAPI := humachi.New(router, hcfg)
	group := huma.NewGroup(humaAPI, basePath)

	a := &api{
		engine:   cfg.Engine,
		log:      logger,
		limiter:  newUserLimiter(cfg.RateRequests, cfg.RateWindow),
		trigger:  cfg.Automation,
		checks:   cfg.Checks,
		basePath: basePath,
	}
	registerDocs(router, basePath)
	a.registerOps(group)
	a.registerMe(group)
	a.registerProviders(group)
	a.registerRequests(group)
	a.registerProjects(group)
	a.registerDashboard(group)
	a.registerAutomation(group)
	registerOpenAPI(router, humaAPI, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine errors onto the error envelope.
func (a *api) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve domain.ValidationError
	if errors.As(err, &ve) {
		details := map[string]any{}
		if ve.Field != "" {
			details["field"] = ve.Field
		}
		if ve.Current != "" || ve.Attempted != "" {
			details["current"] = ve.Current
			details["attempted"] = ve.Attempted
		}
		if len(details) == 0 {
			details = nil
		}
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), details)
	}
	var pe domain.PermissionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var nf domain.NotFoundError
	if errors.As(err, &nf) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"kind": nf.Kind})
	}
	if errors.Is(err, domain.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	a.log.Error("request failed", "err", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var doc []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

// publicRoutes can be called without a token.
var publicRoutes = map[string]bool{
	"GET /providers":       true,
	"GET /providers/{id}":  true,
	"GET /health":          true,
	"GET /health/detailed": true,
	"GET /ready":           true,
	"GET /live":            true,
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	for route, item := range oas.Paths {
		rel := "/" + strings.TrimPrefix(strings.TrimPrefix(route, basePath), "/")
		for method, op := range map[string]*huma.Operation{
			http.MethodGet: item.Get, http.MethodPut: item.Put, http.MethodPost: item.Post,
			http.MethodDelete: item.Delete, http.MethodPatch: item.Patch,
		} {
			if op == nil {
				continue
			}
			if publicRoutes[method+" "+rel] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Servicehub API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;. Issue one with svh token issue.
    </p>
  </body>
</html>`, specURL)
}

func (a *api) registerOps(group huma.API) {
	type healthOutput struct {
		Status int
		Body   HealthResponse `json:"body"`
	}
	probe := func(ctx context.Context) (time.Duration, error) {
		start := time.Now()
		err := a.engine.Ping(ctx)
		return time.Since(start), err
	}

	huma.Register(group, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"ops"},
	}, func(ctx context.Context, _ *struct{}) (*output[HealthResponse], error) {
		res := HealthResponse{Status: "ok", Timestamp: time.Now().UTC(), Checks: map[string]string{"store": "ok"}}
		if _, err := probe(ctx); err != nil {
			res.Status = "degraded"
			res.Checks["store"] = "unavailable"
		}
		return respond(res), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "health-detailed",
		Method:      http.MethodGet,
		Path:        "/health/detailed",
		Summary:     "Detailed health check",
		Tags:        []string{"ops"},
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		checks := map[string]string{"store": "ok"}
		for k, v := range a.checks {
			checks[k] = v
		}
		out := &healthOutput{Status: http.StatusOK, Body: HealthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Checks: checks}}
		latency, err := probe(ctx)
		ms := latency.Milliseconds()
		out.Body.LatencyMS = &ms
		if err != nil {
			a.log.Warn("store health check failed", "err", err)
			checks["store"] = "unavailable"
			out.Body.Status = "unhealthy"
			out.Status = http.StatusServiceUnavailable
		}
		return out, nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "ready",
		Method:      http.MethodGet,
		Path:        "/ready",
		Summary:     "Readiness probe",
		Tags:        []string{"ops"},
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		if _, err := probe(ctx); err != nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "not_ready", "store unavailable", nil)
		}
		return respond(map[string]string{"status": "ready"}), nil
	})

	huma.Register(group, huma.Operation{
		OperationID: "live",
		Method:      http.MethodGet,
		Path:        "/live",
		Summary:     "Liveness probe",
		Tags:        []string{"ops"},
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return respond(map[string]string{"status": "alive"}), nil
	})
}

func (a *api) registerMe(group huma.API) {
	huma.Register(group, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Authenticated principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[MeResponse], error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return respond(MeResponse{UserID: p.UserID, Role: string(p.Role), Source: p.Source}), nil
	})
}
