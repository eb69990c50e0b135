// Package server exposes the marketplace over HTTP. Handlers translate
// between the wire and the stores; every state change still goes through the
// lifecycle engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"freshnest/internal/app"
	"freshnest/internal/domain"
	"freshnest/internal/engine"
	"freshnest/internal/fault"
	"freshnest/internal/log"
)

// Config for the HTTP API handler.
type Config struct {
	App      *app.App
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"request request-2: cannot confirm from status pending"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint shares.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Freshnest API.
func New(cfg Config) (http.Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	cfg.Auth.Logger = log.WithComponent("auth")
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Freshnest API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	logger := log.WithComponent("server")

	registerDocs(router, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg.Auth)
	registerMe(group)
	registerRequests(group, cfg.App, logger)
	registerConversations(group, cfg.App, logger)
	registerNotifications(group, cfg.App, logger)
	registerStats(group, cfg.App)
	registerAdmin(group, cfg.App)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.App)

	return router, nil
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *fault.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	var nfe *fault.NotFoundError
	if errors.As(err, &nfe) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), map[string]any{"kind": nfe.Kind, "id": nfe.ID})
	}
	var ite *fault.InvalidTransitionError
	if errors.As(err, &ite) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"from": string(ite.From),
			"op":   ite.Op,
		})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

// tolerate swallows a storage failure after the in-memory change already
// took. The caller still gets the updated entity with a success status; the
// failure is only logged.
func tolerate(logger zerolog.Logger, err error) error {
	var pe *fault.PersistenceError
	if errors.As(err, &pe) {
		logger.Warn().Err(pe).Str("key", pe.Key).Msg("durable write failed; serving in-memory state")
		return nil
	}
	return err
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
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
	docPath := path.Join(basePath, "openapi.json")
	r.Get(docPath, func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
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
	open := map[string]struct{}{
		path.Join(basePath, "health"):         {},
		path.Join(basePath, "auth/dev/login"): {},
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if _, ok := open[route]; ok {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	docURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Freshnest API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, docURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		role := domain.Role(input.Body.Role)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if !role.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "role must be host or cleaner", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, role, authCfg.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{ActorID: p.ActorID, Role: string(p.Role), Source: p.Source}}, nil
	})
}

type requestPath struct {
	RequestID string `path:"request_id"`
}

type requestBodyOut struct {
	Body RequestResponse `json:"body"`
}

func requestOut(r domain.ServiceRequest) *requestBodyOut {
	return &requestBodyOut{Body: RequestResponse{ServiceRequest: r}}
}

func registerRequests(api huma.API, a *app.App, logger zerolog.Logger) {
	e := a.Engine

	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Post a cleaning request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateRequestBody `json:"body"`
	}) (*requestBodyOut, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if p.Role != domain.RoleHost {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only hosts can post requests", nil)
		}
		host := a.Config.Identities.Host
		in := engine.CreateInput{
			HostID:       p.ActorID,
			HostName:     host.Name,
			HostAvatar:   host.Avatar,
			Asset:        input.Body.Asset,
			Schedule:     input.Body.Schedule,
			Price:        input.Body.Price,
			Instructions: input.Body.Instructions,
		}
		r, err := e.Create(ctx, in)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return requestOut(r), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/requests",
		Summary:     "List requests for the caller",
		Description: "view selects a slice of the collection: available (unassigned pending), applications (caller's pending applications), active (caller's confirmed and in-progress), past (caller's completed and rated), all. A status filter scopes to the caller's own requests in that status.",
	}, func(ctx context.Context, input *struct {
		View   string `query:"view" enum:"available,applications,active,past,all" default:"all"`
		Status string `query:"status" enum:"pending,applied,confirmed,in_progress,completed,rated,cancelled" required:"false"`
	}) (*struct {
		Body RequestListResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var items []domain.ServiceRequest
		switch {
		case input.Status != "":
			items = e.ByStatus(domain.Status(input.Status), p.Role, p.ActorID)
		case input.View == "available":
			items = e.Available()
		case input.View == "applications":
			items = e.MyApplications(p.ActorID)
		case input.View == "active":
			items = e.ActiveFor(p.ActorID)
		case input.View == "past":
			items = e.PastFor(p.Role, p.ActorID)
		default:
			items = e.All()
		}
		return &struct {
			Body RequestListResponse `json:"body"`
		}{Body: requestList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{request_id}",
		Summary:     "Get a request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *requestPath) (*requestBodyOut, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		r, err := e.ByID(input.RequestID)
		if err != nil {
			return nil, handleError(err)
		}
		return requestOut(r), nil
	})

	transition := func(opID, suffix, summary string, do func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/requests/{request_id}/" + suffix,
			Summary:     summary,
			Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *requestPath) (*requestBodyOut, error) {
			p, authErr := callerFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			r, err := do(ctx, p, input.RequestID)
			if err = tolerate(logger, err); err != nil {
				return nil, handleError(err)
			}
			return requestOut(r), nil
		})
	}

	transition("apply-request", "apply", "Apply to a request", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		if p.Role != domain.RoleCleaner {
			return domain.ServiceRequest{}, fault.NewValidation("caller", "only cleaners can apply")
		}
		cleaner := a.Config.Identities.Cleaner
		return e.Apply(ctx, id, engine.CleanerRef{ID: p.ActorID, Name: cleaner.Name, Avatar: cleaner.Avatar})
	})
	transition("withdraw-request", "withdraw", "Withdraw an application", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Withdraw(ctx, id)
	})
	transition("reject-request", "reject", "Reject the current application", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Reject(ctx, id)
	})
	transition("confirm-request", "confirm", "Confirm the current application", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Confirm(ctx, id, p.ActorID)
	})
	transition("start-request", "start", "Start the job", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Start(ctx, id, p.ActorID)
	})
	transition("complete-request", "complete", "Complete the job", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Complete(ctx, id)
	})
	transition("cancel-request", "cancel", "Cancel the request", func(ctx context.Context, p Principal, id string) (domain.ServiceRequest, error) {
		return e.Cancel(ctx, id)
	})

	huma.Register(api, huma.Operation{
		OperationID: "rate-request",
		Method:      http.MethodPost,
		Path:        "/requests/{request_id}/rate",
		Summary:     "Rate a completed job",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		RequestID string          `path:"request_id"`
		Body      RateRequestBody `json:"body"`
	}) (*requestBodyOut, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		r, err := e.Rate(ctx, input.RequestID, input.Body.Rating, input.Body.Review)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return requestOut(r), nil
	})
}

func registerConversations(api huma.API, a *app.App, logger zerolog.Logger) {
	m := a.Messages

	huma.Register(api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/conversations",
		Summary:     "List conversations with last message and unread count",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConversationListResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items := m.ConversationsWithPreview(p.Role)
		return &struct {
			Body ConversationListResponse `json:"body"`
		}{Body: ConversationListResponse{Items: items, Total: len(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/conversations/{conversation_id}/messages",
		Summary:     "List a conversation's messages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConversationID string `path:"conversation_id"`
	}) (*struct {
		Body MessageListResponse `json:"body"`
	}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := m.ConversationMessages(input.ConversationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageListResponse `json:"body"`
		}{Body: MessageListResponse{Items: items, Total: len(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/conversations/{conversation_id}/messages",
		Summary:       "Send a message",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConversationID string          `path:"conversation_id"`
		Body           SendMessageBody `json:"body"`
	}) (*struct {
		Body domain.Message `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		msg, err := m.Send(ctx, input.ConversationID, p.Role, input.Body.Text)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Message `json:"body"`
		}{Body: msg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-conversation",
		Method:      http.MethodPost,
		Path:        "/conversations/{conversation_id}/read",
		Summary:     "Mark a conversation read for the caller",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConversationID string `path:"conversation_id"`
	}) (*struct{}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := m.MarkConversationRead(ctx, input.ConversationID, p.Role)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-messages",
		Method:      http.MethodPost,
		Path:        "/messages/read-all",
		Summary:     "Mark every message read for the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := m.MarkAllRead(ctx, p.Role)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-messages",
		Method:      http.MethodGet,
		Path:        "/messages/unread-count",
		Summary:     "Unread message count for the caller",
	}, func(ctx context.Context, input *struct {
		ConversationID string `query:"conversation_id" required:"false"`
	}) (*struct {
		Body UnreadCountResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		count := 0
		if input.ConversationID != "" {
			count = m.UnreadCountIn(p.Role, input.ConversationID)
		} else {
			count = m.UnreadCount(p.Role)
		}
		return &struct {
			Body UnreadCountResponse `json:"body"`
		}{Body: UnreadCountResponse{Unread: count}}, nil
	})
}

func registerNotifications(api huma.API, a *app.App, logger zerolog.Logger) {
	n := a.Notify

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body NotificationListResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items := n.ListFor(p.Role)
		return &struct {
			Body NotificationListResponse `json:"body"`
		}{Body: NotificationListResponse{Items: items, Total: len(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/unread-count",
		Summary:     "Unread notification count for the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UnreadCountResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body UnreadCountResponse `json:"body"`
		}{Body: UnreadCountResponse{Unread: n.UnreadCount(p.Role)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{notification_id}/read",
		Summary:     "Mark a notification read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct{}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		err := n.MarkRead(ctx, input.NotificationID)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read for the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := n.MarkAllRead(ctx, p.Role)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{notification_id}",
		Summary:     "Delete a notification",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct{}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		err := n.Remove(ctx, input.NotificationID)
		if err = tolerate(logger, err); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStats(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Request counts for the caller's side of the marketplace",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsResponse `json:"body"`
	}, error) {
		p, authErr := callerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body StatsResponse `json:"body"`
		}{Body: statsFor(a.Engine, p)}, nil
	})
}

func registerAdmin(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "reset",
		Method:      http.MethodPost,
		Path:        "/reset",
		Summary:     "Restore every collection to the demo seed",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if _, authErr := callerFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := a.Reset(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
