package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// stubTickets implements only what a test needs; other calls panic on the nil interface.
type stubTickets struct {
	handlers.TicketOperations

	lastActor  domain.Actor
	lastInput  service.TicketCreateInput
	lastStatus string
	err        error
}

func (s *stubTickets) CreateTicket(_ context.Context, actor domain.Actor, input service.TicketCreateInput) (*domain.Ticket, error) {
	s.lastActor = actor
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Ticket{ID: "tkt-1", Number: "TCK-0000ABCD", Title: input.Title, RequesterID: actor.UserID, StatusID: "st-new"}, nil
}

func (s *stubTickets) ChangeStatus(_ context.Context, actor domain.Actor, ticketID, statusID string) (*domain.Ticket, error) {
	s.lastActor = actor
	s.lastStatus = statusID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Ticket{ID: ticketID, StatusID: statusID}, nil
}

func (s *stubTickets) Capabilities(_ context.Context, _ domain.Actor, _ string) (map[policy.Capability]bool, error) {
	return map[policy.Capability]bool{policy.CapView: true, policy.CapDelete: false}, nil
}

func (s *stubTickets) RemoveCollaborator(_ context.Context, _ domain.Actor, ticketID, userID string) (*domain.Ticket, error) {
	return &domain.Ticket{ID: ticketID, Collaborators: []string{"kept"}, RequesterID: userID}, nil
}

type stubAuth struct{}

func (stubAuth) Login(_ context.Context, email, password string) (*domain.User, string, time.Time, error) {
	if password != "rahasia" {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return &domain.User{ID: "u-1", Email: email, Role: domain.RoleStaff}, "signed", time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC), nil
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app     *fiber.App
	tickets *stubTickets
	metrics *observability.Metrics
}

// newTestServer authenticates every request as user unless user is nil.
func newTestServer(t *testing.T, user *domain.User, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	tickets := &stubTickets{}
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("helpdesk-service", "test", deps),
		Auth:    handlers.NewAuthHandler(stubAuth{}),
		Tickets: handlers.NewTicketsHandler(tickets),
		AuthMiddleware: func(c *fiber.Ctx) error {
			if user != nil {
				auth.WithPrincipal(c, &auth.Principal{User: user, Actor: domain.ActorFromUser(user)})
			}
			return c.Next()
		},
	})
	return &testServer{app: app, tickets: tickets, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func staffUser() *domain.User {
	dept := "IPS"
	return &domain.User{ID: "u-sari", Name: "Sari", Role: domain.RoleStaff, DepartmentID: &dept, Active: true}
}

func TestCreateTicketPassesActorAndInput(t *testing.T) {
	srv := newTestServer(t, staffUser(), nil)

	status, body := srv.do(t, fiber.MethodPost, "/tickets",
		`{"title":"AC bocor","type_id":"incident","category_id":"cat-ac","priority_id":"p2","department_id":"IPS","group_id":"grp-ips"}`)
	require.Equal(t, fiber.StatusCreated, status)

	assert.Equal(t, "u-sari", srv.tickets.lastActor.UserID)
	assert.Equal(t, "IPS", srv.tickets.lastActor.DepartmentID)
	assert.Equal(t, "AC bocor", srv.tickets.lastInput.Title)
	require.NotNil(t, srv.tickets.lastInput.GroupID)
	assert.Equal(t, "grp-ips", *srv.tickets.lastInput.GroupID)

	data := body["data"].(map[string]any)
	assert.Equal(t, "TCK-0000ABCD", data["number"])
	assert.Equal(t, []any{}, data["collaborators"])
}

func TestDomainErrorsRenderEnvelope(t *testing.T) {
	srv := newTestServer(t, staffUser(), nil)
	srv.tickets.err = apperrors.NewForbidden("not allowed")

	status, body := srv.do(t, fiber.MethodPost, "/tickets/tkt-1/status", `{"status_id":"st-closed"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(body))
	assert.Equal(t, "st-closed", srv.tickets.lastStatus)
	assert.EqualValues(t, 1, srv.metrics.ErrorCount("/tickets/:id/status", fiber.MethodPost, apperrors.CodeForbidden))
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NewInvalidStatus("st-x"), fiber.StatusUnprocessableEntity, apperrors.CodeInvalidStatus},
		{apperrors.NewInvalidTransition("taken", nil), fiber.StatusConflict, apperrors.CodeInvalidTransition},
		{apperrors.NewConfigurationMissing("no closed status", nil), fiber.StatusInternalServerError, apperrors.CodeConfigurationMissing},
		{errors.New("boom"), fiber.StatusInternalServerError, apperrors.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			srv := newTestServer(t, staffUser(), nil)
			srv.tickets.err = tc.err
			status, body := srv.do(t, fiber.MethodPost, "/tickets/tkt-1/status", `{"status_id":"st-x"}`)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestChangeStatusRequiresStatusID(t *testing.T) {
	srv := newTestServer(t, staffUser(), nil)

	status, body := srv.do(t, fiber.MethodPost, "/tickets/tkt-1/status", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidation, errorCode(body))
	assert.Empty(t, srv.tickets.lastStatus)
}

func TestTicketRoutesRequireAuthentication(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	status, body := srv.do(t, fiber.MethodGet, "/tickets/tkt-1/capabilities", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))
}

func TestCapabilitiesAndCollaboratorRoutes(t *testing.T) {
	srv := newTestServer(t, staffUser(), nil)

	status, body := srv.do(t, fiber.MethodGet, "/tickets/tkt-1/capabilities", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"view": true, "delete": false}, body["data"])

	status, body = srv.do(t, fiber.MethodDelete, "/tickets/tkt-1/collaborators/u-gilang", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u-gilang", body["data"].(map[string]any)["requester_id"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	status, body := srv.do(t, fiber.MethodPost, "/auth/login", `{"email":"sari@rs.example","password":"rahasia"}`)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "signed", data["auth"].(map[string]any)["token"])
	assert.Equal(t, "staff", data["user"].(map[string]any)["role"])

	status, body = srv.do(t, fiber.MethodPost, "/auth/login", `{"email":"sari@rs.example","password":"salah"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(body))
}

func TestHealthReadiness(t *testing.T) {
	healthy := newTestServer(t, nil, map[string]handlers.Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	})
	status, body := healthy.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	degraded := newTestServer(t, nil, map[string]handlers.Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	status, body = degraded.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))

	status, body = degraded.do(t, fiber.MethodGet, "/health/live", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	status, body := srv.do(t, fiber.MethodGet, "/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(body))
}
