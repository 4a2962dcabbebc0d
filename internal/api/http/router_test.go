package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/workflow"
)

type testServer struct {
	app        *fiber.App
	tokens     *auth.TokenManager
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher(nil)
	historyRepo := memory.NewHistoryRepository()
	ticketRepo := memory.NewTicketRepository(historyRepo)
	staffRepo := memory.NewStaffRepository()
	ruleRepo := memory.NewRuleRepository()
	workflowRepo := memory.NewWorkflowRepository()
	metricRepo := memory.NewSLAMetricRepository()
	locks := service.NewKeyedMutex()

	automation := service.NewAutomationService(service.AutomationDependencies{
		TicketRepo:     ticketRepo,
		RuleRepo:       ruleRepo,
		StaffRepo:      staffRepo,
		RoundRobinRepo: memory.NewRoundRobinRepository(),
		Dispatcher:     dispatcher,
		Locks:          locks,
	})
	slaSvc := service.NewSLAService(service.SLADependencies{
		PolicyRepo: memory.NewSLAPolicyRepository(),
		MetricRepo: metricRepo,
		BreachRepo: memory.NewSLABreachRepository(),
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Locks:      locks,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  memory.NewMessageRepository(),
		HistoryRepo:  historyRepo,
		WorkflowRepo: workflowRepo,
		Machine:      workflow.NewMachine(domain.StaffRoleAdmin),
		Automation:   automation,
		SLA:          slaSvc,
		Dispatcher:   dispatcher,
		Locks:        locks,
	})
	admin := service.NewAdminService(service.AdminDependencies{
		WorkflowRepo: workflowRepo,
		RuleRepo:     ruleRepo,
		StaffRepo:    staffRepo,
	})
	tokens := auth.NewTokenManager("test-secret", 30)
	authSvc := service.NewAuthService(staffRepo, tokens)

	bootstrap, err := admin.EnsureBootstrapAdmin(context.Background(), "root@example.com")
	require.NoError(t, err)
	adminToken, _, err := authSvc.IssueStaffToken(context.Background(), bootstrap.ID)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, nil, nil, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-service", "test", nil, nil),
		Tickets:        handlers.NewTicketsHandler(tickets, slaSvc),
		SLA:            handlers.NewSLAHandler(slaSvc),
		Admin:          handlers.NewAdminHandler(admin, authSvc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, staffRepo),
	})
	return &testServer{app: app, tokens: tokens, adminToken: adminToken}
}

func (s *testServer) userToken(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(userID, domain.ActorTypeUser, nil)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, raw []byte) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "alive")

	status, body = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "disabled")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[any](t, body).Error.Code)
}

func TestTicketRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, http.MethodGet, "/api/v1/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", decode[any](t, body).Error.Code)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/tickets", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequesterLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.userToken(t, "alice")
	bob := srv.userToken(t, "bob")

	status, body := srv.do(t, http.MethodPost, "/api/v1/tickets", alice, dto.CreateTicketRequest{
		RequesterID: "someone-else",
		Title:       "VPN down",
		Category:    "network",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[dto.TicketResponse](t, body).Data
	assert.Equal(t, "alice", created.RequesterID)
	assert.Equal(t, domain.TicketStatusDraft, created.Status)
	assert.Equal(t, domain.TicketPriorityMedium, created.Priority)

	status, body = srv.do(t, http.MethodGet, "/api/v1/tickets", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]dto.TicketResponse](t, body).Data)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/tickets/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodPost, "/api/v1/workflows", srv.adminToken, dto.CreateWorkflowRequest{
		Name:   "it-approval",
		Stages: []domain.WorkflowStage{{Name: "lead", ApproverRole: domain.StaffRoleTeamLead}},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	wf := decode[dto.WorkflowResponse](t, body).Data

	status, body = srv.do(t, http.MethodPost, "/api/v1/tickets/"+created.ID+"/submit", alice, dto.SubmitTicketRequest{WorkflowID: wf.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, domain.TicketStatusInApproval, decode[dto.TicketResponse](t, body).Data.Status)

	status, body = srv.do(t, http.MethodPost, "/api/v1/tickets/"+created.ID+"/approve", alice, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", decode[any](t, body).Error.Code)

	status, body = srv.do(t, http.MethodPost, "/api/v1/tickets/"+created.ID+"/approve", srv.adminToken, dto.TransitionRequest{Comment: "ok"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, domain.TicketStatusApproved, decode[dto.TicketResponse](t, body).Data.Status)

	status, body = srv.do(t, http.MethodPost, "/api/v1/tickets/"+created.ID+"/close", srv.adminToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", decode[any](t, body).Error.Code)

	status, body = srv.do(t, http.MethodGet, "/api/v1/tickets/"+created.ID+"/history", alice, nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]dto.TicketHistoryResponse](t, body).Data
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionCreated, history[0].Action)
	assert.Equal(t, domain.ActionSubmitted, history[1].Action)
	assert.Equal(t, domain.ActionApproved, history[2].Action)
}

func TestAdminRoutesRejectAgents(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, http.MethodPost, "/api/v1/staff", srv.adminToken, dto.CreateStaffRequest{
		Name:  "Agent Smith",
		Email: "smith@example.com",
		Role:  domain.StaffRoleAgent,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	agent := decode[dto.StaffResponse](t, body).Data

	status, body = srv.do(t, http.MethodPost, "/api/v1/staff/"+agent.ID+"/token", srv.adminToken, nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	agentToken := decode[dto.AuthResponse](t, body).Data.Token
	require.NotEmpty(t, agentToken)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/sla/policies", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodGet, "/api/v1/sla/breaches", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]dto.SLABreachResponse](t, body).Data)

	status, body = srv.do(t, http.MethodPost, "/api/v1/sla/policies", srv.adminToken, map[string]any{
		"name":               "urgent",
		"response_time_mins": 30,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	policy := decode[dto.SLAPolicyResponse](t, body).Data
	assert.Equal(t, 80, policy.WarningThreshold)
	assert.True(t, policy.IsActive)
}
