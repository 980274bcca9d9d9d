package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/application/workflow"
	"github.com/garyjia/claim-workflow/internal/auth"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	domainwf "github.com/garyjia/claim-workflow/internal/domain/workflow"
	"github.com/garyjia/claim-workflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/claim-workflow/internal/metrics"
)

var (
	manager  = identity.Identity{ID: 1, DisplayName: "Mia", Role: identity.RoleManager}
	employee = identity.Identity{ID: 2, DisplayName: "Eli", Role: identity.RoleEmployee, ManagerID: 1}
	other    = identity.Identity{ID: 3, DisplayName: "Ola", Role: identity.RoleEmployee, ManagerID: 1}
	finance  = identity.Identity{ID: 4, DisplayName: "Fay", Role: identity.RoleFinance}
	admin    = identity.Identity{ID: 5, DisplayName: "Ada", Role: identity.RoleAdmin}
)

type apiFixture struct {
	t       *testing.T
	router  *gin.Engine
	tokens  *auth.TokenService
	metrics *metrics.Metrics
	healthy bool
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	claims := memory.NewClaimRepository()
	users := memory.NewUserDirectory(manager, employee, other, finance, admin)
	tx := memory.TxManager{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger := zap.NewNop()

	f := &apiFixture{
		t:       t,
		tokens:  auth.NewTokenService("http-test-signing-key", "claims", "claims-api"),
		metrics: m,
		healthy: true,
	}

	server := NewServer(ServerConfig{Mode: gin.TestMode, CORSOrigins: []string{"http://localhost:3000"}}, Dependencies{
		Workflow:  workflow.NewEngine(claims, users, tx, workflow.WithMetrics(m)),
		Query:     service.NewQueryService(claims, users, logger),
		Directory: service.NewDirectoryService(users, tx, logger),
		Report:    service.NewReportService(claims, nil, logger),
		Users:     users,
		Tokens:    f.tokens,
		Metrics:   m,
		Gatherer:  reg,
		Health: func(context.Context) (bool, interface{}) {
			return f.healthy, map[string]bool{"database": f.healthy}
		},
	}, logger)
	f.router = server.Router()
	return f
}

func (f *apiFixture) token(userID int64) string {
	tok, err := f.tokens.Issue(userID, time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *apiFixture) do(as int64, method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != 0 {
		req.Header.Set("Authorization", "Bearer "+f.token(as))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeClaim(t *testing.T, w *httptest.ResponseRecorder) entity.ClaimView {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, env.Error)
	var view entity.ClaimView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func (f *apiFixture) createClaim(as int64) entity.ClaimView {
	w := f.do(as, http.MethodPost, "/api/claims", map[string]interface{}{
		"title":  "Client dinner",
		"amount": "84.50",
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeClaim(f.t, w)
}

func TestAPI_FullLifecycle(t *testing.T) {
	f := newAPI(t)
	view := f.createClaim(employee.ID)
	assert.Equal(t, "DRAFT", view.Status)
	assert.Equal(t, "84.50", view.Amount)

	base := fmt.Sprintf("/api/claims/%d", view.ID)
	w := f.do(employee.ID, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(manager.ID, http.MethodGet, "/api/manager/claims/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PENDING_MANAGER"`)

	w = f.do(manager.ID, http.MethodPost, fmt.Sprintf("/api/manager/claims/%d/approve", view.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(finance.ID, http.MethodPost, fmt.Sprintf("/api/finance/claims/%d/approve", view.ID), DecisionRequest{Comment: "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(finance.ID, http.MethodGet, "/api/finance/reports/claims", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "claims-approved-")
	assert.NotZero(t, w.Body.Len())

	w = f.do(finance.ID, http.MethodPost, fmt.Sprintf("/api/finance/claims/%d/pay", view.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decodeClaim(t, w)
	assert.Equal(t, "PAID", paid.Status)

	actions := make([]entity.ActionKind, 0, len(paid.History))
	for _, e := range paid.History {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []entity.ActionKind{
		entity.ActionCreated,
		entity.ActionSubmitted,
		entity.ActionManagerApproved,
		entity.ActionFinanceApproved,
		entity.ActionMarkedAsPaid,
	}, actions)
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newAPI(t)
	view := f.createClaim(employee.ID)
	claimPath := fmt.Sprintf("/api/claims/%d", view.ID)

	tests := []struct {
		name   string
		as     int64
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing claim", employee.ID, http.MethodGet, "/api/claims/999", nil, http.StatusNotFound},
		{"bad id", employee.ID, http.MethodGet, "/api/claims/abc", nil, http.StatusBadRequest},
		{"colleague reads", other.ID, http.MethodGet, claimPath, nil, http.StatusForbidden},
		{"manager approves draft", manager.ID, http.MethodPost, fmt.Sprintf("/api/manager/claims/%d/approve", view.ID), nil, http.StatusConflict},
		{"employee reads finance queue", employee.ID, http.MethodGet, "/api/finance/claims/pending", nil, http.StatusForbidden},
		{"non-positive amount", employee.ID, http.MethodPost, "/api/claims", map[string]string{"title": "x", "amount": "0"}, http.StatusBadRequest},
		{"malformed amount", employee.ID, http.MethodPost, "/api/claims", map[string]string{"title": "x", "amount": "lots"}, http.StatusBadRequest},
		{"bad export status", finance.ID, http.MethodGet, "/api/finance/reports/claims?status=NOPE", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.as, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestAPI_RejectNeedsComment(t *testing.T) {
	f := newAPI(t)
	view := f.createClaim(employee.ID)
	require.Equal(t, http.StatusOK, f.do(employee.ID, http.MethodPost, fmt.Sprintf("/api/claims/%d/submit", view.ID), nil).Code)

	reject := fmt.Sprintf("/api/manager/claims/%d/reject", view.ID)
	w := f.do(manager.ID, http.MethodPost, reject, DecisionRequest{Comment: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(manager.ID, http.MethodPost, reject, DecisionRequest{Comment: "Missing receipt"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decodeClaim(t, w)
	assert.Equal(t, "REJECTED_MANAGER", rejected.Status)
	assert.Equal(t, "Missing receipt", rejected.History[len(rejected.History)-1].Comment)
}

func TestAPI_UpdateAndDelete(t *testing.T) {
	f := newAPI(t)
	view := f.createClaim(employee.ID)
	path := fmt.Sprintf("/api/claims/%d", view.ID)

	w := f.do(employee.ID, http.MethodPut, path, ClaimRequest{Title: "Team dinner", Description: "Q3 offsite"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "zero amount must be rejected")

	w = f.do(employee.ID, http.MethodPut, path, map[string]string{"title": "Team dinner", "amount": "120"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Team dinner", decodeClaim(t, w).Title)

	w = f.do(other.ID, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(employee.ID, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(employee.ID, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(employee.ID, http.MethodGet, "/api/claims/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestAPI_Authentication(t *testing.T) {
	f := newAPI(t)

	w := f.do(0, http.MethodGet, "/api/claims/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/claims/mine", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(42, http.MethodGet, "/api/claims/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unknown user")

	forged := auth.NewTokenService("some-other-signing-key", "claims", "claims-api")
	tok, err := forged.Issue(employee.ID, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/claims/mine", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_AdminUsers(t *testing.T) {
	f := newAPI(t)

	w := f.do(manager.ID, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(admin.ID, http.MethodPost, "/api/admin/users", map[string]interface{}{
		"display_name": "Noa", "role": "EMPLOYEE", "manager_id": manager.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var created identity.Identity
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, identity.RoleEmployee, created.Role)

	w = f.do(admin.ID, http.MethodPost, "/api/admin/users", map[string]interface{}{
		"display_name": "Orphan", "role": "EMPLOYEE",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(admin.ID, http.MethodPost, "/api/admin/users", map[string]interface{}{
		"display_name": "Who", "role": "WIZARD",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(admin.ID, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/manager", created.ID), SetManagerRequest{ManagerID: finance.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "finance cannot manage")

	w = f.do(admin.ID, http.MethodPut, "/api/admin/users/999/manager", SetManagerRequest{ManagerID: manager.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(admin.ID, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"display_name":"Noa"`)
}

func TestAPI_HealthMetricsAndRequestID(t *testing.T) {
	f := newAPI(t)

	w := f.do(0, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	f.healthy = false
	w = f.do(0, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(requestIDHeader))

	f.createClaim(employee.ID)
	w = f.do(0, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `claims_workflow_operations_total{operation="create",outcome="accepted"} 1`), body)
	assert.Contains(t, body, `path="/api/claims"`)
}

func TestAPI_CORSPreflight(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/claims", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("x: %w", domainwf.ErrConcurrentUpdate)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", service.ErrUserNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}
