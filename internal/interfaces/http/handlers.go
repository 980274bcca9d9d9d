package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/application/service"
	"github.com/garyjia/claim-workflow/internal/domain/entity"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
	"github.com/garyjia/claim-workflow/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ClaimRequest is the body of create and update calls
type ClaimRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptURL  string          `json:"receipt_url"`
}

func (r ClaimRequest) input() entity.ClaimInput {
	return entity.ClaimInput{
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		ReceiptURL:  r.ReceiptURL,
	}
}

// DecisionRequest carries the optional approval comment or the required rejection reason
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// CreateUserRequest is the body of POST /api/admin/users
type CreateUserRequest struct {
	DisplayName string        `json:"display_name" binding:"required"`
	Role        identity.Role `json:"role" binding:"required"`
	ManagerID   int64         `json:"manager_id"`
}

// SetManagerRequest is the body of PUT /api/admin/users/:id/manager
type SetManagerRequest struct {
	ManagerID int64 `json:"manager_id"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.deps.Health != nil {
		healthy, details := h.deps.Health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateClaim handles POST /api/claims
func (h *Handlers) CreateClaim(c *gin.Context) {
	var req ClaimRequest
	if !h.bind(c, &req) {
		return
	}

	view, err := h.deps.Workflow.CreateClaim(c.Request.Context(), mustUser(c), req.input())
	if err != nil {
		h.writeError(c, "create claim", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: view})
}

// ListMine handles GET /api/claims/mine
func (h *Handlers) ListMine(c *gin.Context) {
	views, err := h.deps.Query.ListMine(c.Request.Context(), mustUser(c))
	h.respondList(c, "list own claims", views, err)
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, ok := h.claimID(c)
	if !ok {
		return
	}
	view, err := h.deps.Query.GetByID(c.Request.Context(), id, mustUser(c))
	h.respond(c, "get claim", view, err)
}

// UpdateClaim handles PUT /api/claims/:id
func (h *Handlers) UpdateClaim(c *gin.Context) {
	id, ok := h.claimID(c)
	if !ok {
		return
	}
	var req ClaimRequest
	if !h.bind(c, &req) {
		return
	}
	view, err := h.deps.Workflow.UpdateClaim(c.Request.Context(), id, mustUser(c), req.input())
	h.respond(c, "update claim", view, err)
}

// DeleteClaim handles DELETE /api/claims/:id
func (h *Handlers) DeleteClaim(c *gin.Context) {
	id, ok := h.claimID(c)
	if !ok {
		return
	}
	if err := h.deps.Workflow.DeleteClaim(c.Request.Context(), id, mustUser(c)); err != nil {
		h.writeError(c, "delete claim", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitClaim handles POST /api/claims/:id/submit
func (h *Handlers) SubmitClaim(c *gin.Context) {
	id, ok := h.claimID(c)
	if !ok {
		return
	}
	view, err := h.deps.Workflow.Submit(c.Request.Context(), id, mustUser(c))
	h.respond(c, "submit claim", view, err)
}

// ListTeamPending handles GET /api/manager/claims/pending
func (h *Handlers) ListTeamPending(c *gin.Context) {
	views, err := h.deps.Query.ListTeamPending(c.Request.Context(), mustUser(c))
	h.respondList(c, "list team pending", views, err)
}

// ManagerApprove handles POST /api/manager/claims/:id/approve
func (h *Handlers) ManagerApprove(c *gin.Context) { h.managerDecide(c, true) }

// ManagerReject handles POST /api/manager/claims/:id/reject
func (h *Handlers) ManagerReject(c *gin.Context) { h.managerDecide(c, false) }

func (h *Handlers) managerDecide(c *gin.Context, approve bool) {
	id, req, ok := h.decision(c)
	if !ok {
		return
	}
	view, err := h.deps.Workflow.ManagerDecide(c.Request.Context(), id, mustUser(c), approve, req.Comment)
	h.respond(c, "manager decision", view, err)
}

// ListFinancePending handles GET /api/finance/claims/pending
func (h *Handlers) ListFinancePending(c *gin.Context) {
	views, err := h.deps.Query.ListFinancePending(c.Request.Context(), mustUser(c))
	h.respondList(c, "list finance pending", views, err)
}

// FinanceApprove handles POST /api/finance/claims/:id/approve
func (h *Handlers) FinanceApprove(c *gin.Context) { h.financeDecide(c, true) }

// FinanceReject handles POST /api/finance/claims/:id/reject
func (h *Handlers) FinanceReject(c *gin.Context) { h.financeDecide(c, false) }

func (h *Handlers) financeDecide(c *gin.Context, approve bool) {
	id, req, ok := h.decision(c)
	if !ok {
		return
	}
	view, err := h.deps.Workflow.FinanceDecide(c.Request.Context(), id, mustUser(c), approve, req.Comment)
	h.respond(c, "finance decision", view, err)
}

// MarkPaid handles POST /api/finance/claims/:id/pay
func (h *Handlers) MarkPaid(c *gin.Context) {
	id, ok := h.claimID(c)
	if !ok {
		return
	}
	view, err := h.deps.Workflow.MarkPaid(c.Request.Context(), id, mustUser(c))
	h.respond(c, "mark paid", view, err)
}

// ExportClaims handles GET /api/finance/reports/claims?status=APPROVED
func (h *Handlers) ExportClaims(c *gin.Context) {
	status := c.Query("status")
	data, err := h.deps.Report.ExportClaims(c.Request.Context(), mustUser(c), status)
	if err != nil {
		h.writeError(c, "export claims", err)
		return
	}

	if status == "" {
		status = "approved"
	}
	filename := fmt.Sprintf("claims-%s-%s.xlsx", status, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ListUsers handles GET /api/admin/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.deps.Directory.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: users})
}

// CreateUser handles POST /api/admin/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.deps.Directory.CreateUser(c.Request.Context(), service.NewUser{
		DisplayName: req.DisplayName,
		Role:        req.Role,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		h.writeError(c, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// SetManager handles PUT /api/admin/users/:id/manager
func (h *Handlers) SetManager(c *gin.Context) {
	id, ok := h.pathID(c, "user")
	if !ok {
		return
	}
	var req SetManagerRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.deps.Directory.SetManager(c.Request.Context(), id, req.ManagerID)
	if err != nil {
		h.writeError(c, "set manager", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

func (h *Handlers) respond(c *gin.Context, op string, view entity.ClaimView, err error) {
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

func (h *Handlers) respondList(c *gin.Context, op string, views []entity.ClaimView, err error) {
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	if views == nil {
		views = []entity.ClaimView{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: views})
}

// decision reads the claim id and an optional JSON body
func (h *Handlers) decision(c *gin.Context) (int64, DecisionRequest, bool) {
	var req DecisionRequest
	id, ok := h.claimID(c)
	if !ok {
		return 0, req, false
	}
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return 0, req, false
	}
	return id, req, true
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.writeError(c, "bind request", fmt.Errorf("%w: invalid request body: %v", workflow.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handlers) claimID(c *gin.Context) (int64, bool) {
	return h.pathID(c, "claim")
}

func (h *Handlers) pathID(c *gin.Context, kind string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, "parse id", fmt.Errorf("%w: invalid %s id %q", workflow.ErrValidation, kind, c.Param("id")))
		return 0, false
	}
	return id, true
}

// mustUser returns the identity set by authMiddleware
func mustUser(c *gin.Context) identity.Identity {
	id, _ := currentUser(c)
	return id
}
