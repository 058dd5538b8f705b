package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"assetlend/internal/authz"
	"assetlend/internal/middleware"
	"assetlend/internal/service"
	"assetlend/pkg/pagination"
	"assetlend/pkg/response"
)

type LoanHandler struct {
	loanService service.LoanService
	sweeper     *service.OverdueSweeper
	auth        *middleware.Auth
}

func NewLoanHandler(loanService service.LoanService, sweeper *service.OverdueSweeper, auth *middleware.Auth) *LoanHandler {
	return &LoanHandler{loanService: loanService, sweeper: sweeper, auth: auth}
}

func (h *LoanHandler) RegisterRoutes(router *gin.RouterGroup) {
	loans := router.Group("/api/loans")
	{
		loans.GET("", h.auth.RequirePermission(authz.ViewOwnLoans), h.List)
		loans.POST("", h.auth.RequirePermission(authz.CreateLoan), h.Create)
		loans.POST("/check-overdue", h.auth.RequirePermission(authz.ManageLoans), h.CheckOverdue)
		loans.GET("/:id", h.auth.RequirePermission(authz.ViewOwnLoans), h.Get)
		loans.POST("/:id/approve", h.auth.RequirePermission(authz.ManageLoans), h.Approve)
		loans.POST("/:id/reject", h.auth.RequirePermission(authz.ManageLoans), h.Reject)
		loans.POST("/:id/start", h.auth.RequirePermission(authz.CreateLoan), h.Start)
		loans.POST("/:id/return", h.auth.RequirePermission(authz.ReturnLoan), h.Return)
	}
}

// List godoc
// @Summary      List loans
// @Description  Loan managers see every loan; everyone else sees only their own
// @Tags         loans
// @Produce      json
// @Security     BearerAuth
// @Param        skip      query     int     false  "Offset (default 0)"
// @Param        limit     query     int     false  "Page size 1-100 (default 100)"
// @Param        status    query     string  false  "Loan status"
// @Param        asset_id  query     string  false  "Asset ID (loan managers only)"
// @Success      200       {object}  response.Response{data=response.Page{items=[]service.LoanResponse}}
// @Failure      422       {object}  response.Response
// @Router       /api/loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	p, err := pagination.Parse(c)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	loans, total, err := h.loanService.ListLoans(c.Request.Context(), currentCaller(c), service.LoanListFilter{
		Status:  c.Query("status"),
		AssetID: c.Query("asset_id"),
	}, p.Skip, p.Limit)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", page(loans, total, p))
}

// Create godoc
// @Summary      Request a loan
// @Description  Creates a pending loan request for an available asset
// @Tags         loans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateLoanRequest  true  "Loan request"
// @Success      201      {object}  response.Response{data=service.LoanResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req service.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BindError(c, err)
		return
	}
	loan, err := h.loanService.CreateLoanRequest(c.Request.Context(), currentCaller(c), req)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.Created(c, "Loan request created", loan)
}

// Get godoc
// @Summary      Get loan
// @Tags         loans
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Loan ID"
// @Success      200  {object}  response.Response{data=service.LoanResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loanService.GetLoan(c.Request.Context(), c.Param("id"), currentCaller(c))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", loan)
}

// Approve godoc
// @Summary      Approve loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true   "Loan ID"
// @Param        payload  body      service.LoanStatusUpdate  false  "Optional notes"
// @Success      200      {object}  response.Response{data=service.LoanResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/loans/{id}/approve [post]
func (h *LoanHandler) Approve(c *gin.Context) {
	req, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	loan, err := h.loanService.Approve(c.Request.Context(), c.Param("id"), currentCaller(c), req.Notes)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Loan approved", loan)
}

// Reject godoc
// @Summary      Reject loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true   "Loan ID"
// @Param        payload  body      service.LoanStatusUpdate  false  "Optional notes"
// @Success      200      {object}  response.Response{data=service.LoanResponse}
// @Failure      404      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/loans/{id}/reject [post]
func (h *LoanHandler) Reject(c *gin.Context) {
	req, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	loan, err := h.loanService.Reject(c.Request.Context(), c.Param("id"), currentCaller(c), req.Notes)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Loan rejected", loan)
}

// Start godoc
// @Summary      Start borrowing
// @Description  Only the borrower can pick up an approved loan
// @Tags         loans
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Loan ID"
// @Success      200  {object}  response.Response{data=service.LoanResponse}
// @Failure      403  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/loans/{id}/start [post]
func (h *LoanHandler) Start(c *gin.Context) {
	loan, err := h.loanService.StartBorrowing(c.Request.Context(), c.Param("id"), currentCaller(c))
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Borrowing started", loan)
}

// Return godoc
// @Summary      Return loan
// @Description  The borrower or a loan manager returns a borrowed or overdue loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true   "Loan ID"
// @Param        payload  body      service.LoanStatusUpdate  false  "Optional notes"
// @Success      200      {object}  response.Response{data=service.LoanResponse}
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/loans/{id}/return [post]
func (h *LoanHandler) Return(c *gin.Context) {
	req, ok := bindStatusUpdate(c)
	if !ok {
		return
	}
	caller := currentCaller(c)
	loan, err := h.loanService.ReturnLoan(c.Request.Context(), c.Param("id"), caller, authz.HasPermission(caller, authz.ManageLoans), req.Notes)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "Loan returned", loan)
}

// CheckOverdue godoc
// @Summary      Mark overdue loans
// @Description  Moves every borrowed loan past its due date to overdue and returns them
// @Tags         loans
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.LoanResponse}
// @Router       /api/loans/check-overdue [post]
func (h *LoanHandler) CheckOverdue(c *gin.Context) {
	loans, err := h.sweeper.SweepOnce(c.Request.Context(), currentCaller(c).ID)
	if err != nil {
		middleware.RenderError(c, err)
		return
	}
	response.OK(c, "", loans)
}

// bindStatusUpdate reads the optional notes body. An empty body, including a
// chunked one with unknown length, means no notes.
func bindStatusUpdate(c *gin.Context) (service.LoanStatusUpdate, bool) {
	var req service.LoanStatusUpdate
	if c.Request.ContentLength == 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return service.LoanStatusUpdate{}, true
		}
		middleware.BindError(c, err)
		return req, false
	}
	return req, true
}
