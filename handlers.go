package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/metrics"
	"github.com/mmdatafocus/fund_ledger/middlewares"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/models/reports"
	"github.com/mmdatafocus/fund_ledger/utils"
	"github.com/mmdatafocus/fund_ledger/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UploadFunc stores an uploaded compliance document and returns its reference.
type UploadFunc func(ctx context.Context, objectName string, content io.Reader) (string, error)

// api is the REST boundary. It only translates requests into ledger calls;
// every rule lives in the ledger.
type api struct {
	ledger  atomic.Pointer[ledger.Ledger]
	lease   workflow.LeaseChecker
	metrics *metrics.LedgerMetrics
	logger  *logrus.Logger
	upload  UploadFunc

	// db backs the outbox ops routes; nil with the in-memory store.
	db *gorm.DB
}

func newAPI(logger *logrus.Logger, m *metrics.LedgerMetrics) *api {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &api{metrics: m, logger: logger, upload: utils.UploadComplianceDocument}
}

func (a *api) routes(r gin.IRouter) {
	r.POST("/accounts", a.registerAccount)
	r.POST("/accounts/:id/active", a.setAccountActive)
	r.GET("/accounts/:id/requests", a.listRequestsByRequester)
	r.GET("/accounts/:id/allocations", a.listAllocationsByVendor)
	r.GET("/accounts/:id/reputation", a.getReputation)

	r.POST("/requests", a.submitRequest)
	r.GET("/requests/:id", a.getRequest)
	r.POST("/requests/:id/approve", a.approveRequest)
	r.POST("/requests/:id/reject", a.rejectRequest)
	r.POST("/requests/:id/allocate", a.allocateFunds)

	r.GET("/allocations/:id", a.getAllocation)
	r.POST("/allocations/:id/documents", a.submitDocuments)
	r.POST("/allocations/:id/documents/upload", a.uploadDocument)
	r.POST("/allocations/:id/verify", a.verifyCompliance)
	r.POST("/allocations/:id/recover", a.emergencyRecover)

	r.GET("/dashboard", a.dashboard)
	r.GET("/transactions", a.transactionHistory)
	r.GET("/transactions/export", a.exportTransactions)
	r.GET("/transactions/verify", a.verifyChain)

	r.GET("/ops/outbox", a.outboxSummary)
	r.POST("/ops/outbox/replay", a.outboxReplay)
}

// readyLedger returns the opened ledger or answers 503 while startup is
// still loading it.
func (a *api) readyLedger(c *gin.Context) *ledger.Ledger {
	l := a.ledger.Load()
	if l == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "ledger is not ready"})
	}
	return l
}

// mutationLedger additionally checks the writer lease.
func (a *api) mutationLedger(c *gin.Context) *ledger.Ledger {
	l := a.readyLedger(c)
	if l == nil {
		return nil
	}
	if err := workflow.EnforcePostingGate(c.Request.Context(), a.lease); err != nil {
		a.writeError(c, err)
		return nil
	}
	return l
}

func errorStatus(err error) (int, string) {
	switch {
	case workflow.IsPostingGateError(err):
		return http.StatusServiceUnavailable, "writer_lease"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, ledger.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, ledger.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *api) writeError(c *gin.Context, err error) {
	status, kind := errorStatus(err)
	if a.metrics != nil {
		a.metrics.ObserveRejection(kind)
	}
	if status == http.StatusInternalServerError {
		config.LogError(a.logger, "handlers.go", c.FullPath(), "ledger call", nil, err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error", "kind": kind})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_input"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func caller(c *gin.Context) ledger.Caller {
	return middlewares.CallerFromContext(c.Request.Context())
}

func (a *api) registerAccount(c *gin.Context) {
	var input models.NewAccount
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	p, err := l.RegisterAccount(c.Request.Context(), caller(c), input)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (a *api) setAccountActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active is required")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	p, err := l.SetAccountActive(c.Request.Context(), caller(c), c.Param("id"), *req.Active)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type submitRequestBody struct {
	Department  string      `json:"department"`
	Project     string      `json:"project"`
	Amount      interface{} `json:"amount"`
	Description string      `json:"description"`
	DocumentRef string      `json:"document_ref"`
}

func (a *api) submitRequest(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request")
		return
	}
	amount, err := utils.ParseAmount(body.Amount)
	if err != nil {
		badRequest(c, "amount: "+err.Error())
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	r, err := l.SubmitRequest(c.Request.Context(), caller(c), models.NewBudgetRequest{
		Department:  body.Department,
		Project:     body.Project,
		Amount:      amount,
		Description: body.Description,
		DocumentRef: body.DocumentRef,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a *api) approveRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	r, err := l.ApproveRequest(c.Request.Context(), caller(c), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (a *api) rejectRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	r, err := l.RejectRequest(c.Request.Context(), caller(c), id, req.Reason)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type allocateRequest struct {
	Vendor       string `json:"vendor"`
	Requirements string `json:"requirements"`
}

func (a *api) allocateFunds(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.AllocateFunds(c.Request.Context(), caller(c), id, req.Vendor, req.Requirements)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alloc)
}

type documentsRequest struct {
	Documents []string `json:"documents"`
}

func (a *api) submitDocuments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req documentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.SubmitComplianceDocuments(c.Request.Context(), caller(c), id, req.Documents)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

// uploadDocument stores the multipart "file" and submits its reference.
// Ownership is checked before the upload so a refused caller stores nothing.
func (a *api) uploadDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.GetAllocation(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	if who := caller(c); who.Identity == "" || who.Identity != alloc.Vendor {
		a.writeError(c, &ledger.Error{Kind: ledger.ErrUnauthorized, Op: "SubmitComplianceDocuments", Msg: "only the allocated vendor may submit documents"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fileHeader.Size > utils.MaxDocumentSize {
		badRequest(c, "document is too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer file.Close()

	ref, err := a.upload(c.Request.Context(), utils.ComplianceObjectName(id, fileHeader.Filename), file)
	if err != nil {
		config.LogError(a.logger, "handlers.go", "uploadDocument", "upload", fileHeader.Filename, err)
		badRequest(c, err.Error())
		return
	}
	alloc, err = l.SubmitComplianceDocuments(c.Request.Context(), caller(c), id, []string{ref})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": ref, "allocation": alloc})
}

func (a *api) verifyCompliance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.VerifyCompliance(c.Request.Context(), caller(c), id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

func (a *api) emergencyRecover(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	l := a.mutationLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.EmergencyRecover(c.Request.Context(), caller(c), id, req.Reason)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

func (a *api) getRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	r, err := l.GetRequest(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a *api) getAllocation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	alloc, err := l.GetAllocation(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alloc)
}

func (a *api) listRequestsByRequester(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	c.JSON(http.StatusOK, l.ListRequestsByRequester(c.Param("id")))
}

func (a *api) listAllocationsByVendor(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	c.JSON(http.StatusOK, l.ListAllocationsByVendor(c.Param("id")))
}

func (a *api) getReputation(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	audit, err := l.DeriveReputation(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (a *api) dashboard(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	c.JSON(http.StatusOK, l.GetDashboardStats())
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return n, true
}

func (a *api) transactionHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	txs, err := l.GetTransactionHistory(limit, offset)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": l.TransactionCount(), "limit": limit, "offset": offset, "transactions": txs})
}

func (a *api) exportTransactions(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	c.Header("Content-Type", reports.ExcelContentType)
	c.Header("Content-Disposition", "attachment; filename="+reports.ExportFilename(time.Now()))
	if err := reports.WriteLedgerWorkbook(c.Writer, l); err != nil {
		config.LogError(a.logger, "handlers.go", "exportTransactions", "WriteLedgerWorkbook", nil, err)
		_ = c.Error(err)
	}
}

func (a *api) verifyChain(c *gin.Context) {
	l := a.readyLedger(c)
	if l == nil {
		return
	}
	report := workflow.ReconcileLedger(l)
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

// requireAdmin admits only a registered, active Admin caller.
func (a *api) requireAdmin(c *gin.Context, l *ledger.Ledger) bool {
	who := caller(c)
	p, err := l.GetAccount(who.Identity)
	if who.Identity == "" || err != nil || who.Role != models.RoleAdmin || p.Role != models.RoleAdmin || !p.Active {
		a.writeError(c, &ledger.Error{Kind: ledger.ErrUnauthorized, Op: "Outbox", Msg: "admin only"})
		return false
	}
	return true
}

func (a *api) outboxLedger(c *gin.Context) *ledger.Ledger {
	l := a.readyLedger(c)
	if l == nil || !a.requireAdmin(c, l) {
		return nil
	}
	if a.db == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification outbox is not configured", "kind": "not_found"})
		return nil
	}
	return l
}

func (a *api) outboxSummary(c *gin.Context) {
	if a.outboxLedger(c) == nil {
		return
	}
	summary, err := models.GetOutboxSummary(c.Request.Context(), a.db)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type replayRequest struct {
	IDs []int64 `json:"ids"`
}

func (a *api) outboxReplay(c *gin.Context) {
	var req replayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	if a.outboxLedger(c) == nil {
		return
	}
	n, err := models.ReplayNotifications(c.Request.Context(), a.db, req.IDs)
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.logger.WithFields(logrus.Fields{
		"field":    "outboxReplay",
		"actor":    caller(c).Identity,
		"replayed": n,
	}).Info("notification outbox replayed")
	c.JSON(http.StatusOK, gin.H{"replayed": n})
}
