package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/gateway"
	"receivables-conciliation-backend/internal/report"
	service "receivables-conciliation-backend/internal/services/reconciliation"
	"receivables-conciliation-backend/internal/services/rows"
	"receivables-conciliation-backend/internal/workflow"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type WorkflowHandler struct {
	service *service.ReconciliationService
}

func NewWorkflowHandler(s *service.ReconciliationService) *WorkflowHandler {
	return &WorkflowHandler{service: s}
}

// stateResponse is a session as the front end sees it. The session token
// itself never leaves the server.
type stateResponse struct {
	WorkflowID string `json:"workflow_id"`
	workflow.Session
	HasSession bool                                `json:"has_session"`
	Busy       bool                                `json:"busy"`
	Summary    *conciliation.ReconciliationSummary `json:"summary,omitempty"`
}

func (h *WorkflowHandler) respond(c *gin.Context, status int, id uuid.UUID, s workflow.Session) {
	busy, _ := h.service.Busy(id)
	resp := stateResponse{
		WorkflowID: id.String(),
		Session:    s,
		HasSession: s.HasToken(),
		Busy:       busy,
	}
	if s.Result != nil {
		summary := s.Result.Summary
		resp.Summary = &summary
	}
	c.JSON(status, resp)
}

// respondFailure reports err together with the session so the client can
// redraw the step and the error message in one round trip.
func (h *WorkflowHandler) respondFailure(c *gin.Context, id uuid.UUID, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	if status == http.StatusNotFound {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	s, _ := h.service.State(id)
	c.JSON(status, gin.H{
		"error":       msg,
		"workflow_id": id.String(),
		"step":        s.Step,
		"last_error":  s.LastError,
	})
}

func workflowID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow ID"})
		return uuid.Nil, false
	}
	return id, true
}

// detached keeps the request's values but not its cancellation. A call the
// remote service may already have committed must run to completion even
// when the client goes away; the gateway timeout still bounds it.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *WorkflowHandler) Create(c *gin.Context) {
	id, s, err := h.service.StartWorkflow()
	if err != nil {
		writeError(c, err, "")
		return
	}
	h.respond(c, http.StatusCreated, id, s)
}

// List returns stored workflows: ?step=all|no_file|...&limit=
func (h *WorkflowHandler) List(c *gin.Context) {
	var step *workflow.Step
	if raw := c.Query("step"); raw != "" && raw != "all" {
		parsed, err := workflow.ParseStep(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		step = &parsed
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	items, err := h.service.ListWorkflows(step, limit)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	s, err := h.service.State(id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	h.respond(c, http.StatusOK, id, s)
}

// Upload forwards one multipart file. The optional "encoding" form field
// names the file's character set when it is not UTF-8.
func (h *WorkflowHandler) Upload(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	file, err := gateway.ToUTF8(conciliation.File{Name: fh.Filename, Content: f}, c.PostForm("encoding"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.service.Upload(detached(c), id, file)
	if err != nil {
		h.respondFailure(c, id, err, conciliation.MsgUploadFailed)
		return
	}
	h.respond(c, http.StatusOK, id, s)
}

func (h *WorkflowHandler) Skip(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	s, err := h.service.Skip(id)
	if err != nil {
		h.respondFailure(c, id, err, "")
		return
	}
	h.respond(c, http.StatusOK, id, s)
}

func (h *WorkflowHandler) Conciliate(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	s, err := h.service.Conciliate(detached(c), id)
	if err != nil {
		h.respondFailure(c, id, err, conciliation.MsgConciliateFailed)
		return
	}
	h.respond(c, http.StatusOK, id, s)
}

func (h *WorkflowHandler) Reset(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	s, err := h.service.Reset(id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	h.respond(c, http.StatusOK, id, s)
}

func parseQuery(c *gin.Context) (rows.Query, bool) {
	filter, err := rows.ParseFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return rows.Query{}, false
	}
	return rows.Query{Status: filter, Search: c.Query("q")}, true
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultPageSize, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return min(n, maxPageSize), true
}

// ListRows returns one page of the results table:
// ?status=all|matched|pending_receivable|unlinked_payment&q=&cursor=&limit=
func (h *WorkflowHandler) ListRows(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	page, err := h.service.View(id, q, c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *WorkflowHandler) Stats(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *WorkflowHandler) Transitions(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	entries, err := h.service.Transitions(id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h *WorkflowHandler) Runs(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	runs, err := h.service.Runs(id)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// Export redirects the browser to the remote CSV export.
func (h *WorkflowHandler) Export(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	url, err := h.service.ExportURL(id)
	if err != nil {
		writeError(c, err, conciliation.MsgExportFailed)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Report renders the filtered table as an XLSX workbook.
func (h *WorkflowHandler) Report(c *gin.Context) {
	id, ok := workflowID(c)
	if !ok {
		return
	}
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	page, err := h.service.View(id, q, "", 0)
	if err != nil {
		writeError(c, err, conciliation.MsgExportFailed)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="conciliation-%s.xlsx"`, id))
	c.Status(http.StatusOK)
	if err := report.WriteWorkbook(c.Writer, page.View); err != nil {
		_ = c.Error(err)
	}
}
