package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vulnwatch/application"
	"vulnwatch/domain/audits"
	"vulnwatch/domain/findings"
	"vulnwatch/logging"
)

// AuditHandlers exposes the analysis producer surface: creating audits,
// advancing them through stages, attaching findings and failing them.
type AuditHandlers struct {
	orchestrator *application.AuditOrchestrator
	logger       *logging.Logger
}

// NewAuditHandlers creates audit HTTP handlers.
func NewAuditHandlers(orchestrator *application.AuditOrchestrator) *AuditHandlers {
	return &AuditHandlers{
		orchestrator: orchestrator,
		logger:       logging.Default().WithComponent("audit_handlers"),
	}
}

type createAuditRequest struct {
	OwnerID     string `json:"ownerId"`
	SubjectName string `json:"subjectName"`
}

type advanceAuditRequest struct {
	Status                 string `json:"status"`
	Progress               int    `json:"progress"`
	Message                string `json:"message"`
	CurrentStep            string `json:"currentStep"`
	EstimatedTimeRemaining *int   `json:"estimatedTimeRemaining"`
}

type failAuditRequest struct {
	Message string `json:"message"`
}

type attachFindingsRequest struct {
	Findings []findingPayload `json:"findings"`
}

type findingPayload struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Title    string `json:"title"`
}

// auditResponse is the JSON shape of an audit on the producer surface.
type auditResponse struct {
	ID          string             `json:"id"`
	OwnerID     string             `json:"ownerId"`
	SubjectName string             `json:"subjectName"`
	Status      audits.Status      `json:"status"`
	Progress    int                `json:"progress"`
	Message     string             `json:"message"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Result      *audits.Result     `json:"result,omitempty"`
	Findings    []findings.Finding `json:"findings,omitempty"`
}

func presentAudit(audit *audits.Audit) auditResponse {
	return auditResponse{
		ID:          audit.ID,
		OwnerID:     audit.OwnerID,
		SubjectName: audit.SubjectName,
		Status:      audit.Status,
		Progress:    audit.Progress,
		Message:     audit.Message,
		CreatedAt:   audit.CreatedAt,
		CompletedAt: audit.CompletedAt,
		Result:      audit.Result,
		Findings:    audit.Findings,
	}
}

// CreateAudit handles POST /api/audits.
func (h *AuditHandlers) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var req createAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.SubjectName == "" {
		writeError(w, http.StatusBadRequest, "ownerId and subjectName are required")
		return
	}

	audit, err := h.orchestrator.CreateAudit(r.Context(), req.OwnerID, req.SubjectName)
	if err != nil {
		h.logger.Error("Failed to create audit", "error", err, "owner_id", req.OwnerID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, presentAudit(audit))
}

// GetAudit handles GET /api/audits/{auditID}.
func (h *AuditHandlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "auditID")

	audit, err := h.orchestrator.GetAudit(r.Context(), auditID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, presentAudit(audit))
}

// AdvanceAudit handles POST /api/audits/{auditID}/advance.
func (h *AuditHandlers) AdvanceAudit(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "auditID")

	var req advanceAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := audits.Status(req.Status)
	if !status.IsStage() && status != audits.StatusError {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	audit, err := h.orchestrator.Advance(r.Context(), auditID, application.StageUpdate{
		Status:                 status,
		Progress:               req.Progress,
		Message:                req.Message,
		CurrentStep:            req.CurrentStep,
		EstimatedTimeRemaining: req.EstimatedTimeRemaining,
	})
	if err != nil {
		h.logger.AuditError("Transition rejected", err, auditID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, presentAudit(audit))
}

// FailAudit handles POST /api/audits/{auditID}/fail.
func (h *AuditHandlers) FailAudit(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "auditID")

	var req failAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	audit, err := h.orchestrator.Fail(r.Context(), auditID, req.Message)
	if err != nil {
		h.logger.AuditError("Fail rejected", err, auditID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, presentAudit(audit))
}

// AttachFindings handles POST /api/audits/{auditID}/findings.
func (h *AuditHandlers) AttachFindings(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "auditID")

	var req attachFindingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Findings) == 0 {
		writeError(w, http.StatusBadRequest, "findings are required")
		return
	}

	list := make([]findings.Finding, 0, len(req.Findings))
	for _, f := range req.Findings {
		severity, err := findings.ParseSeverity(f.Severity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list = append(list, findings.Finding{
			Severity: severity,
			Category: f.Category,
			Title:    f.Title,
		})
	}

	if err := h.orchestrator.AttachFindings(r.Context(), auditID, list); err != nil {
		h.logger.AuditError("Findings rejected", err, auditID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"auditId":  auditID,
		"attached": len(list),
	})
}
