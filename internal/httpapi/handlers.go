package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
	"github.com/feelens/feelens-core/internal/submit"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.submit.Submit(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, resp)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReasonCode string `json:"reason_code"`
		Note       string `json:"note,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.reports.Create(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.ReasonCode, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, report)
}

func (s *Server) handleModerateEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	entryID := chi.URLParam(r, "id")

	var err error
	switch req.Action {
	case "approve":
		err = s.entries.Approve(r.Context(), actor, entryID, req.Reason)
	case "reject":
		err = s.entries.Reject(r.Context(), actor, entryID, req.Reason)
	case "hide":
		err = s.entries.Hide(r.Context(), actor, entryID, req.Reason)
	default:
		err = apperr.Validation(map[string]string{"action": "must be approve, reject, or hide"})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"entry_id": entryID, "action": req.Action})
}

func (s *Server) handleResolveReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		Note   string `json:"note,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFrom(r.Context())
	reportID := chi.URLParam(r, "id")

	var err error
	switch req.Action {
	case "triage":
		err = s.reports.Triage(r.Context(), actor, reportID, req.Note)
	case "resolve":
		err = s.reports.Resolve(r.Context(), actor, reportID, req.Note)
	case "dismiss":
		err = s.reports.Dismiss(r.Context(), actor, reportID, req.Note)
	default:
		err = apperr.Validation(map[string]string{"action": "must be triage, resolve, or dismiss"})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"report_id": reportID, "action": req.Action})
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID            string `json:"entry_id"`
		VerificationMethod string `json:"provider_verification_method"`
		Claim              string `json:"provider_claim"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dispute, err := s.disputes.Open(r.Context(), actorFrom(r.Context()), req.EntryID, req.VerificationMethod, req.Claim)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, dispute)
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome          string `json:"outcome"`
		PlatformResponse string `json:"platform_response"`
		Note             string `json:"note,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	disputeID := chi.URLParam(r, "id")
	err := s.disputes.Resolve(r.Context(), actorFrom(r.Context()), disputeID, model.DisputeOutcome(req.Outcome), req.PlatformResponse, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"dispute_id": disputeID, "outcome": req.Outcome})
}

func (s *Server) handleUploadRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MimeType  string `json:"mime_type"`
		SizeBytes int64  `json:"size_bytes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := s.evidence.RequestUpload(r.Context(), actorFrom(r.Context()), req.MimeType, req.SizeBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, grant)
}

func (s *Server) handleConfirmEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID string `json:"entry_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	evidenceID := chi.URLParam(r, "id")
	if err := s.evidence.ConfirmUpload(r.Context(), actorFrom(r.Context()), evidenceID, req.EntryID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"evidence_id": evidenceID, "state": "confirmed"})
}

func (s *Server) handleFailEvidence(w http.ResponseWriter, r *http.Request) {
	evidenceID := chi.URLParam(r, "id")
	if err := s.evidence.Fail(r.Context(), actorFrom(r.Context()), evidenceID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]string{"evidence_id": evidenceID, "state": "failed"})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.CanModerate() {
		writeError(w, r, apperr.New(apperr.CodeAuthRequired, "moderator role required"))
		return
	}
	schemas, err := s.registry.List(r.Context(), chi.URLParam(r, "industry"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, schemas)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.CanModerate() {
		writeError(w, r, apperr.New(apperr.CodeAuthRequired, "moderator role required"))
		return
	}
	q := r.URL.Query()
	records, err := s.store.ListAudit(r.Context(), store.AuditFilter{
		EntryID:   q.Get("entry_id"),
		ReportID:  q.Get("report_id"),
		DisputeID: q.Get("dispute_id"),
		Action:    q.Get("action"),
		Limit:     100,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, records)
}
