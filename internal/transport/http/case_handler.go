package httptransport

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vettinghub/internal/caseflow"
	"vettinghub/internal/caseflow/service"
	"vettinghub/internal/caseflow/store"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/httputil"
	"vettinghub/pkg/requestcontext"
)

// CaseHandler wires the case lifecycle endpoints.
type CaseHandler struct {
	cases  *service.Service
	guard  *tenancy.Guard
	logger *slog.Logger
}

// NewCaseHandler constructs the handler.
func NewCaseHandler(cases *service.Service, guard *tenancy.Guard, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{cases: cases, guard: guard, logger: logger}
}

// Register mounts the case endpoints.
func (h *CaseHandler) Register(r chi.Router) {
	r.Post("/orgs/{orgID}/cases", h.HandleSubmit)
	r.Get("/orgs/{orgID}/cases", h.HandleList)
	r.Get("/orgs/{orgID}/cases/{caseID}", h.HandleGet)
	r.Patch("/orgs/{orgID}/cases/{caseID}", h.HandleEdit)
	r.Post("/orgs/{orgID}/cases/{caseID}/assign", h.HandleAssign)
	r.Post("/orgs/{orgID}/cases/{caseID}/vet", h.HandleVet)
	r.Post("/orgs/{orgID}/cases/{caseID}/reopen", h.HandleReopen)
	r.Get("/orgs/{orgID}/cases/{caseID}/timeline", h.HandleTimeline)
	r.Get("/orgs/{orgID}/dashboard", h.HandleDashboard)
	r.Get("/orgs/{orgID}/audit/export", h.HandleAuditExport)
}

func (h *CaseHandler) resolve(r *http.Request) (tenancy.Scope, domain.OrgID, error) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return tenancy.Scope{}, domain.OrgID{}, err
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	return scope, orgID, err
}

type submitRequest struct {
	PatientFirstName  string `json:"patient_first_name"`
	PatientSurname    string `json:"patient_surname"`
	PatientReferralID string `json:"patient_referral_id"`
	InstitutionID     string `json:"institution_id"`
	StudyDescription  string `json:"study_description"`
	AdminNotes        string `json:"admin_notes"`
	UploadedFilename  string `json:"uploaded_filename"`
	StoredFilepath    string `json:"stored_filepath"`
}

type caseResponse struct {
	ID                string     `json:"id"`
	OrgID             string     `json:"org_id"`
	PatientFirstName  string     `json:"patient_first_name"`
	PatientSurname    string     `json:"patient_surname"`
	PatientReferralID string     `json:"patient_referral_id"`
	InstitutionID     string     `json:"institution_id"`
	StudyDescription  string     `json:"study_description"`
	AdminNotes        string     `json:"admin_notes,omitempty"`
	ReopenReason      string     `json:"reopen_reason,omitempty"`
	UploadedFilename  string     `json:"uploaded_filename,omitempty"`
	ReviewerID        string     `json:"reviewer_id,omitempty"`
	Status            string     `json:"status"`
	Decision          string     `json:"decision,omitempty"`
	DecisionComment   string     `json:"decision_comment,omitempty"`
	Protocol          string     `json:"protocol,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	VettedAt          *time.Time `json:"vetted_at,omitempty"`

	SLAHours          int    `json:"sla_hours,omitempty"`
	TurnaroundSeconds int64  `json:"turnaround_seconds,omitempty"`
	Turnaround        string `json:"turnaround,omitempty"`
	SLABreached       bool   `json:"sla_breached,omitempty"`
}

func toCaseResponse(c *caseflow.Case) caseResponse {
	resp := caseResponse{
		ID:                string(c.ID),
		OrgID:             c.OrgID.String(),
		PatientFirstName:  c.Patient.FirstName,
		PatientSurname:    c.Patient.Surname,
		PatientReferralID: c.Patient.ReferralID,
		InstitutionID:     c.InstitutionID.String(),
		StudyDescription:  c.StudyDescription,
		AdminNotes:        c.AdminNotes,
		ReopenReason:      c.ReopenReason,
		UploadedFilename:  c.Attachment.UploadedFilename,
		Status:            string(c.Status),
		Decision:          string(c.Decision),
		DecisionComment:   c.DecisionComment,
		Protocol:          c.Protocol,
		CreatedAt:         c.CreatedAt,
		VettedAt:          c.VettedAt,
	}
	if c.ReviewerID != nil {
		resp.ReviewerID = c.ReviewerID.String()
	}
	return resp
}

func toViewResponse(v *service.View) caseResponse {
	resp := toCaseResponse(v.Case)
	resp.SLAHours = v.SLAHours
	resp.TurnaroundSeconds = v.TurnaroundSeconds
	resp.Turnaround = v.Turnaround
	resp.SLABreached = v.Breached
	return resp
}

func (h *CaseHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[submitRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	instID, err := domain.ParseInstitutionID(req.InstitutionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cases.Submit(r.Context(), scope, orgID, caseflow.Submission{
		Patient: caseflow.Patient{
			FirstName:  req.PatientFirstName,
			Surname:    req.PatientSurname,
			ReferralID: req.PatientReferralID,
		},
		InstitutionID:    instID,
		StudyDescription: req.StudyDescription,
		AdminNotes:       req.AdminNotes,
		Attachment: caseflow.Attachment{
			UploadedFilename: req.UploadedFilename,
			StoredFilepath:   req.StoredFilepath,
		},
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "case submitted",
		"request_id", requestcontext.RequestID(r.Context()), "case_id", string(c.ID))
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *CaseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views, err := h.cases.ListCases(r.Context(), scope, filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]caseResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toViewResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func parseListFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := caseflow.Status(raw)
		switch status {
		case caseflow.StatusPending, caseflow.StatusVetted, caseflow.StatusRejected, caseflow.StatusReopened:
			f.Status = &status
		default:
			return f, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw)
		}
	}
	if raw := q.Get("institution_id"); raw != "" {
		id, err := domain.ParseInstitutionID(raw)
		if err != nil {
			return f, err
		}
		f.InstitutionID = &id
	}
	if raw := q.Get("reviewer_id"); raw != "" {
		id, err := domain.ParseUserID(raw)
		if err != nil {
			return f, err
		}
		f.ReviewerID = &id
	}
	f.PatientQuery = q.Get("patient")
	return f, nil
}

func (h *CaseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := h.cases.GetCase(r.Context(), scope, caseID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toViewResponse(view))
}

type editRequest struct {
	PatientFirstName  *string `json:"patient_first_name"`
	PatientSurname    *string `json:"patient_surname"`
	PatientReferralID *string `json:"patient_referral_id"`
	StudyDescription  *string `json:"study_description"`
	AdminNotes        *string `json:"admin_notes"`
	InstitutionID     *string `json:"institution_id"`
}

func (h *CaseHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[editRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var amendment caseflow.Amendment
	if req.PatientFirstName != nil || req.PatientSurname != nil || req.PatientReferralID != nil {
		// Patient fields amend together; unset ones keep their current value,
		// which the service reads before applying.
		current, err := h.cases.GetCase(r.Context(), scope, caseID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		patient := current.Case.Patient
		if req.PatientFirstName != nil {
			patient.FirstName = *req.PatientFirstName
		}
		if req.PatientSurname != nil {
			patient.Surname = *req.PatientSurname
		}
		if req.PatientReferralID != nil {
			patient.ReferralID = *req.PatientReferralID
		}
		amendment.Patient = &patient
	}
	amendment.StudyDescription = req.StudyDescription
	amendment.AdminNotes = req.AdminNotes
	if req.InstitutionID != nil {
		instID, err := domain.ParseInstitutionID(*req.InstitutionID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		amendment.InstitutionID = &instID
	}

	c, err := h.cases.Edit(r.Context(), scope, caseID, amendment)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

type assignRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

func (h *CaseHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[assignRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	reviewerID, err := domain.ParseUserID(req.ReviewerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.cases.Assign(r.Context(), scope, caseID, reviewerID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type vetRequest struct {
	Decision string `json:"decision"`
	Protocol string `json:"protocol"`
	Comment  string `json:"comment"`
}

func (h *CaseHandler) HandleVet(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[vetRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cases.Vet(r.Context(), scope, caseID, caseflow.Verdict{
		Decision: caseflow.Decision(req.Decision),
		Protocol: req.Protocol,
		Comment:  req.Comment,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "case vetted",
		"request_id", requestcontext.RequestID(r.Context()),
		"case_id", string(caseID), "decision", string(c.Decision))
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

type reopenRequest struct {
	Reason string `json:"reason"`
}

func (h *CaseHandler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[reopenRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cases.Reopen(r.Context(), scope, caseID, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

type eventResponse struct {
	Seq         int       `json:"seq"`
	Type        string    `json:"type"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	CrossTenant bool      `json:"cross_tenant,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Decision    string    `json:"decision,omitempty"`
	Protocol    string    `json:"protocol,omitempty"`
	Comment     string    `json:"comment,omitempty"`
}

func (h *CaseHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	events, err := h.cases.Timeline(r.Context(), scope, caseID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			Seq:         e.Seq,
			Type:        string(e.Type),
			ActorID:     e.ActorID.String(),
			ActorRole:   string(e.ActorRole),
			CrossTenant: e.CrossTenant,
			OccurredAt:  e.OccurredAt,
			Decision:    e.Decision,
			Protocol:    e.Protocol,
			Comment:     e.Comment,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *CaseHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	dash, err := h.cases.Dashboard(r.Context(), scope)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"counts": map[string]int{
			"pending":  dash.Counts[caseflow.StatusPending],
			"vetted":   dash.Counts[caseflow.StatusVetted],
			"rejected": dash.Counts[caseflow.StatusRejected],
			"reopened": dash.Counts[caseflow.StatusReopened],
		},
		"breached_pending": dash.BreachedPending,
	})
}

// HandleAuditExport streams flat event rows as CSV for offline billing and
// compliance use.
func (h *CaseHandler) HandleAuditExport(w http.ResponseWriter, r *http.Request) {
	scope, _, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	events, err := h.cases.ExportAudit(r.Context(), scope, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"case_id", "org_id", "seq", "event_type", "occurred_at",
		"actor_id", "actor_role", "cross_tenant", "decision", "protocol", "comment"})
	for _, e := range events {
		_ = cw.Write([]string{
			string(e.CaseID), e.OrgID.String(), strconv.Itoa(e.Seq), string(e.Type),
			e.OccurredAt.UTC().Format(time.RFC3339), e.ActorID.String(),
			string(e.ActorRole), strconv.FormatBool(e.CrossTenant),
			e.Decision, e.Protocol, e.Comment,
		})
	}
	cw.Flush()
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from must be an RFC3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to must be an RFC3339 timestamp")
	}
	return from, to, nil
}
