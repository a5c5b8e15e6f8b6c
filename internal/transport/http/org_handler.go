package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/httputil"
	"vettinghub/pkg/requestcontext"
)

// OrgHandler wires organisation and membership management.
type OrgHandler struct {
	tenants *tenancy.Service
	guard   *tenancy.Guard
	logger  *slog.Logger
}

// NewOrgHandler constructs the handler.
func NewOrgHandler(tenants *tenancy.Service, guard *tenancy.Guard, logger *slog.Logger) *OrgHandler {
	return &OrgHandler{tenants: tenants, guard: guard, logger: logger}
}

// Register mounts the organisation endpoints.
func (h *OrgHandler) Register(r chi.Router) {
	r.Post("/orgs", h.HandleCreate)
	r.Get("/orgs", h.HandleList)
	r.Post("/orgs/{orgID}/disable", h.HandleDisable)
	r.Post("/orgs/{orgID}/members", h.HandleAddMember)
	r.Get("/orgs/{orgID}/members", h.HandleListMembers)
	r.Delete("/orgs/{orgID}/members/{userID}", h.HandleRemoveMember)
}

type orgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type orgResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toOrgResponse(org *tenancy.Organisation) orgResponse {
	return orgResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		Active:    org.Active,
		CreatedAt: org.CreatedAt,
		UpdatedAt: org.ModifiedAt,
	}
}

func (h *OrgHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[orgRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	org, err := h.tenants.CreateOrganisation(r.Context(), principalFrom(r.Context()), req.Name, req.Slug)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "organisation created",
		"request_id", requestcontext.RequestID(r.Context()), "org_id", org.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, toOrgResponse(org))
}

func (h *OrgHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.tenants.ListOrganisations(r.Context(), principalFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]orgResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, toOrgResponse(org))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *OrgHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	org, err := h.tenants.DisableOrganisation(r.Context(), principalFrom(r.Context()), orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrgResponse(org))
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type memberResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *OrgHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[addMemberRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	m, err := h.tenants.AddMember(r.Context(), scope, orgID, userID, tenancy.OrgRole(req.Role))
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, memberResponse{
		UserID:    m.UserID.String(),
		Role:      string(m.Role),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	})
}

func (h *OrgHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	members, err := h.tenants.ListMembers(r.Context(), scope, orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:    m.UserID.String(),
			Role:      string(m.Role),
			Active:    m.Active,
			CreatedAt: m.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *OrgHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.tenants.RemoveMember(r.Context(), scope, orgID, userID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
