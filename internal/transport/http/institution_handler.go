package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vettinghub/internal/institution"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/httputil"
)

// InstitutionHandler wires referring-site management.
type InstitutionHandler struct {
	institutions *institution.Service
	guard        *tenancy.Guard
	logger       *slog.Logger
}

// NewInstitutionHandler constructs the handler.
func NewInstitutionHandler(svc *institution.Service, guard *tenancy.Guard, logger *slog.Logger) *InstitutionHandler {
	return &InstitutionHandler{institutions: svc, guard: guard, logger: logger}
}

// Register mounts the institution endpoints.
func (h *InstitutionHandler) Register(r chi.Router) {
	r.Post("/orgs/{orgID}/institutions", h.HandleCreate)
	r.Get("/orgs/{orgID}/institutions", h.HandleList)
	r.Put("/orgs/{orgID}/institutions/{institutionID}/sla", h.HandleUpdateSLA)
}

type institutionRequest struct {
	Name     string `json:"name"`
	SLAHours int    `json:"sla_hours"`
}

type institutionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SLAHours  int       `json:"sla_hours"`
	CreatedAt time.Time `json:"created_at"`
}

func toInstitutionResponse(inst *institution.Institution) institutionResponse {
	return institutionResponse{
		ID:        inst.ID.String(),
		Name:      inst.Name,
		SLAHours:  inst.SLAHours,
		CreatedAt: inst.CreatedAt,
	}
}

func (h *InstitutionHandler) resolve(r *http.Request) (tenancy.Scope, domain.OrgID, error) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return tenancy.Scope{}, domain.OrgID{}, err
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	return scope, orgID, err
}

func (h *InstitutionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[institutionRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	inst, err := h.institutions.Create(r.Context(), scope, orgID, req.Name, req.SLAHours)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInstitutionResponse(inst))
}

func (h *InstitutionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	insts, err := h.institutions.List(r.Context(), scope, orgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]institutionResponse, 0, len(insts))
	for _, inst := range insts {
		out = append(out, toInstitutionResponse(inst))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type updateSLARequest struct {
	SLAHours int `json:"sla_hours"`
}

func (h *InstitutionHandler) HandleUpdateSLA(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	instID, err := domain.ParseInstitutionID(chi.URLParam(r, "institutionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[updateSLARequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	inst, err := h.institutions.UpdateSLA(r.Context(), scope, orgID, instID, req.SLAHours)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInstitutionResponse(inst))
}
