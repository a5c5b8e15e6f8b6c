package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vettinghub/internal/protocol"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/httputil"
)

// ProtocolHandler wires catalogue management. Names travel in request bodies
// rather than the path because they contain spaces and slashes.
type ProtocolHandler struct {
	protocols *protocol.Service
	guard     *tenancy.Guard
	logger    *slog.Logger
}

// NewProtocolHandler constructs the handler.
func NewProtocolHandler(svc *protocol.Service, guard *tenancy.Guard, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocols: svc, guard: guard, logger: logger}
}

// Register mounts the catalogue endpoints.
func (h *ProtocolHandler) Register(r chi.Router) {
	r.Get("/orgs/{orgID}/protocols", h.HandleList)
	r.Post("/orgs/{orgID}/protocols", h.HandleUpsert)
	r.Post("/orgs/{orgID}/protocols/deactivate", h.HandleDeactivate)
}

type protocolRequest struct {
	Name string `json:"name"`
}

type protocolResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toProtocolResponse(p *protocol.Protocol) protocolResponse {
	return protocolResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

func (h *ProtocolHandler) resolve(r *http.Request) (tenancy.Scope, domain.OrgID, error) {
	orgID, err := domain.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return tenancy.Scope{}, domain.OrgID{}, err
	}
	scope, err := h.guard.Resolve(r.Context(), principalFrom(r.Context()), orgID)
	return scope, orgID, err
}

// HandleList returns the active catalogue; ?all=true includes deactivated
// entries for admin views.
func (h *ProtocolHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	activeOnly := r.URL.Query().Get("all") != "true"
	protocols, err := h.protocols.List(r.Context(), scope, orgID, activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]protocolResponse, 0, len(protocols))
	for _, p := range protocols {
		out = append(out, toProtocolResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *ProtocolHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[protocolRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.protocols.Upsert(r.Context(), scope, orgID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProtocolResponse(p))
}

func (h *ProtocolHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	scope, orgID, err := h.resolve(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := httputil.Decode[protocolRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.protocols.Deactivate(r.Context(), scope, orgID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProtocolResponse(p))
}
