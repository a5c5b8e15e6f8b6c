package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vettinghub/pkg/platform/httputil"
)

// Deps collects everything the router mounts.
type Deps struct {
	Auth         *AuthHandler
	Orgs         *OrgHandler
	Institutions *InstitutionHandler
	Protocols    *ProtocolHandler
	Cases        *CaseHandler

	Authenticator Authenticator
	Logger        *slog.Logger
}

// NewRouter wires the public surface. Everything except login, health, and
// metrics sits behind bearer authentication.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	d.Auth.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(d.Authenticator, d.Logger))
		d.Auth.Register(r)
		d.Orgs.Register(r)
		d.Institutions.Register(r)
		d.Protocols.Register(r)
		d.Cases.Register(r)
	})

	return r
}
