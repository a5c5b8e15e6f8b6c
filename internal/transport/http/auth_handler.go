package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vettinghub/internal/identity"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/httputil"
	"vettinghub/pkg/requestcontext"
)

// AuthHandler wires login and account management to the identity service.
type AuthHandler struct {
	identity *identity.Service
	logger   *slog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *identity.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated endpoints.
func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the operator-only account endpoints.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/users", h.HandleRegister)
	r.Post("/users/{userID}/deactivate", h.HandleDeactivate)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Superuser bool   `json:"superuser"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[loginRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user, token, err := h.identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		// Login failures keep their 401, there is no record to hide.
		if dErrors.HasCode(err, dErrors.CodeAccessDenied) {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorBody{
				Error: string(dErrors.CodeAccessDenied), Message: "invalid credentials",
			})
			return
		}
		respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		UserID:    user.ID.String(),
		Superuser: user.Superuser,
	})
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Superuser bool   `json:"superuser"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Superuser bool   `json:"superuser"`
	Active    bool   `json:"active"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[registerRequest](r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	user, err := h.identity.Register(r.Context(), principalFrom(r.Context()),
		req.Username, req.Email, req.Password, req.Superuser)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user registered",
		"request_id", requestcontext.RequestID(r.Context()), "user_id", user.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Superuser: user.Superuser,
		Active:    user.Active,
	})
}

func (h *AuthHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.identity.Deactivate(r.Context(), principalFrom(r.Context()), userID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
