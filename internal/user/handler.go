package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
)

// maxBodyBytes matches the bound on the auth endpoints.
const maxBodyBytes = 1 << 16

// Handler exposes profile and account administration endpoints. Every route
// expects the auth gate to have run and the caller to be authenticated.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ProfileRequest is the body of PUT /users/{id}.
type ProfileRequest struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type statusRequest struct {
	Enabled *bool `json:"enabled"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.Current(r.Context())
	if u == nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	h.writeJSON(w, http.StatusOK, u.View())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), auth.Current(r.Context()), id)
	if err != nil {
		h.writeError(w, "get user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, u.View())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid profile payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), auth.Current(r.Context()), id, req.Firstname, req.Lastname)
	if err != nil {
		h.writeError(w, "update profile", err)
		return
	}
	h.writeJSON(w, http.StatusOK, u.View())
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	users, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "list users", err)
		return
	}
	out := make([]entity.PublicView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}
	u, err := h.svc.SetEnabled(r.Context(), id, *req.Enabled)
	if err != nil {
		h.writeError(w, "set status", err)
		return
	}
	h.logger.Infow("account status changed", "id", u.ID, "enabled", u.Enabled, "by", auth.Current(r.Context()).ID)
	h.writeJSON(w, http.StatusOK, u.View())
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.SetRole(r.Context(), id, req.Role)
	if err != nil {
		h.writeError(w, "set role", err)
		return
	}
	h.logger.Infow("account role changed", "id", u.ID, "role", u.Role, "by", auth.Current(r.Context()).ID)
	h.writeJSON(w, http.StatusOK, u.View())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, userrepo.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid input"})
	default:
		h.logger.Errorw(op+" failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
