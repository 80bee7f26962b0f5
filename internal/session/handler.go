package session

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
)

// Handler exposes login, the current session and logout.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type meResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	s, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "username", req.Username, "err", err)
		httpx.JSONError(w, http.StatusUnauthorized, "invalid username or password", nil)
		return
	}
	h.logger.Infow("login", "username", s.User.Username, "role", s.User.Role)
	httpx.JSON(w, http.StatusOK, s)
}

// Me returns the authenticated operator.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := FromContext(r.Context())
	if !ok {
		httpx.Error(w, h.logger, apperr.ErrUnauthorized, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{ID: c.Subject, Username: c.Username, Role: string(c.Role)})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := FromContext(r.Context())
	if !ok {
		httpx.Error(w, h.logger, apperr.ErrUnauthorized, nil)
		return
	}
	if err := h.svc.Logout(r.Context(), c); err != nil {
		httpx.Error(w, h.logger, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
