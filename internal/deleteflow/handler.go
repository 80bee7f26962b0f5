package deleteflow

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
)

type Handler struct {
	reg    *Registry
	logger *zap.SugaredLogger
}

func NewHandler(reg *Registry, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{reg: reg, logger: logger}
}

type beginResponse struct {
	Token  string `json:"token"`
	Target Target `json:"target"`
	State  State  `json:"state"`
}

type confirmResponse struct {
	Notice Notice `json:"notice"`
}

// Begin handles POST /{kind}/{id}/deletion.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	token, t, err := h.reg.Begin(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		var extra map[string]any
		if msg := failureMessage(err); msg == NotFoundMessage {
			extra = map[string]any{"notice": Notice{Level: NoticeError, Message: msg}}
		}
		httpx.Error(w, h.logger, err, extra)
		return
	}
	httpx.JSON(w, http.StatusCreated, beginResponse{Token: token, Target: t, State: Confirming})
}

// Confirm handles POST /deletions/{token}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	n, err := h.reg.Confirm(r.Context(), r.PathValue("token"), guardFor(r))
	if errors.Is(err, ErrNothingPending) {
		httpx.JSONError(w, http.StatusNotFound, ErrNothingPending.Error(), nil)
		return
	}
	if err != nil {
		httpx.Error(w, h.logger, err, map[string]any{"notice": n})
		return
	}
	httpx.JSON(w, http.StatusOK, confirmResponse{Notice: n})
}

// guardFor keeps pending user deletions to admin sessions.
func guardFor(r *http.Request) Guard {
	return func(t Target) error {
		if t.Kind != entity.KindUser {
			return nil
		}
		if c, ok := session.FromContext(r.Context()); !ok || !c.IsAdmin() {
			return apperr.ErrForbidden
		}
		return nil
	}
}

// Cancel handles DELETE /deletions/{token}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.reg.Cancel(r.PathValue("token"), guardFor(r))
	if errors.Is(err, ErrNothingPending) {
		httpx.JSONError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		httpx.Error(w, h.logger, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
