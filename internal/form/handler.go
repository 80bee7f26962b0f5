package form

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
)

// Handler exposes submissions over HTTP. Failed submissions echo the draft back.
type Handler struct {
	sub    *Submitter
	logger *zap.SugaredLogger
}

func NewHandler(sub *Submitter, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{sub: sub, logger: logger}
}

type rosterRequest struct {
	StudentIDs []entity.ID `json:"studentIds"`
}

type linkRequest struct {
	PatientID entity.ID `json:"patientId"`
}

// Create handles POST /{kind}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

// Update handles PUT /{kind}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, r.PathValue("id"))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id string) {
	kind, err := entity.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	var raw json.RawMessage
	if err := httpx.Decode(r, &raw); err != nil {
		h.logger.Debugw("invalid form payload", "kind", kind, "err", err)
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	fs, err := NewFieldSet(kind)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	if err := json.Unmarshal(raw, fs); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", map[string]any{"draft": draft(raw)})
		return
	}
	in := Save{ID: id, Fields: fs}
	out, err := h.sub.Submit(r.Context(), in)
	if err != nil {
		httpx.Error(w, h.logger, err, map[string]any{"draft": draft(raw)})
		return
	}
	status := http.StatusOK
	if in.Mode() == ModeCreate {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, out)
}

// ReplaceRoster handles PUT /classes/{id}/students.
func (h *Handler) ReplaceRoster(w http.ResponseWriter, r *http.Request) {
	var req rosterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	ids := make([]string, len(req.StudentIDs))
	for i, id := range req.StudentIDs {
		ids[i] = id.String()
	}
	out, err := h.sub.Submit(r.Context(), ManageRoster{ClassID: r.PathValue("id"), StudentIDs: ids})
	if err != nil {
		httpx.Error(w, h.logger, err, map[string]any{"draft": req})
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// LinkPatient handles POST /psychoanalysts/{id}/patients.
func (h *Handler) LinkPatient(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	out, err := h.sub.Submit(r.Context(), LinkPatient{AnalystID: r.PathValue("id"), PatientID: req.PatientID.String()})
	if err != nil {
		httpx.Error(w, h.logger, err, map[string]any{"draft": req})
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// GenerateDescription handles POST /courses/description.
func (h *Handler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req GenerateDescription
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	out, err := h.sub.Submit(r.Context(), req)
	if err != nil {
		httpx.Error(w, h.logger, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// SummarizeCase handles POST /patients/{id}/summary.
func (h *Handler) SummarizeCase(w http.ResponseWriter, r *http.Request) {
	out, err := h.sub.Submit(r.Context(), SummarizeCase{PatientID: r.PathValue("id")})
	if err != nil {
		httpx.Error(w, h.logger, err, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// draft returns the submitted body without any password.
func draft(raw json.RawMessage) map[string]any {
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m
	}
	delete(m, "password")
	return m
}
