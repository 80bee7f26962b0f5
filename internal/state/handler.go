package state

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
)

// Handler serves reads from the current snapshot and manual reloads.
type Handler struct {
	cache  *Cache
	logger *zap.SugaredLogger
}

func NewHandler(cache *Cache, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{cache: cache, logger: logger}
}

type dashboardResponse struct {
	Counts   Counts    `json:"counts"`
	LoadedAt time.Time `json:"loadedAt"`
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Snapshot()
	httpx.JSON(w, http.StatusOK, dashboardResponse{Counts: snap.Counts(), LoadedAt: snap.LoadedAt})
}

// Snapshot returns every collection; users are included only for admins.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Snapshot().Public()
	if !isAdmin(r) {
		snap.Users = nil
	}
	httpx.JSON(w, http.StatusOK, snap)
}

// Sync reloads every collection from the store.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Reload(r.Context()); err != nil {
		httpx.Error(w, h.logger, apperr.Sync("reload", err), nil)
		return
	}
	snap := h.cache.Snapshot()
	httpx.JSON(w, http.StatusOK, dashboardResponse{Counts: snap.Counts(), LoadedAt: snap.LoadedAt})
}

// List handles GET /{kind}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, publicItems(h.cache.Snapshot().Items(kind)))
}

// Get handles GET /{kind}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	it, ok := h.cache.Snapshot().Find(kind, r.PathValue("id"))
	if !ok {
		httpx.Error(w, h.logger, apperr.ErrNotFound, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, publicItem(it))
}

// ClassStudents handles GET /classes/{id}/students.
func (h *Handler) ClassStudents(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Snapshot()
	id := r.PathValue("id")
	if _, ok := snap.Class(id); !ok {
		httpx.Error(w, h.logger, apperr.ErrNotFound, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, snap.ClassStudents(id))
}

// AnalystPatients handles GET /psychoanalysts/{id}/patients.
func (h *Handler) AnalystPatients(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Snapshot()
	id := r.PathValue("id")
	if _, ok := snap.Find(entity.KindPsychoanalyst, id); !ok {
		httpx.Error(w, h.logger, apperr.ErrNotFound, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, snap.AnalystPatients(id))
}

// UnassignedPatients handles GET /patients/unassigned.
func (h *Handler) UnassignedPatients(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.cache.Snapshot().UnassignedPatients())
}

func publicItems(in []entity.Item) []entity.Item {
	out := make([]entity.Item, len(in))
	for i, it := range in {
		out[i] = publicItem(it)
	}
	return out
}

func publicItem(it entity.Item) entity.Item {
	if u, ok := it.(entity.User); ok {
		return u.Public()
	}
	return it
}

func isAdmin(r *http.Request) bool {
	c, ok := session.FromContext(r.Context())
	return ok && c.IsAdmin()
}
