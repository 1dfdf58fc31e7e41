package property

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"propflow/internal/common/api"
	"propflow/internal/common/database"
)

// Handler handles property HTTP requests
type Handler struct {
	store Store
}

// NewHandler creates a new property handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Routes returns the property routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// List handles GET /properties
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := api.GetPaginationParams(r, 20, 100)

	properties, total, err := h.store.List(r.Context(), r.URL.Query().Get("development_id"), page.Limit, page.Offset)
	if err != nil {
		api.InternalError(w, "failed to list properties")
		return
	}

	api.WritePaginated(w, properties, &api.Pagination{
		Limit:   page.Limit,
		Offset:  page.Offset,
		Total:   total,
		HasMore: int64(page.Offset+len(properties)) < total,
	})
}

// Get handles GET /properties/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "property not found")
			return
		}
		api.InternalError(w, "failed to get property")
		return
	}

	api.WriteData(w, http.StatusOK, p)
}
