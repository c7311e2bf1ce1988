package httpapi

import (
	"net/http"
	"strings"
)

type namedPayload struct {
	Name string `json:"name"`
}

func resourceID(r *http.Request, prefix string) (string, bool) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", false
	}
	return trimmed, true
}

func (h *handler) categories(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Catalog.ListCategories(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views := make([]NamedView, 0, len(list))
		for _, c := range list {
			views = append(views, categoryView(c))
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Catalog.CreateCategory(r.Context(), u, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, categoryView(created))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) categoryResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := resourceID(r, "/categories")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		c, err := h.app.Catalog.GetCategory(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, categoryView(c))

	case http.MethodPatch:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Catalog.UpdateCategory(r.Context(), u, id, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, categoryView(updated))

	case http.MethodDelete:
		if err := h.app.Catalog.DeleteCategory(r.Context(), u, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) legalEntities(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Catalog.ListLegalEntities(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views := make([]LegalEntityView, 0, len(list))
		for _, e := range list {
			views = append(views, legalEntityView(e))
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Catalog.CreateLegalEntity(r.Context(), u, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, plainEntityView(created))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) legalEntityResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := resourceID(r, "/legal-entities")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		e, err := h.app.Catalog.GetLegalEntity(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, legalEntityView(e))

	case http.MethodPatch:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Catalog.UpdateLegalEntity(r.Context(), u, id, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plainEntityView(updated))

	case http.MethodDelete:
		if err := h.app.Catalog.DeleteLegalEntity(r.Context(), u, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) positions(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Catalog.ListPositions(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views := make([]NamedView, 0, len(list))
		for _, p := range list {
			views = append(views, positionView(p))
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Catalog.CreatePosition(r.Context(), u, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, positionView(created))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) positionResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, ok := resourceID(r, "/positions")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := h.app.Catalog.GetPosition(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, positionView(p))

	case http.MethodPatch:
		var payload namedPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Catalog.UpdatePosition(r.Context(), u, id, payload.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, positionView(updated))

	case http.MethodDelete:
		if err := h.app.Catalog.DeletePosition(r.Context(), u, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
