package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/domain/request"
	"github.com/cafeteria-hr/service_layer/internal/services/requests"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

func (h *handler) requests(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			BenefitID string `json:"benefit_id"`
			Content   string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Requests.Create(r.Context(), u, payload.BenefitID, payload.Content)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, requestView(created))

	case http.MethodGet:
		list, err := h.app.Requests.List(r.Context(), u, requestFilter(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, requestViews(list))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func requestFilter(r *http.Request) storage.RequestFilter {
	q := r.URL.Query()
	filter := storage.RequestFilter{
		Status:      request.Status(q.Get("status")),
		UserID:      q.Get("user_id"),
		PerformerID: q.Get("performer_id"),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
		Limit:       queryInt(r, "limit"),
		Offset:      queryInt(r, "offset"),
	}
	// Accepts both repeated parameters and comma-separated lists.
	for _, raw := range q["legal_entity_ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.LegalEntityIDs = append(filter.LegalEntityIDs, id)
			}
		}
	}
	return filter
}

func (h *handler) requestResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/requests"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if parts[0] == "export" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		filter := requestFilter(r)
		writeWorkbook(w, r, "requests.xlsx", func(dst io.Writer) error {
			return h.app.Requests.Export(r.Context(), u, filter, dst)
		})
		return
	}

	requestID := parts[0]
	switch r.Method {
	case http.MethodGet:
		req, err := h.app.Requests.Get(r.Context(), u, requestID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, requestView(req))

	case http.MethodPatch:
		var payload struct {
			Status  *string `json:"status"`
			Comment *string `json:"comment"`
			Content *string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Requests.Update(r.Context(), u, requestID, requests.UpdateInput{
			Status:  payload.Status,
			Comment: payload.Comment,
			Content: payload.Content,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, requestView(updated))

	case http.MethodDelete:
		if err := h.app.Requests.Delete(r.Context(), u, requestID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
