package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cafeteria-hr/service_layer/internal/storage"
)

func (h *handler) benefits(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload benefitPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Benefits.Create(r.Context(), u, payload.toInput())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, benefitView(created))

	case http.MethodGet:
		filter := storage.BenefitFilter{
			CategoryID: r.URL.Query().Get("category_id"),
			SortBy:     r.URL.Query().Get("sort_by"),
			SortOrder:  r.URL.Query().Get("sort_order"),
			Limit:      queryInt(r, "limit"),
			Offset:     queryInt(r, "offset"),
		}
		if raw := r.URL.Query().Get("is_active"); raw != "" {
			active := raw == "true"
			filter.IsActive = &active
		}
		if raw := r.URL.Query().Get("adaptation_required"); raw != "" {
			required := raw == "true"
			filter.AdaptationRequired = &required
		}
		if n := queryInt(r, "min_coins_cost"); n > 0 {
			filter.MinCoinsCost = &n
		}
		if n := queryInt(r, "max_coins_cost"); n > 0 {
			filter.MaxCoinsCost = &n
		}
		list, err := h.app.Benefits.List(r.Context(), u, filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, benefitViews(list))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) benefitResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/benefits"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "search":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		list, err := h.app.Benefits.Search(r.Context(), u, r.URL.Query().Get("query"), queryInt(r, "limit"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, benefitViews(list))
		return

	case "import":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		file, ok := uploadedFile(w, r)
		if !ok {
			return
		}
		defer file.Close()
		result, err := h.app.Benefits.Import(r.Context(), u, file)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return

	case "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeWorkbook(w, r, "benefits.xlsx", func(dst io.Writer) error {
			return h.app.Benefits.Export(r.Context(), u, dst)
		})
		return
	}

	benefitID := parts[0]
	if len(parts) >= 2 {
		switch parts[1] {
		case "images":
			h.benefitImages(w, r, benefitID, parts[2:])
		case "reviews":
			h.benefitReviews(w, r, benefitID, parts[2:])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := h.app.Benefits.Get(r.Context(), u, benefitID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, benefitView(b))

	case http.MethodPatch:
		var payload benefitPatchPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		in, err := payload.toInput()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Benefits.Update(r.Context(), u, benefitID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, benefitView(updated))

	case http.MethodDelete:
		if err := h.app.Benefits.Delete(r.Context(), u, benefitID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// benefitImages handles the gallery under /benefits/{id}/images. Uploads
// accept either a multipart file or a JSON body carrying an external URL.
func (h *handler) benefitImages(w http.ResponseWriter, r *http.Request, benefitID string, rest []string) {
	u, _ := actor(r)
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		isPrimary := r.URL.Query().Get("is_primary") == "true"
		contentType := r.Header.Get("Content-Type")
		if strings.HasPrefix(contentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(16 << 20); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			defer file.Close()
			img, err := h.app.Benefits.AddImage(r.Context(), u, benefitID, header.Filename, header.Header.Get("Content-Type"), header.Size, file, isPrimary)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, img)
			return
		}
		var payload struct {
			URL       string `json:"url"`
			IsPrimary bool   `json:"is_primary"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		img, err := h.app.Benefits.AddImageURL(r.Context(), u, benefitID, payload.URL, payload.IsPrimary)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, img)

	case len(rest) == 1 && r.Method == http.MethodPatch:
		var payload struct {
			IsPrimary bool `json:"is_primary"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !payload.IsPrimary {
			writeError(w, http.StatusBadRequest, errIsPrimaryRequired)
			return
		}
		imgs, err := h.app.Benefits.SetPrimaryImage(r.Context(), u, benefitID, rest[0])
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, imageViews(imgs))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := h.app.Benefits.DeleteImage(r.Context(), u, benefitID, rest[0]); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var errIsPrimaryRequired = errors.New("is_primary must be true")

func (h *handler) benefitReviews(w http.ResponseWriter, r *http.Request, benefitID string, rest []string) {
	u, _ := actor(r)
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, err := h.app.Reviews.List(r.Context(), benefitID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewViews(list))

	case len(rest) == 0 && r.Method == http.MethodPost:
		var payload struct {
			Text   string `json:"text"`
			Rating int    `json:"rating"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rv, err := h.app.Reviews.Create(r.Context(), u, benefitID, payload.Text, payload.Rating)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, reviewView(rv))

	case len(rest) == 1 && r.Method == http.MethodPatch:
		var payload struct {
			Text   string `json:"text"`
			Rating int    `json:"rating"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rv, err := h.app.Reviews.Update(r.Context(), u, rest[0], payload.Text, payload.Rating)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewView(rv))

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := h.app.Reviews.Delete(r.Context(), u, rest[0]); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
