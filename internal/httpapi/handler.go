// Package httpapi exposes the REST API for the benefits cafeteria.
package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/app"
	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/httputil"
	"github.com/cafeteria-hr/service_layer/internal/metrics"
	"github.com/cafeteria-hr/service_layer/internal/middleware"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/", h.auth)
	mux.HandleFunc("/users", h.users)
	mux.HandleFunc("/users/", h.userResources)
	mux.HandleFunc("/benefits", h.benefits)
	mux.HandleFunc("/benefits/", h.benefitResources)
	mux.HandleFunc("/requests", h.requests)
	mux.HandleFunc("/requests/", h.requestResources)
	mux.HandleFunc("/categories", h.categories)
	mux.HandleFunc("/categories/", h.categoryResources)
	mux.HandleFunc("/legal-entities", h.legalEntities)
	mux.HandleFunc("/legal-entities/", h.legalEntityResources)
	mux.HandleFunc("/positions", h.positions)
	mux.HandleFunc("/positions/", h.positionResources)
	mux.HandleFunc("/healthz", h.healthz)
	mux.HandleFunc("/readyz", h.readyz)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// actor returns the authenticated user placed in the context by the auth
// middleware.
func actor(r *http.Request) (user.User, bool) {
	return middleware.UserFromContext(r.Context())
}

func mustActor(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	u, ok := actor(r)
	if !ok {
		httputil.Unauthorized(w, "")
	}
	return u, ok
}

// --- auth -------------------------------------------------------------------

func (h *handler) auth(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/auth"), "/")

	if action == "me" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		u, ok := actor(r)
		if !ok {
			token := middleware.TokenFromRequest(r)
			resolved, err := h.app.Auth.Authenticate(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			u = resolved
		}
		writeJSON(w, http.StatusOK, userView(u))
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "verify":
		var payload struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		exists, needsSignup, err := h.app.Auth.VerifyEmail(r.Context(), payload.Email)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists, "needs_signup": needsSignup})

	case "signup":
		var payload struct {
			Email        string `json:"email"`
			Password     string `json:"password"`
			Confirmation string `json:"confirmation"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		u, err := h.app.Auth.Signup(r.Context(), payload.Email, payload.Password, payload.Confirmation)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, userView(u))

	case "login":
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sess, u, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":      sess.Token,
			"expires_at": sess.ExpiresAt.Format(time.RFC3339),
			"user":       userView(u),
		})

	case "logout":
		if err := h.app.Auth.Logout(r.Context(), middleware.TokenFromRequest(r)); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "forgot-password":
		var payload struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Auth.ForgotPassword(r.Context(), payload.Email); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})

	case "reset-password":
		var payload struct {
			Token        string `json:"token"`
			Password     string `json:"password"`
			Confirmation string `json:"confirmation"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.app.Auth.ResetPassword(r.Context(), payload.Token, payload.Password, payload.Confirmation); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// --- users ------------------------------------------------------------------

type userPayload struct {
	Email         string     `json:"email"`
	Firstname     string     `json:"firstname"`
	Lastname      string     `json:"lastname"`
	Middlename    string     `json:"middlename"`
	Role          string     `json:"role"`
	HiredAt       *time.Time `json:"hired_at"`
	IsAdapted     bool       `json:"is_adapted"`
	Coins         int        `json:"coins"`
	LegalEntityID string     `json:"legal_entity_id"`
	PositionID    string     `json:"position_id"`
}

func (h *handler) users(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload userPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Users.Create(r.Context(), u, payload.toInput())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, userView(created))

	case http.MethodGet:
		filter := storage.UserFilter{
			Role:          user.Role(r.URL.Query().Get("role")),
			LegalEntityID: r.URL.Query().Get("legal_entity_id"),
			Query:         r.URL.Query().Get("query"),
			SortBy:        r.URL.Query().Get("sort_by"),
			SortOrder:     r.URL.Query().Get("sort_order"),
			Limit:         queryInt(r, "limit"),
			Offset:        queryInt(r, "offset"),
		}
		if raw := r.URL.Query().Get("is_active"); raw != "" {
			active := raw == "true"
			filter.IsActive = &active
		}
		list, err := h.app.Users.List(r.Context(), u, filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userViews(list))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) userResources(w http.ResponseWriter, r *http.Request) {
	u, ok := mustActor(w, r)
	if !ok {
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users"), "/")
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
		list, err := h.app.Users.Search(r.Context(), u, r.URL.Query().Get("query"), queryInt(r, "limit"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userViews(list))
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
		result, err := h.app.Users.Import(r.Context(), u, file)
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
		writeWorkbook(w, r, "users.xlsx", func(dst io.Writer) error {
			return h.app.Users.Export(r.Context(), u, dst)
		})
		return
	}

	userID := parts[0]
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		target, err := h.app.Users.Get(r.Context(), u, userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userView(target))

	case http.MethodPatch:
		var payload userPatchPayload
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Users.Update(r.Context(), u, userID, payload.toInput())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userView(updated))

	case http.MethodDelete:
		if err := h.app.Users.Delete(r.Context(), u, userID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// --- helpers ----------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	httputil.WriteErrorResponse(w, nil, status, "BAD_REQUEST", err.Error(), nil)
}

// writeServiceError maps service errors to their HTTP status, defaulting to
// 500 for anything unclassified.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr := apperr.GetServiceError(err); svcErr != nil {
		httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
		return
	}
	httputil.WriteErrorResponse(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// uploadedFile extracts the "file" part of a multipart upload.
func uploadedFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, bool) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return file, true
}

// writeWorkbook buffers the generated workbook so permission and validation
// failures still come back as JSON errors, not a broken spreadsheet download.
func writeWorkbook(w http.ResponseWriter, r *http.Request, filename string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.app.DB != nil {
		if err := h.app.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
