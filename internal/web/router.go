package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/raine/survival-bro/internal/metrics"
	"github.com/raine/survival-bro/internal/scan"
	"github.com/rs/zerolog/log"
)

const maxUploadBytes = 64 << 20

var errNotFound = errors.New("not found")

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

type Router struct {
	intake *scan.Intake
	store  *scan.Store
}

// NewRouter builds the JSON API over the intake's store.
func NewRouter(intake *scan.Intake, m *metrics.Metrics, corsOrigins []string) http.Handler {
	r := &Router{intake: intake, store: intake.Store()}
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger)
	mux.Use(m.Middleware(routePattern))
	if len(corsOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/scans", r.wrap(r.handleUpload))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Delete("/scans/{id}", r.wrap(r.handleDelete))
		rt.Put("/selection", r.wrap(r.handleSelect))
		rt.Get("/selection", r.wrap(r.handleSelected))
		rt.Get("/notifications", r.wrap(r.handleNotifications))
		rt.Post("/notifications/{id}/open", r.wrap(r.handleOpenNotification))
		rt.Get("/stats", r.wrap(r.handleStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var badRequest *badRequestError
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, errNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.As(err, &badRequest):
				http.Error(w, badRequest.msg, http.StatusBadRequest)
			case errors.As(err, &tooLarge):
				http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			default:
				log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// itemView is the wire form of a scan.ScannedItem. ImageData is only filled
// for single-item responses.
type itemView struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"createdAt"`
	Status    scan.Status         `json:"status"`
	Result    *llm.AnalysisResult `json:"result,omitempty"`
	Failure   string              `json:"failure,omitempty"`
	ImageData string              `json:"imageData,omitempty"`
}

func newItemView(it scan.ScannedItem, withImage bool) itemView {
	v := itemView{
		ID:        it.ID,
		CreatedAt: it.CreatedAt,
		Status:    it.Status,
		Result:    it.Result,
		Failure:   it.Failure,
	}
	if withImage {
		v.ImageData = it.ImageData
	}
	return v
}

type notificationView struct {
	ID           string    `json:"id"`
	Message      string    `json:"message"`
	TargetItemID string    `json:"targetItemId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// POST /api/scans, multipart field "files"
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &badRequestError{msg: "expected multipart form with field \"files\""}
	}
	defer req.MultipartForm.RemoveAll()

	headers := req.MultipartForm.File["files"]
	if len(headers) == 0 {
		return &badRequestError{msg: "no files uploaded"}
	}

	ids := make([]string, 0, len(headers))
	for _, fh := range headers {
		id, err := r.ingestFile(fh)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	return writeJSON(w, http.StatusAccepted, map[string][]string{"ids": ids})
}

func (r *Router) ingestFile(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	return r.intake.Ingest(scan.Upload{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Reader:   f,
	})
}

// GET /api/scans
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	items := r.store.Items()
	views := make([]itemView, len(items))
	for i, it := range items {
		views[i] = newItemView(it, false)
	}
	return writeJSON(w, http.StatusOK, views)
}

// GET /api/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	it, ok := r.store.Item(chi.URLParam(req, "id"))
	if !ok {
		return errNotFound
	}
	return writeJSON(w, http.StatusOK, newItemView(it, true))
}

// DELETE /api/scans/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	r.store.Delete(chi.URLParam(req, "id"))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /api/selection
// Body: {"id": "<item id>"}
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &badRequestError{msg: "invalid JSON body"}
	}
	r.store.Select(body.ID)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /api/selection
func (r *Router) handleSelected(w http.ResponseWriter, req *http.Request) error {
	it, ok := r.store.Selected()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return writeJSON(w, http.StatusOK, newItemView(it, true))
}

// GET /api/notifications
func (r *Router) handleNotifications(w http.ResponseWriter, req *http.Request) error {
	notifications := r.store.Notifications()
	views := make([]notificationView, len(notifications))
	for i, n := range notifications {
		views[i] = notificationView{
			ID:           n.ID,
			Message:      n.Message,
			TargetItemID: n.TargetItemID,
			CreatedAt:    n.CreatedAt,
		}
	}
	return writeJSON(w, http.StatusOK, views)
}

// POST /api/notifications/{id}/open
func (r *Router) handleOpenNotification(w http.ResponseWriter, req *http.Request) error {
	if _, ok := r.store.OpenNotification(chi.URLParam(req, "id")); !ok {
		return errNotFound
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /api/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]int{
		"scanned": r.store.ScannedCount(),
		"threats": r.store.ThreatCount(),
	})
}
