package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/submit"
	"github.com/muurk/formrelay/internal/version"
)

// maxFormBytes caps the size of a browser form post
const maxFormBytes = 10 << 20

// formView is one entry of GET /forms
type formView struct {
	ID       string          `json:"id"`
	Action   string          `json:"action"`
	Fields   []string        `json:"fields"`
	Snapshot submit.Snapshot `json:"snapshot"`
}

// submitResponse answers POST /forms/{id} for JSON clients
type submitResponse struct {
	submit.Snapshot
	OK        bool   `json:"ok"`
	Stale     bool   `json:"stale,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", s.handlePage)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/forms", func(fr chi.Router) {
		fr.Get("/", s.handleListForms)
		fr.Post("/{id}", s.handleSubmit)
		fr.Get("/{id}/events", s.handleEvents)
	})

	return r
}

// requestLogger logs every request through the zap wrapper
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.doc.Render(w); err != nil {
		logging.Error("Failed to render page", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"forms":   len(s.ctrl.Registrations()),
	})
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	regs := s.ctrl.Registrations()
	views := make([]formView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, formView{
			ID:       reg.ID(),
			Action:   reg.Form().Action(),
			Fields:   reg.Form().Fields(),
			Snapshot: reg.Snapshot(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reg, ok := s.ctrl.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown form " + id})
		return
	}

	values, err := readFormValues(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	out, err := reg.SubmitValues(r.Context(), completeValues(reg.Form().Fields(), values))

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	resp := submitResponse{
		Snapshot: reg.Snapshot(),
		OK:       err == nil,
		Stale:    out.Stale,
	}
	status := http.StatusOK
	if err != nil {
		var subErr *submit.SubmissionError
		if errors.As(err, &subErr) {
			resp.ErrorType = subErr.Type.Label()
		}
		status = http.StatusBadGateway
		if submit.IsConfigurationError(err) {
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reg, ok := s.ctrl.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.hub.Serve(w, r, id, reg.Snapshot())
}

// readFormValues parses a urlencoded or multipart body
func readFormValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

// completeValues mirrors a browser post: a field missing from the body is
// an unchecked box or an empty control, not "unchanged".
func completeValues(fields []string, posted url.Values) url.Values {
	out := make(url.Values, len(fields))
	for _, name := range fields {
		out[name] = posted[name]
		if out[name] == nil {
			out[name] = []string{}
		}
	}
	return out
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write JSON response", zap.Error(err))
	}
}
