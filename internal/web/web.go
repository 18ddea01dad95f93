// Package web serves the server-rendered browser UI. Each browser holds a
// session cookie that maps to a session.Controller.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/report"
	"github.com/hl-compare/hl-compare/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// CookieName is the session cookie set on every UI response.
const CookieName = "hlcompare_session"

// Option configures a Handler.
type Option func(*Handler)

// WithBasePath sets the path prefix the UI is mounted under.
func WithBasePath(p string) Option {
	return func(h *Handler) {
		h.base = strings.TrimRight(p, "/")
	}
}

// WithProber probes evidence previews before the panel is shown.
func WithProber(p evidence.Prober) Option {
	return func(h *Handler) {
		h.prober = p
	}
}

// WithMaxUpload caps the size of a submitted form in megabytes.
func WithMaxUpload(mb int) Option {
	return func(h *Handler) {
		h.maxUpload = int64(mb) << 20
	}
}

// Handler renders the comparison UI.
type Handler struct {
	registry  *session.Registry
	prober    evidence.Prober
	base      string
	maxUpload int64
	policy    *bluemonday.Policy
	tmpl      *template.Template
	router    chi.Router
	now       func() time.Time
}

// New creates the UI handler over reg.
func New(reg *session.Registry, opts ...Option) (*Handler, error) {
	h := &Handler{
		registry:  reg,
		base:      "/ui",
		maxUpload: 50 << 20,
		policy:    bluemonday.UGCPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}

	tmpl, err := template.New("ui").Funcs(template.FuncMap{
		"inc":  func(i int) int { return i + 1 },
		"join": strings.Join,
		"evidenceURL": func(c model.Category, entity, metric string) string {
			q := url.Values{"category": {string(c)}, "entity": {entity}, "metric": {metric}}
			return h.base + "/evidence?" + q.Encode()
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, eris.Wrap(err, "web: parse templates")
	}
	h.tmpl = tmpl

	r := chi.NewRouter()
	r.Get("/", h.handleIndex)
	r.Post("/form", h.handleForm)
	r.Post("/submit", h.handleSubmit)
	r.Get("/select", h.handleSelect)
	r.Post("/toggle", h.handleToggle)
	r.Get("/evidence", h.handleEvidence)
	r.Post("/evidence/close", h.handleCloseEvidence)
	r.Get("/export", h.handleExport)
	h.router = r
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// PruneSessions drops idle sessions every interval until ctx is done.
func (h *Handler) PruneSessions(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.registry.Prune(maxIdle); n > 0 {
				zap.L().Debug("web: pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}

// controller resolves the browser's session and refreshes its cookie.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *session.Controller {
	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}
	id, ctrl := h.registry.Get(id)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     h.base + "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return ctrl
}

func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request, query string) {
	target := h.base + "/"
	if query != "" {
		target += "?" + query
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	data := h.pageData(ctrl, r.URL.Query().Get("busy") != "")

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "index", data); err != nil {
		zap.L().Error("web: render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes()) //nolint:errcheck
}

// handleForm edits the entity fields without submitting.
func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if err := h.parse(w, r); err != nil {
		h.redirectHome(w, r, "")
		return
	}
	form := formFromRequest(ctrl.State().Form, r)
	switch r.URL.Query().Get("action") {
	case "add":
		form = form.AddEntity()
	case "remove":
		if i, err := strconv.Atoi(r.URL.Query().Get("index")); err == nil {
			form = form.RemoveEntity(i)
		}
	}
	form.Files = nil
	ctrl.UpdateForm(form)
	h.redirectHome(w, r, "")
}

// handleSubmit runs the comparison synchronously and redirects to the page.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if err := h.parse(w, r); err != nil {
		zap.L().Warn("web: parse submission", zap.Error(err))
		h.redirectHome(w, r, "")
		return
	}
	form := formFromRequest(ctrl.State().Form, r)
	form.Files = uploads(r.MultipartForm)

	err := ctrl.Submit(r.Context(), form)
	if errors.Is(err, session.ErrInFlight) {
		h.redirectHome(w, r, "busy=1")
		return
	}

	// Uploaded parts are removed with the request, so they are not kept.
	form.Files = nil
	ctrl.UpdateForm(form)
	h.redirectHome(w, r, "")
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	ctrl.Select(model.Category(r.URL.Query().Get("category")))
	h.redirectHome(w, r, "")
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	ctrl.Toggle(model.Category(r.URL.Query().Get("category")))
	h.redirectHome(w, r, "")
}

func (h *Handler) handleEvidence(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	q := r.URL.Query()
	ref := evidence.Ref{
		Category: model.Category(q.Get("category")),
		Entity:   q.Get("entity"),
		Metric:   q.Get("metric"),
	}
	ctrl.OpenEvidence(r.Context(), ref, h.prober)
	h.redirectHome(w, r, "")
}

func (h *Handler) handleCloseEvidence(w http.ResponseWriter, r *http.Request) {
	h.controller(w, r).CloseEvidence()
	h.redirectHome(w, r, "")
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	st := ctrl.State()
	if st.Result == nil {
		h.redirectHome(w, r, "")
		return
	}
	ex, err := report.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc := report.Build(st.Result, h.now())
	data, err := ex.Export(r.Context(), doc)
	if err != nil {
		zap.L().Error("web: export failed", zap.String("format", ex.Format()), zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ex.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(doc, ex.Extension())))
	w.Write(data) //nolint:errcheck
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) error {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(32 << 20)
	}
	return r.ParseForm()
}

// formFromRequest overlays the submitted fields on the stored form.
func formFromRequest(prev session.Form, r *http.Request) session.Form {
	form := session.NewForm()
	form.Entities = prev.Entities
	form.Query = prev.Query
	if vals, ok := r.Form["entities"]; ok {
		form.Entities = append([]string(nil), vals...)
	}
	if _, ok := r.Form["query"]; ok {
		form.Query = r.Form.Get("query")
	}
	for len(form.Entities) < model.MinEntities {
		form.Entities = append(form.Entities, "")
	}
	return form
}

func uploads(form *multipart.Form) []model.Upload {
	if form == nil {
		return nil
	}
	var out []model.Upload
	for _, fh := range form.File["files"] {
		if fh.Filename == "" {
			continue
		}
		out = append(out, model.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return out
}
