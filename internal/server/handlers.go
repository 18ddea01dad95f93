package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/compare"
	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/report"
	"github.com/hl-compare/hl-compare/internal/store"
	"github.com/hl-compare/hl-compare/internal/view"
)

// multipartMemory is the part of a form kept in memory; the rest spills to
// temp files.
const multipartMemory = 32 << 20

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "HL Compare API is running",
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "HL Compare API is operational",
	})
}

// POST /compare/
// Form: files (repeated), entities (comma list or repeated), entityA/entityB
// (legacy), query (optional).
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) error {
	form, err := parseForm(r)
	if err != nil {
		return err
	}
	defer form.RemoveAll() //nolint:errcheck

	resp, err := s.svc.Compare(r.Context(), compare.Request{
		Entities: formEntities(form),
		Files:    formUploads(form),
		Query:    first(form.Value["query"]),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// POST /documents/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) error {
	form, err := parseForm(r)
	if err != nil {
		return err
	}
	defer form.RemoveAll() //nolint:errcheck

	out, err := s.svc.Summarize(r.Context(), formUploads(form))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// GET /results?limit=20
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) error {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.svc.List(r.Context(), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []store.ComparisonSummary{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /results/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) error {
	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// GET /results/{id}/table/{category}
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) error {
	c, err := categoryParam(r)
	if err != nil {
		return err
	}
	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view.BuildTable(resp, c))
	return nil
}

// GET /results/{id}/accordion?open=valuation_metrics,risk_factors
func (s *Server) handleAccordion(w http.ResponseWriter, r *http.Request) error {
	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	open := view.ParseOpenSet(r.URL.Query()["open"]...)
	writeJSON(w, http.StatusOK, view.BuildAccordion(resp, open))
	return nil
}

// GET /results/{id}/evidence/{category}/{entity}/{metric}
func (s *Server) handleEvidence(w http.ResponseWriter, r *http.Request) error {
	c, err := categoryParam(r)
	if err != nil {
		return err
	}
	entity := pathParam(r, "entity")
	metric := pathParam(r, "metric")

	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	var panel evidence.Panel
	if !panel.OpenMetric(metric, evidence.Lookup(resp, c, entity, metric)) {
		return notFound("Evidence not found")
	}
	v, _ := panel.View()
	writeJSON(w, http.StatusOK, v)
	return nil
}

// GET /results/{id}/export?format=pdf|md|xlsx
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) error {
	ex, err := report.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		return badRequest(fmt.Sprintf("Unsupported export format: %s", r.URL.Query().Get("format")))
	}
	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	doc := report.Build(resp, s.now())
	data, err := ex.Export(r.Context(), doc)
	if err != nil {
		return eris.Wrap(err, "server: export")
	}
	w.Header().Set("Content-Type", ex.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(doc, ex.Extension())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
	return nil
}

// GET /results/{id}/memo
func (s *Server) handleMemo(w http.ResponseWriter, r *http.Request) error {
	resp, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.Memo(report.Build(resp, s.now())))) //nolint:errcheck
	return nil
}

func parseForm(r *http.Request) (*multipart.Form, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, mbe
		}
		return nil, badRequest("Expected a multipart form upload")
	}
	return r.MultipartForm, nil
}

// formEntities reads the entity list. A single "entities" value is split on
// commas; repeated values are taken as given so blank names still fail
// validation. entityA/entityB are accepted when "entities" is absent.
func formEntities(form *multipart.Form) []string {
	vals := form.Value["entities"]
	switch {
	case len(vals) == 1:
		var out []string
		for _, e := range strings.Split(vals[0], ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
		return out
	case len(vals) > 1:
		return vals
	}
	a, b := first(form.Value["entityA"]), first(form.Value["entityB"])
	if strings.TrimSpace(a) != "" && strings.TrimSpace(b) != "" {
		return []string{a, b}
	}
	return nil
}

func formUploads(form *multipart.Form) []model.Upload {
	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)

	out := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		out = append(out, model.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return out
}

func categoryParam(r *http.Request) (model.Category, error) {
	raw := pathParam(r, "category")
	c, ok := model.ParseCategory(raw)
	if !ok {
		return "", notFound(fmt.Sprintf("Unknown category: %s", raw))
	}
	return c, nil
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
