package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

// httpError carries an explicit status and user-facing detail.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string { return e.detail }

func badRequest(detail string) error { return &httpError{status: http.StatusBadRequest, detail: detail} }

func notFound(detail string) error { return &httpError{status: http.StatusNotFound, detail: detail} }

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap converts handler errors into JSON {"detail": ...} responses.
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var he *httpError
		var ve *model.ValidationError
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &he):
			writeDetail(w, he.status, he.detail)
		case errors.As(err, &ve):
			writeDetail(w, http.StatusBadRequest, ve.Error())
		case errors.As(err, &mbe):
			writeDetail(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size")
		case errors.Is(err, store.ErrNotFound):
			writeDetail(w, http.StatusNotFound, "Result not found")
		default:
			zap.L().Error("server: request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
