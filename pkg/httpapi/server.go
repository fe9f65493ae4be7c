// Package httpapi exposes a Store over HTTP: POST / ingests a document and
// GET /{id} serves it back.
package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	msgNotFound        = "Not found"
	msgBodyTooLarge    = "Request body too large"
	msgMethod          = "Method not allowed"
	msgInternal        = "Internal server error"
	msgUnavailable     = "Service unavailable"
	contentTypeText    = "text/plain; charset=utf-8"
	headerAllowOrigin  = "Access-Control-Allow-Origin"
	headerAllowMethods = "Access-Control-Allow-Methods"
)

type ServerParams struct {
	Store  edgecas.Store
	Logger *zap.Logger
	// MaxRequestBytes caps the raw request body. Zero means no cap.
	MaxRequestBytes int64
}

type Server struct {
	params ServerParams
	logger *zap.Logger
}

func NewServer(params ServerParams) *Server {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{params: params, logger: logger}
}

/* handlers */

func (s *Server) HandleIngest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := r.Body
		if s.params.MaxRequestBytes > 0 {
			body = http.MaxBytesReader(w, r.Body, s.params.MaxRequestBytes)
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeText(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
				return
			}
			writeText(w, http.StatusBadRequest, edgecas.ReasonInvalidJSON)
			return
		}

		id, err := s.params.Store.Ingest(r.Context(), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeText(w, http.StatusOK, id.String())
	}
}

func (s *Server) HandleRetrieve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := s.params.Store.Retrieve(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h := w.Header()
		for k, v := range resp.Header {
			h[k] = append([]string(nil), v...)
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Allow", http.MethodPost)
	} else {
		w.Header().Set("Allow", http.MethodGet)
	}
	writeText(w, http.StatusMethodNotAllowed, msgMethod)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, msgNotFound)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *edgecas.RejectionError
	switch {
	case errors.As(err, &rej):
		status := http.StatusBadRequest
		if errors.Is(err, edgecas.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeText(w, status, strings.Join(rej.Reasons, "\n"))
	case errors.Is(err, edgecas.ErrNotFound):
		writeText(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, edgecas.ErrClosed):
		writeText(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeText(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

/* middleware */

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerAllowOrigin, "*")
		w.Header().Set(headerAllowMethods, "GET, POST")
		next.ServeHTTP(w, r)
	})
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(srv.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(srv.handleMethodNotAllowed)

	r.Post("/", srv.HandleIngest())
	r.Get("/{id}", srv.HandleRetrieve())

	return r
}
