package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

const maxRequestBody = 8 << 20

type ctxKey int

const ctxKeyRequestID ctxKey = iota

var errPathsNotAllowed = errors.New("local file paths are disabled on this server")

// server exposes the engine over JSON HTTP.
type server struct {
	engine     *fakecheck.Engine
	threshold  float64
	allowPaths bool
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/similarity", s.similarity)
		r.Post("/detect", s.detect)
		r.Post("/duplicates", s.duplicates)
	})
	return r
}

type similarityRequest struct {
	A       fakecheck.ImageSource `json:"a"`
	B       fakecheck.ImageSource `json:"b"`
	Weights *fakecheck.Weights    `json:"weights,omitempty"`
}

type detectRequest struct {
	Listings   []fakecheck.ListingCandidate `json:"listings"`
	References []fakecheck.ReferenceProduct `json:"references"`
}

type duplicatesRequest struct {
	Images    []fakecheck.ImageSource `json:"images"`
	Threshold *float64                `json:"threshold,omitempty"`
}

type apiError struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"methods": s.engine.Capabilities().Methods(),
		"weights": s.engine.Weights(),
	})
}

func (s *server) similarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.A.IsZero() || req.B.IsZero() {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "both a and b are required")
		return
	}
	if !s.checkSources(w, r, req.A, req.B) {
		return
	}

	var score fakecheck.SimilarityScore
	if req.Weights != nil {
		score = s.engine.CompareImagesWith(r.Context(), req.A, req.B, *req.Weights)
	} else {
		score = s.engine.CompareImages(r.Context(), req.A, req.B)
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *server) detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}
	var srcs []fakecheck.ImageSource
	for _, l := range req.Listings {
		srcs = append(srcs, l.Images...)
	}
	for _, ref := range req.References {
		srcs = append(srcs, ref.Images...)
	}
	if !s.checkSources(w, r, srcs...) {
		return
	}

	results := s.engine.DetectBatch(r.Context(), req.Listings, req.References)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *server) duplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkSources(w, r, req.Images...) {
		return
	}
	for i, src := range req.Images {
		if src.Kind == fakecheck.SourceBytes && strings.HasPrefix(src.ID, fakecheck.InlineIDPrefix) {
			req.Images[i].ID = fmt.Sprintf("images[%d]", i)
		}
	}
	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	groups := s.engine.FindDuplicates(r.Context(), req.Images, threshold)
	if groups == nil {
		groups = []fakecheck.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

// checkSources rejects local paths unless the server was started with them allowed.
func (s *server) checkSources(w http.ResponseWriter, r *http.Request, srcs ...fakecheck.ImageSource) bool {
	if s.allowPaths {
		return true
	}
	for _, src := range srcs {
		if src.Kind == fakecheck.SourcePath {
			writeError(w, r, http.StatusBadRequest, "PATH_NOT_ALLOWED",
				fmt.Sprintf("%v: %s", errPathsNotAllowed, src.Path))
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(r.Context(), "fakecheck: panic recovered",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		level := slog.LevelInfo
		if statusCode >= 500 {
			level = slog.LevelError
		} else if statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "fakecheck: http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}
