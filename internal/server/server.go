package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	"github.com/astghikaramyan/resource-service/internal/database"
	"github.com/astghikaramyan/resource-service/internal/resource"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const idPath = "id"
const idQuery = "id"

const contentTypeHeader = "Content-Type"

const jsonContentType = "application/json"
const mpegContentType = "audio/mpeg"

const invalidFileFormatMessage = "Invalid file format: %s. Only MP3 files are allowed"

type Server struct {
	orchestrator *resource.Orchestrator
}

func SetupServer(orchestrator *resource.Orchestrator) http.Handler {
	server := &Server{
		orchestrator: orchestrator,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /resources", server.uploadResourceHandler)
	mux.HandleFunc("GET /resources/{id}", server.getResourceHandler)
	mux.HandleFunc("DELETE /resources", server.deleteResourcesHandler)
	var rootHandler http.Handler = mux
	rootHandler = makeTraceIdMiddleware(rootHandler)
	return rootHandler
}

// makeTraceIdMiddleware takes the trace id from the incoming request or
// mints a new one, stores it in the request context and echoes it back in
// the response so callers can correlate.
func makeTraceIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestTraceId := r.Header.Get(traceid.Header)
		ctx := r.Context()
		if requestTraceId == "" {
			requestTraceId = traceid.FromContextOrNew(ctx)
		}
		ctx = traceid.ContextWith(ctx, requestTraceId)
		w.Header().Set(traceid.Header, requestTraceId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) uploadResourceHandler(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get(contentTypeHeader)
	if contentType != mpegContentType {
		writeError(w, apperror.Newf(apperror.KindInvalidInput, invalidFileFormatMessage, contentType))
		return
	}
	fileBytes, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperror.Wrap(apperror.KindInvalidInput, "Failed to read request body", err))
		return
	}
	resourceEntity, err := s.orchestrator.Upload(r.Context(), fileBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, map[string]int64{"id": *resourceEntity.Id})
}

func (s *Server) getResourceHandler(w http.ResponseWriter, r *http.Request) {
	rawId := r.PathValue(idPath)
	id, err := strconv.ParseInt(rawId, 10, 64)
	if err != nil {
		writeError(w, apperror.Newf(apperror.KindInvalidInput, "Invalid ID format: '%s' for ID. Only positive integers are allowed", rawId))
		return
	}
	fileBytes, err := s.orchestrator.GetBytes(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(contentTypeHeader, mpegContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(fileBytes)
}

func (s *Server) deleteResourcesHandler(w http.ResponseWriter, r *http.Request) {
	idList := r.URL.Query().Get(idQuery)
	removedIds, err := s.orchestrator.DeleteByIds(r.Context(), idList)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, map[string][]int64{"ids": removedIds})
}

func writeJson(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set(contentTypeHeader, jsonContentType)
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error(fmt.Sprint("Error while encoding response body: ", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(apperror.KindUnknown, "Resource operation could not be completed", err)
	}
	statusCode, convErr := strconv.Atoi(appErr.Kind.Code())
	if convErr != nil {
		statusCode = http.StatusInternalServerError
	}
	writeJson(w, statusCode, appErr.Response())
}

func makeHealthCheckHandler(dbs []database.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for _, db := range dbs {
			err := db.PingContext(ctx)
			if err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Unhealthy"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	}
}

func SetupMonitoringServer(dbs []database.Database) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", makeHealthCheckHandler(dbs))
	var rootHandler http.Handler = mux
	return rootHandler
}
