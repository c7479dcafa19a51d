package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ledgerdesk/api/internal/document"
	"ledgerdesk/api/internal/export"
	"ledgerdesk/api/internal/store"
)

const previewCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src data:; frame-src 'self' about:"

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        logrus.FieldLogger
}

func NewHTTPServer(service *Service, corsOrigin string, log logrus.FieldLogger) *HTTPServer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 2 && parts[0] == "s" {
		switch r.Method {
		case http.MethodGet:
			link, err := s.service.ResolveShare(r.Context(), parts[1])
			if err != nil {
				s.fail(w, r, err)
				return
			}
			http.Redirect(w, r, link.URL, http.StatusFound)
			return
		case http.MethodDelete:
			if err := s.service.RevokeShare(r.Context(), parts[1]); err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
			return
		}
	}

	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "documents":
		if len(parts) == 2 && r.Method == http.MethodGet {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			items, err := s.service.ListDocuments(r.Context(), limit)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
	case "sessions":
		if s.handleSessions(w, r, parts[2:]) {
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}

	if !s.service.DocumentsConfigured() {
		checks["database"] = map[string]any{"status": "disabled"}
	} else if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":       status == "ready",
		"status":   status,
		"checks":   checks,
		"sessions": s.service.SessionCount(),
	})
}

// handleSessions serves /api/sessions/...; rest is the path after "sessions".
// It reports whether a route matched.
func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, rest []string) bool {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			return false
		}
		var body CreateSessionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		state, err := s.service.CreateSession(r.Context(), body)
		if err != nil {
			s.fail(w, r, err)
			return true
		}
		writeJSON(w, http.StatusCreated, state)
		return true
	}

	id := rest[0]
	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.respondState(w, r)(s.service.Session(id))
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.CloseSession(id); err != nil {
			s.fail(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case len(rest) == 2 && rest[1] == "document" && r.Method == http.MethodPut:
		var spec document.Spec
		if err := decodeBody(r, &spec); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respondState(w, r)(s.service.InitSession(id, spec))
	case len(rest) == 3 && rest[1] == "pages" && r.Method == http.MethodPost:
		s.respondState(w, r)(s.service.Navigate(id, Direction(rest[2])))
	case len(rest) == 3 && rest[1] == "zoom" && r.Method == http.MethodPost:
		s.respondState(w, r)(s.service.Zoom(id, Direction(rest[2])))
	case len(rest) == 2 && rest[1] == "fullscreen" && r.Method == http.MethodPost:
		s.respondState(w, r)(s.service.ToggleFullscreen(id))
	case len(rest) == 2 && rest[1] == "preview" && r.Method == http.MethodGet:
		page, err := s.service.RenderPreview(id)
		if err != nil {
			s.fail(w, r, err)
			return true
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", previewCSP)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodPost:
		s.handleExport(w, r, id)
	case len(rest) == 2 && rest[1] == "artifact" && r.Method == http.MethodGet:
		artifact, err := s.service.Artifact(id)
		if err != nil {
			s.fail(w, r, err)
			return true
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+artifact.Filename+"\"")
		w.Header().Set("Content-Type", artifact.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(artifact.Data)
	default:
		return false
	}
	return true
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Channel string `json:"channel"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	result, err := s.service.RequestExport(r.Context(), id, body.Channel)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Reason == export.ReasonBusy {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) respondState(w http.ResponseWriter, r *http.Request) func(SessionState, error) {
	return func(state SessionState, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 8<<20))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, document.ErrMissingArtifactName) || errors.Is(err, document.ErrUnsafeArtifactName) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
