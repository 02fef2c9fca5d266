package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"sendgate/internal/constants"
	apperrors "sendgate/internal/errors"
	"sendgate/internal/metrics"
	"sendgate/internal/models"
	"sendgate/internal/service"
)

// Server is the thin admin surface over the dispatch core: approval
// lifecycle operations, suppression administration, on-demand dispatch, and
// operational introspection. No auth or tenancy lives here.
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	approvals  *service.ApprovalService
	dispatcher *service.DispatchRouter
	gate       *service.ComplianceGate
	failed     service.FailedSendStore
	registry   *metrics.Registry
	batchSize  int
	port       int
	server     *http.Server
}

func NewServer(
	approvals *service.ApprovalService,
	dispatcher *service.DispatchRouter,
	gate *service.ComplianceGate,
	failed service.FailedSendStore,
	registry *metrics.Registry,
	batchSize, port int,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		approvals:  approvals,
		dispatcher: dispatcher,
		gate:       gate,
		failed:     failed,
		registry:   registry,
		batchSize:  batchSize,
		port:       port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogging)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	s.router.HandleFunc("/approvals", s.handleCreateApproval()).Methods(http.MethodPost)
	s.router.HandleFunc("/approvals", s.handleListApprovals()).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals/{id}", s.handleGetApproval()).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals/{id}/events", s.handleApprovalEvents()).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals/{id}/approve", s.handleApprove()).Methods(http.MethodPost)
	s.router.HandleFunc("/approvals/{id}/reject", s.handleReject()).Methods(http.MethodPost)

	s.router.HandleFunc("/dispatch", s.handleDispatch()).Methods(http.MethodPost)

	s.router.HandleFunc("/suppressions", s.handleListSuppressions()).Methods(http.MethodGet)
	s.router.HandleFunc("/suppressions", s.handleAddSuppression()).Methods(http.MethodPost)
	s.router.HandleFunc("/suppressions/{value}", s.handleRemoveSuppression()).Methods(http.MethodDelete)

	s.router.HandleFunc("/deadletters", s.handleListDeadLetters()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting admin server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.registry.GetAllMetrics())
	}
}

type createApprovalRequest struct {
	LeadID     string `json:"leadId"`
	Channel    string `json:"channel"`
	ActionKind string `json:"actionKind"`
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

func (s *Server) handleCreateApproval() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createApprovalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		kind := models.ActionKind(req.ActionKind)
		if kind == "" {
			kind = models.ActionSend
		}
		approval, err := s.approvals.CreateDraft(r.Context(), req.LeadID, models.Channel(req.Channel), kind, req.Recipient, req.Subject, req.Body)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, approval)
	}
}

func (s *Server) handleListApprovals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.approvals.List(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		if list == nil {
			list = []*models.Approval{}
		}
		s.writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleGetApproval() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approval, err := s.approvals.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, approval)
	}
}

func (s *Server) handleApprovalEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := s.approvals.Events(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		if events == nil {
			events = []*models.DispatchEvent{}
		}
		s.writeJSON(w, http.StatusOK, events)
	}
}

type reviewRequest struct {
	Approver string `json:"approver"`
	Reason   string `json:"reason"`
}

func (s *Server) handleApprove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Approver == "" {
			s.writeError(w, http.StatusBadRequest, "approver is required")
			return
		}
		approval, err := s.approvals.Approve(r.Context(), mux.Vars(r)["id"], req.Approver)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, approval)
	}
}

func (s *Server) handleReject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Approver == "" {
			s.writeError(w, http.StatusBadRequest, "approver is required")
			return
		}
		approval, err := s.approvals.Reject(r.Context(), mux.Vars(r)["id"], req.Approver, req.Reason)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, approval)
	}
}

func (s *Server) handleDispatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.dispatcher.ProcessApproved(r.Context(), s.batchSize)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

type suppressionRequest struct {
	Value  string   `json:"value"`
	Values []string `json:"values"`
	Reason string   `json:"reason"`
}

func (s *Server) handleAddSuppression() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suppressionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Values) > 0 {
			added, err := s.gate.BulkAdd(r.Context(), req.Values, req.Reason)
			if err != nil {
				s.writeAppError(w, err)
				return
			}
			if added == nil {
				added = []*models.SuppressionEntry{}
			}
			s.writeJSON(w, http.StatusCreated, added)
			return
		}
		entry, err := s.gate.Add(r.Context(), req.Value, req.Reason)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) handleListSuppressions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.gate.List(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		if entries == nil {
			entries = []*models.SuppressionEntry{}
		}
		s.writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) handleRemoveSuppression() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.gate.Remove(r.Context(), mux.Vars(r)["value"]); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListDeadLetters() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		letters, err := s.failed.ListDeadLetters(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		if letters == nil {
			letters = []*models.DeadLetter{}
		}
		s.writeJSON(w, http.StatusOK, letters)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		s.writeError(w, http.StatusNotFound, err.Error())
	case apperrors.ErrCodeInvalidTransition:
		s.writeError(w, http.StatusConflict, err.Error())
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeUnknownChannel, apperrors.ErrCodeValidationFailed:
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).Error("Request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
