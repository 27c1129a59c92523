package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"collabflow/auth"
	"collabflow/catalog"
	"collabflow/ledger"
	"collabflow/overdue"
	"collabflow/record"
	"collabflow/stats"
	"collabflow/workflow"
)

type ctxKey string

const (
	ctxKeyOperatorID ctxKey = "operatorID"
	ctxKeyRole       ctxKey = "role"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Operator, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type recordService interface {
	Create(ctx context.Context, creatorHandle, campaign, brand string) (record.Record, error)
	GetByID(ctx context.Context, id int64) (record.Record, error)
	List(ctx context.Context, limit int) ([]record.Record, error)
}

type transitionEngine interface {
	Transition(ctx context.Context, params workflow.TransitionParams) (ledger.Entry, error)
	Complete(ctx context.Context, params workflow.CompleteParams) (ledger.Entry, error)
}

type ledgerStore interface {
	History(ctx context.Context, recordID int64) ([]ledger.Entry, error)
	OpenEntries(ctx context.Context) ([]ledger.Entry, error)
	AllLedgers(ctx context.Context) ([]*ledger.Ledger, error)
}

// Server holds the HTTP handlers and their dependencies. Fields are
// interfaces so tests can stub individual services.
type Server struct {
	logger        *slog.Logger
	authService   authService
	recordService recordService
	engine        transitionEngine
	ledgerStore   ledgerStore
	detector      *overdue.Detector
	aggregator    *stats.Aggregator
	composer      *stats.Composer
	clock         func() time.Time
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/records", s.requireAuth(s.handleRecords))
	mux.HandleFunc("/api/records/", s.requireAuth(s.handleRecordDetail))
	mux.HandleFunc("/api/overdue", s.requireAuth(s.handleOverdue))
	mux.HandleFunc("/api/stats", s.requireAuth(s.handleStats))
	mux.HandleFunc("/api/report", s.requireAuth(s.handleReport))
	return mux
}

// requireAuth verifies the bearer token and stores the operator identity in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		operatorID, role, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyOperatorID, operatorID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("register operator", "error", err)
			writeError(w, http.StatusBadRequest, "registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOperatorResponse(*op))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    result.Token,
		Operator: toOperatorResponse(result.Operator),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecords(w, r)
	case http.MethodPost:
		s.handleCreateRecord(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := s.recordService.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list records", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, listResponse[recordResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.recordService.Create(r.Context(), req.CreatorHandle, req.Campaign, req.Brand)
	if err != nil {
		if errors.Is(err, record.ErrInvalidRecord) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("create record", "error", err)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// handleRecordDetail routes /api/records/{id}, /api/records/{id}/history,
// /api/records/{id}/transition and /api/records/{id}/complete.
func (s *Server) handleRecordDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/records/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	recordID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetRecord(w, r, recordID)
	case len(parts) == 2 && parts[1] == "history":
		s.handleHistory(w, r, recordID)
	case len(parts) == 2 && parts[1] == "transition":
		s.handleTransition(w, r, recordID)
	case len(parts) == 2 && parts[1] == "complete":
		s.handleComplete(w, r, recordID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, recordID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, err := s.recordService.GetByID(r.Context(), recordID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.logger.Error("get record", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, recordID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.ledgerStore.History(r.Context(), recordID)
	if err != nil {
		s.logger.Error("load history", "record_id", recordID, "error", err)
		writeError(w, http.StatusInternalServerError, "history failed")
		return
	}

	items := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, listResponse[entryResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, recordID int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Override {
		role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
		if role != auth.RoleManager && role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, "override requires manager role")
			return
		}
	}

	at := s.now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at timestamp")
			return
		}
		at = parsed
	}

	params := workflow.TransitionParams{
		RecordID:  recordID,
		ToStageID: req.ToStage,
		Now:       at,
		Reason:    req.Reason,
		Override:  req.Override,
	}
	if operatorID, ok := r.Context().Value(ctxKeyOperatorID).(string); ok && operatorID != "" {
		params.OperatorID = &operatorID
	}
	if req.Remarks != "" {
		params.Remarks = &req.Remarks
	}

	entry, err := s.engine.Transition(r.Context(), params)
	if err != nil {
		s.writeTransitionError(w, recordID, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, recordID int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req completeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	at := s.now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at timestamp")
			return
		}
		at = parsed
	}

	params := workflow.CompleteParams{RecordID: recordID, Now: at}
	if operatorID, ok := r.Context().Value(ctxKeyOperatorID).(string); ok && operatorID != "" {
		params.OperatorID = &operatorID
	}
	if req.Remarks != "" {
		params.Remarks = &req.Remarks
	}

	entry, err := s.engine.Complete(r.Context(), params)
	if err != nil {
		s.writeTransitionError(w, recordID, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) writeTransitionError(w http.ResponseWriter, recordID int64, err error) {
	switch {
	case errors.Is(err, workflow.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, catalog.ErrUnknownStage):
		writeError(w, http.StatusBadRequest, "unknown stage")
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrWorkflowCompleted),
		errors.Is(err, workflow.ErrNotStarted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvariantViolation):
		// Concurrent writer won the race; the client reloads and retries.
		writeError(w, http.StatusConflict, "record changed concurrently, retry")
	default:
		if strings.Contains(err.Error(), "missing") || strings.Contains(err.Error(), "required") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("transition", "record_id", recordID, "error", err)
		writeError(w, http.StatusInternalServerError, "transition failed")
	}
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	open, err := s.ledgerStore.OpenEntries(r.Context())
	if err != nil {
		s.logger.Error("load open entries", "error", err)
		writeError(w, http.StatusInternalServerError, "overdue scan failed")
		return
	}

	findings, err := s.detector.Detect(open, s.now())
	if err != nil {
		s.logger.Error("detect overdue", "error", err)
		writeError(w, http.StatusInternalServerError, "overdue scan failed")
		return
	}

	items := make([]overdueResponse, 0, len(findings))
	for _, f := range findings {
		items = append(items, toOverdueResponse(f))
	}
	writeJSON(w, http.StatusOK, listResponse[overdueResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ledgers, err := s.ledgerStore.AllLedgers(r.Context())
	if err != nil {
		s.logger.Error("load ledgers", "error", err)
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	rollup, err := s.aggregator.Aggregate(ledgers, s.now())
	if err != nil {
		s.logger.Error("aggregate stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(rollup))
}

// handleReport assembles the full report. The aggregate rollup and the live
// overdue scan read independent snapshots, so they run in parallel.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := s.now()

	var (
		rollup   stats.TimelinessStats
		findings []overdue.Record
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		ledgers, err := s.ledgerStore.AllLedgers(ctx)
		if err != nil {
			return err
		}
		rollup, err = s.aggregator.Aggregate(ledgers, now)
		return err
	})
	g.Go(func() error {
		open, err := s.ledgerStore.OpenEntries(ctx)
		if err != nil {
			return err
		}
		findings, err = s.detector.Detect(open, now)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("compose report", "error", err)
		writeError(w, http.StatusInternalServerError, "report failed")
		return
	}

	report := s.composer.Compose(rollup, findings)
	writeJSON(w, http.StatusOK, toReportResponse(report, now))
}
