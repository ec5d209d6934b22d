package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"web3research/backend/internal/config"
	"web3research/backend/internal/research"
	"web3research/backend/internal/runlog"
	"web3research/backend/internal/session"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	cfg  config.Config
	orch research.Orchestrator
	runs runlog.Store
}

func NewHandler(cfg config.Config, orch research.Orchestrator, runs runlog.Store) Handler {
	return Handler{cfg: cfg, orch: orch, runs: runs}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type researchRequest struct {
	Query     string `json:"query"`
	Address   string `json:"address"`
	TimeRange string `json:"time_range"`
	SessionID string `json:"session_id"`
}

func (h Handler) Research(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if timeRange := strings.TrimSpace(req.TimeRange); timeRange != "" && !research.ValidTimeRange(timeRange) {
		writeError(w, http.StatusBadRequest, "invalid_request", "time_range must be one of "+strings.Join(research.TimeRanges, ", "))
		return
	}
	address := strings.TrimSpace(req.Address)
	if address != "" && !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid_request", "address must be a 0x-prefixed hex address")
		return
	}

	ctx := r.Context()
	if h.cfg.ResearchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(h.cfg.ResearchTimeoutSeconds)*time.Second)
		defer cancel()
	}

	resp := h.orch.Research(ctx, research.Request{
		Query:     req.Query,
		Address:   address,
		TimeRange: req.TimeRange,
		SessionID: req.SessionID,
	})

	log.Printf("research request completed: session=%s intent=%s success=%t sources=%d completeness=%.0f duration=%.2fs",
		resp.SessionID, resp.QueryIntent, resp.Success, len(resp.DataSourcesUsed), resp.CompletenessScore, resp.ExecutionTime)

	// Failed runs still return 200; the outcome is reported in the body.
	writeJSON(w, http.StatusOK, resp)
}

func (h Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.orch.ListSessions()})
}

func (h Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.orch.GetSession(chi.URLParam(r, "sessionID"))
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session_error", "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h Handler) SessionSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	maxMessages := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("max_messages")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "max_messages must be a non-negative integer")
			return
		}
		maxMessages = value
	}

	summary, err := h.orch.SessionSummary(id, maxMessages)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session_error", "failed to summarize session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "summary": summary})
}

func (h Handler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = value
	}

	runs, err := h.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read research runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
