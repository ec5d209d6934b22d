package research

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"web3research/backend/internal/runlog"
	"web3research/backend/internal/session"
)

// RunArchiver persists run outcomes. Archive failures are logged, never
// surfaced to the caller.
type RunArchiver interface {
	SaveRun(ctx context.Context, run runlog.Run) error
}

// OrchestratorConfig carries the orchestrator's tunables. Zero values select
// defaults; a nil Archiver disables run archiving.
type OrchestratorConfig struct {
	ToolTimeout time.Duration
	Archiver    RunArchiver
	Now         func() time.Time
}

// Orchestrator runs the full research pipeline: classify, plan, dispatch,
// fuse, synthesize, record.
type Orchestrator struct {
	sessions  *session.Manager
	adapters  map[string]Adapter
	responder PromptResponder
	cfg       OrchestratorConfig
}

func NewOrchestrator(sessions *session.Manager, adapters map[string]Adapter, responder PromptResponder, cfg OrchestratorConfig) Orchestrator {
	if sessions == nil {
		sessions = session.NewManager(0, 0, nil)
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return Orchestrator{
		sessions:  sessions,
		adapters:  adapters,
		responder: responder,
		cfg:       cfg,
	}
}

// Research executes one request end to end. Provider failures degrade the
// dataset instead of failing the run; only an unusable request or a failed
// synthesis yields Success false.
func (o Orchestrator) Research(ctx context.Context, req Request) Response {
	if ctx == nil {
		ctx = context.Background()
	}
	start := o.cfg.Now()

	req.Query = strings.TrimSpace(req.Query)
	req.TimeRange = strings.TrimSpace(req.TimeRange)
	if req.TimeRange == "" {
		req.TimeRange = TimeRanges[0]
	}

	if req.Query == "" {
		return Response{
			Success:         false,
			Error:           "query is empty",
			ReasoningSteps:  []string{},
			Citations:       []Citation{},
			DataSourcesUsed: []string{},
			ExecutionTime:   o.cfg.Now().Sub(start).Seconds(),
			QueryIntent:     IntentGeneral,
			SessionID:       req.SessionID,
		}
	}
	if !ValidTimeRange(req.TimeRange) {
		return Response{
			Success:         false,
			Error:           fmt.Sprintf("time_range must be one of %s", strings.Join(TimeRanges, ", ")),
			ReasoningSteps:  []string{},
			Citations:       []Citation{},
			DataSourcesUsed: []string{},
			ExecutionTime:   o.cfg.Now().Sub(start).Seconds(),
			QueryIntent:     Classify(req.Query),
			SessionID:       req.SessionID,
		}
	}

	if DetectGreeting(req.Query) {
		return o.greet(req, start)
	}

	intent := Classify(req.Query)
	steps := make([]string, 0, 16)

	sess := o.sessions.GetOrCreate(req.SessionID)
	req.SessionID = sess.ID
	summary := o.sessions.Summary(sess.ID, 0)
	o.sessions.AppendMessage(sess.ID, session.RoleUser, req.Query, nil)
	if summary != "" {
		steps = append(steps, fmt.Sprintf("Referencing conversation history: %d previous messages", sess.MessageCount))
	}

	plan := Plan(req, intent)
	steps = append(steps, plan.Steps...)
	req.Address = plan.Address

	results, notes := Dispatch(ctx, req, plan.Tools, o.adapters, o.cfg.ToolTimeout)
	steps = append(steps, notes...)

	steps = append(steps, "Merging and analyzing data from all sources")
	merged := Merge(results, intent)
	sources := merged.Metadata.SourcesUsed
	if sources == nil {
		sources = []string{}
	}

	steps = append(steps, "Synthesizing comprehensive response based on merged data")
	canonical := Canonical(&merged)
	prompt := BuildSynthesisPrompt(req, intent, results, &merged, canonical, summary)

	var reply string
	var synthErr error
	if o.responder == nil {
		synthErr = errors.New("prompt responder is not configured")
	} else {
		reply, synthErr = o.responder.Respond(ctx, synthesisSystemPrompt, prompt)
		if synthErr == nil && strings.TrimSpace(reply) == "" {
			synthErr = errors.New("synthesis returned an empty response")
		}
	}
	if synthErr != nil {
		log.Printf("research orchestrator: synthesis failed: session=%s err=%v", sess.ID, synthErr)
		execTime := o.cfg.Now().Sub(start).Seconds()
		o.archive(ctx, runlog.Run{
			SessionID:     sess.ID,
			Query:         req.Query,
			Intent:        string(intent),
			Success:       false,
			SourcesUsed:   sources,
			ExecutionTime: execTime,
			CreatedAt:     o.cfg.Now(),
		})
		return Response{
			Success:         false,
			Error:           synthErr.Error(),
			ReasoningSteps:  steps,
			Citations:       []Citation{},
			DataSourcesUsed: sources,
			ExecutionTime:   execTime,
			QueryIntent:     intent,
			SessionID:       sess.ID,
		}
	}

	now := o.cfg.Now()
	citations := make([]Citation, 0, len(sources))
	for _, source := range sources {
		citations = append(citations, Citation{
			Source:       source,
			Timestamp:    now,
			QueryContext: truncate(req.Query, 100),
		})
	}

	o.sessions.AppendMessage(sess.ID, session.RoleAssistant, reply, map[string]any{
		"sources_used":       sources,
		"completeness_score": merged.Metadata.CompletenessScore,
		"query_intent":       string(intent),
	})
	o.sessions.UpdateContext(sess.ID, map[string]any{
		"last_query":   req.Query,
		"last_result":  reply,
		"query_intent": string(intent),
		"data_sources": sources,
	})

	execTime := o.cfg.Now().Sub(start).Seconds()
	o.archive(ctx, runlog.Run{
		SessionID:         sess.ID,
		Query:             req.Query,
		Intent:            string(intent),
		Success:           true,
		CompletenessScore: merged.Metadata.CompletenessScore,
		SourcesUsed:       sources,
		ExecutionTime:     execTime,
		CreatedAt:         now,
	})

	return Response{
		Success:           true,
		Result:            reply,
		ReasoningSteps:    steps,
		Citations:         citations,
		DataSourcesUsed:   sources,
		ExecutionTime:     execTime,
		QueryIntent:       intent,
		CompletenessScore: float64(merged.Metadata.CompletenessScore),
		SessionID:         sess.ID,
	}
}

// greet answers casual conversation from canned responses. No adapters and no
// model call, but the exchange still lands in the session history.
func (o Orchestrator) greet(req Request, start time.Time) Response {
	sess := o.sessions.GetOrCreate(req.SessionID)
	reply := GreetingResponse(req.Query, sess.MessageCount)

	o.sessions.AppendMessage(sess.ID, session.RoleUser, req.Query, nil)
	o.sessions.AppendMessage(sess.ID, session.RoleAssistant, reply, nil)
	o.sessions.UpdateContext(sess.ID, map[string]any{
		"last_query":   req.Query,
		"last_result":  reply,
		"query_intent": string(IntentGreeting),
		"data_sources": []string{},
	})

	return Response{
		Success:           true,
		Result:            reply,
		ReasoningSteps:    []string{"Detected greeting message - provided friendly AI response"},
		Citations:         []Citation{},
		DataSourcesUsed:   []string{},
		ExecutionTime:     o.cfg.Now().Sub(start).Seconds(),
		QueryIntent:       IntentGreeting,
		CompletenessScore: 1.0,
		SessionID:         sess.ID,
	}
}

func (o Orchestrator) archive(ctx context.Context, run runlog.Run) {
	if o.cfg.Archiver == nil {
		return
	}
	if err := o.cfg.Archiver.SaveRun(ctx, run); err != nil {
		log.Printf("research orchestrator: run archive failed: session=%s err=%v", run.SessionID, err)
	}
}

// GetSession returns a point-in-time snapshot of one conversation.
func (o Orchestrator) GetSession(id string) (session.Session, error) {
	sess, ok := o.sessions.Get(id)
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

// ListSessions lists live sessions, most recently active first.
func (o Orchestrator) ListSessions() []session.Info {
	return o.sessions.List()
}

// SessionSummary renders a session's recent history as prompt-ready lines.
func (o Orchestrator) SessionSummary(id string, maxMessages int) (string, error) {
	if _, ok := o.sessions.Get(id); !ok {
		return "", session.ErrNotFound
	}
	return o.sessions.Summary(id, maxMessages), nil
}
