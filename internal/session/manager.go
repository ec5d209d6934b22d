// Package session keeps conversation state in memory. Sessions live for the
// process lifetime only and are never persisted.
package session

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

const (
	DefaultCapacity    = 100
	DefaultIdleTimeout = 24 * time.Hour

	RoleUser      = "user"
	RoleAssistant = "assistant"

	summaryPreviewRunes    = 100
	defaultSummaryMessages = 10
)

// Message is one conversation turn. Assistant turns carry a metadata
// snapshot (reasoning steps, sources, completeness) for later introspection.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Session is a snapshot of one conversation. Mutating it does not affect the
// manager's state.
type Session struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastActivity    time.Time      `json:"lastActivity"`
	MessageCount    int            `json:"messageCount"`
	Messages        []Message      `json:"messages"`
	ResearchContext map[string]any `json:"researchContext"`
}

// Info is the listing row for a session.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	MessageCount int       `json:"messageCount"`
}

type state struct {
	id              string
	createdAt       time.Time
	lastActivity    time.Time
	messages        []Message
	researchContext map[string]any
}

// Manager bounds the number of live sessions and expires idle ones. All
// methods are safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*state
	capacity    int
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager builds a manager. Non-positive capacity or idle timeout select
// the defaults; a nil clock selects time.Now.
func NewManager(capacity int, idleTimeout time.Duration, now func() time.Time) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions:    make(map[string]*state),
		capacity:    capacity,
		idleTimeout: idleTimeout,
		now:         now,
	}
}

// GetOrCreate returns the session with the given id, creating it when absent.
// An empty id starts a fresh session under a new uuid. Expired sessions are
// purged first; creating a session at capacity evicts the least recently
// active ones, so the store never holds more than its capacity.
func (m *Manager) GetOrCreate(id string) Session {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.purgeExpiredLocked(now)

	st, ok := m.sessions[id]
	if !ok {
		m.evictOverCapacityLocked(len(m.sessions) + 1)
		st = &state{
			id:              id,
			createdAt:       now,
			lastActivity:    now,
			researchContext: make(map[string]any),
		}
		m.sessions[id] = st
		log.Printf("session created id=%s", id)
	} else {
		st.lastActivity = now
	}

	return copySession(st)
}

// AppendMessage records one conversation turn. Metadata may be nil; unknown
// session ids are ignored.
func (m *Manager) AppendMessage(id, role, content string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return
	}
	now := m.now()
	st.messages = append(st.messages, Message{Role: role, Content: content, Timestamp: now, Metadata: metadata})
	st.lastActivity = now
}

// UpdateContext merges research context into the session. Unknown session
// ids are ignored.
func (m *Manager) UpdateContext(id string, ctx map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return
	}
	for key, value := range ctx {
		st.researchContext[key] = value
	}
	st.lastActivity = m.now()
}

// Summary renders the last maxMessages turns as one line each, for feeding
// conversation history into a prompt. Non-positive maxMessages selects the
// default. Unknown sessions and empty histories render as "".
func (m *Manager) Summary(id string, maxMessages int) string {
	if maxMessages <= 0 {
		maxMessages = defaultSummaryMessages
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok || len(st.messages) == 0 {
		return ""
	}

	messages := st.messages
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			lines = append(lines, "User asked: "+preview(msg.Content)+"...")
		case RoleAssistant:
			lines = append(lines, "AI responded about: "+preview(msg.Content)+"...")
		}
	}

	return strings.Join(lines, "\n")
}

// Get returns a snapshot of the session without refreshing its activity.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return copySession(st), true
}

// List returns all live sessions, most recently active first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.sessions))
	for _, st := range m.sessions {
		out = append(out, Info{
			ID:           st.id,
			CreatedAt:    st.createdAt,
			LastActivity: st.lastActivity,
			MessageCount: len(st.messages),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

func (m *Manager) purgeExpiredLocked(now time.Time) {
	for id, st := range m.sessions {
		if now.Sub(st.lastActivity) > m.idleTimeout {
			delete(m.sessions, id)
			log.Printf("session expired id=%s", id)
		}
	}
}

// evictOverCapacityLocked makes room so that the store can hold nextSize
// sessions without exceeding capacity.
func (m *Manager) evictOverCapacityLocked(nextSize int) {
	excess := nextSize - m.capacity
	if excess <= 0 {
		return
	}

	oldest := make([]*state, 0, len(m.sessions))
	for _, st := range m.sessions {
		oldest = append(oldest, st)
	}
	sort.Slice(oldest, func(i, j int) bool {
		return oldest[i].lastActivity.Before(oldest[j].lastActivity)
	})
	if excess > len(oldest) {
		excess = len(oldest)
	}
	for _, st := range oldest[:excess] {
		delete(m.sessions, st.id)
		log.Printf("session evicted id=%s last_activity=%s", st.id, st.lastActivity.Format(time.RFC3339))
	}
}

func copySession(st *state) Session {
	messages := make([]Message, len(st.messages))
	copy(messages, st.messages)

	ctx := make(map[string]any, len(st.researchContext))
	for key, value := range st.researchContext {
		ctx[key] = value
	}

	return Session{
		ID:              st.id,
		CreatedAt:       st.createdAt,
		LastActivity:    st.lastActivity,
		MessageCount:    len(st.messages),
		Messages:        messages,
		ResearchContext: ctx,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryPreviewRunes {
		return content
	}
	return string(runes[:summaryPreviewRunes])
}
