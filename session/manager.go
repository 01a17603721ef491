// Package session owns agent sessions: their registry, per-turn subprocess
// lifecycle and multi-turn state.
//
// A [Manager] serves one adapter. Each session runs in the adapter's mode,
// fixed at creation:
//
//   - stream: every turn spawns the agent; once the agent has reported a
//     conversation id, later turns pass it through the adapter's resume
//     flag so the agent restores its own memory.
//   - iterative: every turn spawns the agent, without any resume flag,
//     with the rendered history of all prior turns followed by the new
//     input; the un-rendered (input, output) pair is recorded once the
//     turn completes.
//
// Turns within one session are serialized. Distinct sessions run
// independently and share only the registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/adapter"
	"github.com/dmora/agentbridge/engine/cli"
	"github.com/dmora/agentbridge/history"
	"github.com/dmora/agentbridge/internal/idutil"
	"github.com/dmora/agentbridge/parser"
)

// ErrClosed indicates the manager has been closed.
var ErrClosed = errors.New("session: manager closed")

// Sink receives updates as they are parsed during a turn. It is called
// from the goroutine running Prompt.
type Sink func(agentbridge.Update)

// Info is a snapshot of one session.
type Info struct {
	ID             string              `json:"id"`
	CWD            string              `json:"cwd"`
	Mode           adapter.SessionMode `json:"mode"`
	ConversationID string              `json:"conversationId,omitempty"`
	Active         bool                `json:"active"`
	Turns          int                 `json:"turns"`
	Running        bool                `json:"running"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Manager creates sessions for one adapter and runs their turns.
type Manager struct {
	cfg    *adapter.Config
	parser *parser.Parser
	opts   options
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	id      string
	cwd     string
	mode    adapter.SessionMode
	created time.Time
	history *history.Builder // iterative mode only

	turnMu sync.Mutex // serializes turns

	mu             sync.Mutex
	proc           *cli.Process
	conversationID string
	active         bool
	turns          int
}

// NewManager returns a Manager for cfg. cfg must be valid; it is cloned so
// later mutation by the caller has no effect.
func NewManager(cfg *adapter.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	p, err := parser.New(cfg)
	if err != nil {
		return nil, err
	}
	o := resolveOptions(opts...)
	return &Manager{
		cfg:      cfg,
		parser:   p,
		opts:     o,
		log:      o.logger.With("agent", cfg.Name),
		sessions: make(map[string]*session),
	}, nil
}

// Config returns a copy of the adapter document.
func (m *Manager) Config() *adapter.Config { return m.cfg.Clone() }

// Create registers a new session rooted at cwd and returns its id. An
// empty cwd selects the bridge's working directory; otherwise cwd must be
// an absolute path to an existing directory.
func (m *Manager) Create(cwd string) (string, error) {
	cwd, err := resolveCWD(cwd)
	if err != nil {
		return "", err
	}
	s := &session{
		cwd:     cwd,
		mode:    m.cfg.SessionMode,
		created: time.Now(),
		active:  true,
	}
	if s.mode == adapter.ModeIterative {
		s.history = history.New(m.cfg.HistoryTemplate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	s.id = m.opts.newID()
	if _, dup := m.sessions[s.id]; dup {
		return "", fmt.Errorf("session: duplicate id %q", s.id)
	}
	m.sessions[s.id] = s
	m.log.Info("session created", "session", s.id, "cwd", cwd, "mode", s.mode)
	return s.id, nil
}

func resolveCWD(cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("session: cwd: %w", err)
		}
		return wd, nil
	}
	if !filepath.IsAbs(cwd) {
		return "", fmt.Errorf("session: cwd must be an absolute path, got %q", cwd)
	}
	info, err := os.Stat(cwd)
	if err != nil {
		return "", fmt.Errorf("session: cwd: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("session: cwd is not a directory: %s", cwd)
	}
	return filepath.Clean(cwd), nil
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", agentbridge.ErrSessionNotFound, id)
	}
	return s, nil
}

// Prompt runs one turn: it spawns the agent, forwards every parsed update
// to sink (which may be nil) and returns once the terminal result line is
// seen. Updates observed before a failure are included in the returned
// result.
//
// The turn fails with [agentbridge.ErrTurnTimeout] when the turn timeout
// elapses first, with [agentbridge.ErrNoResult] when the agent closes its
// output without a result, and with ctx's error when ctx ends. In every
// failure case the turn's subprocess is killed; the session stays usable.
func (m *Manager) Prompt(ctx context.Context, id, text string, sink Sink) (agentbridge.PromptResult, error) {
	s, err := m.lookup(id)
	if err != nil {
		return agentbridge.PromptResult{}, err
	}
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	active, resumeID := s.active, s.conversationID
	s.mu.Unlock()
	if !active {
		return agentbridge.PromptResult{}, fmt.Errorf("%w: %s", agentbridge.ErrSessionInactive, id)
	}

	prompt := text
	if s.history != nil {
		prompt = s.history.BuildPrompt(text)
		// The replayed history is the agent's only memory.
		resumeID = ""
	}
	inv, err := cli.BuildInvocation(m.cfg, cli.Turn{Prompt: prompt, CWD: s.cwd, ResumeID: resumeID})
	if err != nil {
		return agentbridge.PromptResult{}, err
	}

	log := m.log.With("session", id, "turn", s.turnCount()+1)
	log.Debug("spawning agent", "invocation", inv.String())

	proc, err := cli.Start(inv, m.opts.procOpts...)
	if err != nil {
		return agentbridge.PromptResult{}, err
	}
	if !s.attach(proc) {
		proc.Kill()
		_ = proc.Wait()
		return agentbridge.PromptResult{}, fmt.Errorf("%w: %s", agentbridge.ErrSessionInactive, id)
	}
	defer s.detach(proc)

	start := time.Now()
	res, err := m.runTurn(ctx, s, proc, sink)
	res.ConversationID = s.conversation()
	if err != nil {
		proc.Kill()
		log.Warn("turn failed", "error", err, "updates", len(res.Updates), "elapsed", time.Since(start))
		return res, err
	}

	// The result line ends the turn; the agent may still be flushing.
	go func() { _ = proc.Stop(context.Background()) }()

	if s.history != nil {
		s.history.AddTurn(text, res.Output)
	}
	s.mu.Lock()
	s.turns++
	s.mu.Unlock()
	log.Debug("turn complete", "updates", len(res.Updates), "elapsed", time.Since(start))
	return res, nil
}

// Cancel marks the session inactive and kills any running turn's
// subprocess. The in-flight Prompt observes the kill as stream closure.
func (m *Manager) Cancel(id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.cancel()
	m.log.Info("session cancelled", "session", id)
	return nil
}

// Destroy cancels the session and removes it from the registry.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", agentbridge.ErrSessionNotFound, id)
	}
	s.cancel()
	m.log.Info("session destroyed", "session", id)
	return nil
}

// Info returns a snapshot of the session.
func (m *Manager) Info(id string) (Info, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// List returns snapshots of every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close destroys every session. Further calls to Create fail with
// ErrClosed. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.closed = true
	m.mu.Unlock()
	for _, s := range sessions {
		s.cancel()
	}
	if len(sessions) > 0 {
		m.log.Info("sessions closed", "count", len(sessions))
	}
}

// attach records proc as the live subprocess. Reports false when the
// session was cancelled meanwhile.
func (s *session) attach(proc *cli.Process) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.proc = proc
	return true
}

func (s *session) detach(proc *cli.Process) {
	s.mu.Lock()
	if s.proc == proc {
		s.proc = nil
	}
	s.mu.Unlock()
}

func (s *session) cancel() {
	s.mu.Lock()
	s.active = false
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		proc.Kill()
	}
}

// harvest records the first conversation id the agent reports. Later ids
// never overwrite it.
func (s *session) harvest(p *parser.Parser, event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID != "" {
		return
	}
	if id, ok := p.SessionID(event); ok {
		s.conversationID = idutil.Sanitize(id)
	}
}

func (s *session) conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *session) turnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

func (s *session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.id,
		CWD:            s.cwd,
		Mode:           s.mode,
		ConversationID: s.conversationID,
		Active:         s.active,
		Turns:          s.turns,
		Running:        s.proc != nil,
		CreatedAt:      s.created,
	}
}
