package acp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/filter"
	"github.com/dmora/agentbridge/session"
)

// Server answers protocol requests for one session manager.
type Server struct {
	mgr  *session.Manager
	log  *slog.Logger
	info Implementation
	opts []ConnOption

	kinds     []agentbridge.UpdateKind // nil forwards every kind
	dropEmpty bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger. Nil is ignored.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAgentInfo sets the identity reported by initialize.
func WithAgentInfo(info Implementation) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithConnOptions passes options to the underlying Conn.
func WithConnOptions(opts ...ConnOption) ServerOption {
	return func(s *Server) { s.opts = append(s.opts, opts...) }
}

// WithUpdateKinds limits session/update notifications to the given kinds.
// Prompt results still carry the final output. With no kinds every update
// is forwarded.
func WithUpdateKinds(kinds ...agentbridge.UpdateKind) ServerOption {
	return func(s *Server) {
		if len(kinds) == 0 {
			s.kinds = nil
			return
		}
		s.kinds = append([]agentbridge.UpdateKind{}, kinds...)
	}
}

// WithDropEmpty suppresses notifications for updates with no content,
// title or status.
func WithDropEmpty() ServerOption {
	return func(s *Server) { s.dropEmpty = true }
}

// NewServer returns a Server dispatching to mgr.
func NewServer(mgr *session.Manager, opts ...ServerOption) *Server {
	s := &Server{
		mgr:  mgr,
		log:  slog.New(slog.DiscardHandler),
		info: Implementation{Name: mgr.Config().Name, Version: "0.1.0"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Serve reads requests from r and writes responses and notifications to w
// until r reaches EOF or ctx ends. On EOF, Serve waits for in-flight
// requests to be answered. On ctx cancellation it returns immediately;
// in-flight prompts observe the cancelled context.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := NewConn(r, w, append([]ConnOption{WithParseErrorHandler(func(line []byte, err error) {
		s.log.Warn("malformed request", "error", err, "bytes", len(line))
	})}, s.opts...)...)
	s.register(conn)

	go conn.ReadLoop(ctx)
	select {
	case <-conn.Done():
		conn.Wait()
		return conn.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) register(conn *Conn) {
	conn.OnMethod(MethodInitialize, s.initialize)
	conn.OnMethod(MethodSessionNew, s.newSession)
	conn.OnMethod(MethodSessionPrompt, func(ctx context.Context, params json.RawMessage) (any, error) {
		return s.prompt(ctx, conn, params)
	})
	conn.OnNotification(MethodSessionCancel, s.cancel)
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return errors.New("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func (s *Server) initialize(_ context.Context, params json.RawMessage) (any, error) {
	var p InitializeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ProtocolVersion != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d (supported: %d)", p.ProtocolVersion, ProtocolVersion)
	}
	cfg := s.mgr.Config()
	s.log.Info("client initialized", "client", p.ClientInfo)
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		AgentCapabilities: AgentCapabilities{
			Resume:      cfg.SupportsResume(),
			SessionMode: string(cfg.SessionMode),
		},
		AgentInfo:   s.info,
		AuthMethods: []AuthMethod{},
	}, nil
}

func (s *Server) newSession(_ context.Context, params json.RawMessage) (any, error) {
	var p NewSessionParams
	if len(params) > 0 {
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
	}
	if len(p.MCPServers) > 0 {
		s.log.Debug("ignoring mcp servers", "count", len(p.MCPServers))
	}
	id, err := s.mgr.Create(p.CWD)
	if err != nil {
		return nil, err
	}
	return NewSessionResult{SessionID: id}, nil
}

func (s *Server) prompt(ctx context.Context, conn *Conn, params json.RawMessage) (any, error) {
	var p PromptParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	text := promptText(p.Prompt)

	res, err := s.mgr.Prompt(ctx, p.SessionID, text, s.sink(conn, p.SessionID))
	if err != nil {
		if s.cancelled(p.SessionID, err) {
			return PromptResult{StopReason: StopCancelled}, nil
		}
		return nil, err
	}
	return PromptResult{
		StopReason: StopEndTurn,
		Content:    []ContentBlock{{Type: "text", Text: res.Output}},
	}, nil
}

// sink publishes updates for one session as session/update notifications.
func (s *Server) sink(conn *Conn, id string) session.Sink {
	notify := func(u agentbridge.Update) {
		payload, ok := toWire(u)
		if !ok {
			return
		}
		if err := conn.Notify(MethodSessionUpdate, SessionNotification{SessionID: id, Update: payload}); err != nil {
			s.log.Debug("update not delivered", "session", id, "error", err)
		}
	}
	if s.kinds != nil {
		notify = filter.Kinds(notify, s.kinds...)
	}
	if s.dropEmpty {
		notify = filter.Visible(notify)
	}
	return notify
}

// cancelled reports whether a failed turn ended because the session was
// cancelled while it ran.
func (s *Server) cancelled(id string, err error) bool {
	if !errors.Is(err, agentbridge.ErrNoResult) {
		return false
	}
	info, ierr := s.mgr.Info(id)
	return ierr == nil && !info.Active
}

// promptText joins the text of every text block with newlines.
func promptText(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" || (b.Type == "" && b.Text != "") {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *Server) cancel(_ context.Context, params json.RawMessage) {
	var p CancelParams
	if err := decodeParams(params, &p); err != nil {
		s.log.Debug("cancel ignored", "error", err)
		return
	}
	if err := s.mgr.Cancel(p.SessionID); err != nil {
		s.log.Debug("cancel ignored", "session", p.SessionID, "error", err)
	}
}
