package acp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dmora/agentbridge/internal/errfmt"
)

// defaultMaxMessageSize is the maximum size of one inbound JSON-RPC line.
const defaultMaxMessageSize = 4 << 20 // 4 MB

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// ErrMessageTooLarge is reported to the parse error handler for an inbound
// line longer than the connection's size limit. The line is skipped.
var ErrMessageTooLarge = errors.New("acp: message exceeds size limit")

// MethodHandler answers a request. Returning an *RPCError selects its code;
// any other error is reported as an internal error.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler consumes a notification. Notifications have no
// response, so handlers report failures through their own logging.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// Conn is a bidirectional JSON-RPC 2.0 multiplexer over newline-delimited JSON.
//
// Conn serializes outbound messages (Call, Notify, responses) via a
// mutex-protected encoder and dispatches inbound messages in ReadLoop.
// Requests run in their own goroutine so a long prompt does not block a
// cancel notification arriving behind it; notifications run synchronously
// in ReadLoop. All handlers must be registered before ReadLoop starts.
type Conn struct {
	mu  sync.Mutex
	enc *json.Encoder

	nextID  atomic.Int64
	pending map[string]chan *rpcMessage

	notifyHandlers map[string]NotificationHandler
	methodHandlers map[string]MethodHandler
	onParseError   func(line []byte, err error)

	reader   *bufio.Reader
	maxSize  int
	inflight sync.WaitGroup

	done    chan struct{}
	readErr atomic.Value // stores error (nil = no error)
}

// ConnOption configures a Conn.
type ConnOption func(*connConfig)

type connConfig struct {
	maxMessageSize int
	onParseError   func(line []byte, err error)
}

// WithMaxMessageSize caps the size of one inbound line. Values <= 0 are
// ignored.
func WithMaxMessageSize(n int) ConnOption {
	return func(c *connConfig) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}

// WithParseErrorHandler observes inbound lines that are not valid JSON.
func WithParseErrorHandler(fn func(line []byte, err error)) ConnOption {
	return func(c *connConfig) { c.onParseError = fn }
}

// NewConn creates a JSON-RPC 2.0 connection reading from r and writing to w.
// Call ReadLoop to start processing inbound messages.
func NewConn(r io.Reader, w io.Writer, opts ...ConnOption) *Conn {
	cfg := connConfig{maxMessageSize: defaultMaxMessageSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	c := &Conn{
		enc:            enc,
		pending:        make(map[string]chan *rpcMessage),
		notifyHandlers: make(map[string]NotificationHandler),
		methodHandlers: make(map[string]MethodHandler),
		onParseError:   cfg.onParseError,
		reader:         bufio.NewReaderSize(r, min(64<<10, cfg.maxMessageSize)),
		maxSize:        cfg.maxMessageSize,
		done:           make(chan struct{}),
	}
	return c
}

// OnNotification registers a handler for notifications (no id).
// Must be called before ReadLoop starts.
func (c *Conn) OnNotification(method string, h NotificationHandler) {
	c.notifyHandlers[method] = h
}

// OnMethod registers a handler for requests (id present, expects a response).
// Must be called before ReadLoop starts.
func (c *Conn) OnMethod(method string, h MethodHandler) {
	c.methodHandlers[method] = h
}

// Call sends a request and blocks until the response arrives or ctx expires.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
	key := string(id)

	ch := make(chan *rpcMessage, 1)
	c.mu.Lock()
	c.pending[key] = ch
	c.mu.Unlock()

	req := &rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.send(req); err != nil {
		c.forget(key)
		return fmt.Errorf("acp: send %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		return handleCallResponse(resp, ok, method, result)
	case <-ctx.Done():
		c.forget(key)
		// Response may have arrived just before ctx cancellation.
		select {
		case resp, ok := <-ch:
			return handleCallResponse(resp, ok, method, result)
		default:
			return ctx.Err()
		}
	}
}

func (c *Conn) forget(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func handleCallResponse(resp *rpcMessage, ok bool, method string, result any) error {
	if !ok {
		return fmt.Errorf("acp: %s: connection closed", method)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("acp: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a notification (no id, no response expected).
func (c *Conn) Notify(method string, params any) error {
	return c.send(&rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

// ReadLoop reads and dispatches inbound messages until the reader closes,
// ctx ends, or a read fails. Handlers receive ctx. Lines that are not JSON
// or exceed the size limit are answered with a parse error and skipped.
// On exit, pending Call channels are closed. ReadLoop does not wait for
// in-flight request handlers; use Wait for that. Must be called exactly
// once.
func (c *Conn) ReadLoop(ctx context.Context) {
	defer close(c.done)
	defer c.drainPending()

	for {
		raw, err := c.readLine()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrMessageTooLarge) {
			if c.onParseError != nil {
				c.onParseError(nil, err)
			}
			c.sendError(nil, CodeParseError, fmt.Sprintf("parse error: message exceeds %d bytes", c.maxSize))
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.readErr.Store(err)
			}
			return
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			if c.onParseError != nil {
				c.onParseError(append([]byte(nil), line...), err)
			}
			c.sendError(nil, CodeParseError, "parse error: "+err.Error())
			continue
		}
		c.dispatch(ctx, &msg)
	}
}

// readLine returns the next inbound line, including its newline when
// present. A line longer than maxSize is consumed through its newline and
// reported as ErrMessageTooLarge. A final unterminated line is returned
// before io.EOF.
func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	tooLarge := false
	for {
		chunk, err := c.reader.ReadSlice('\n')
		if !tooLarge {
			line = append(line, chunk...)
			n := len(line)
			if n > 0 && line[n-1] == '\n' {
				n--
			}
			if n > c.maxSize {
				tooLarge, line = true, nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		switch {
		case tooLarge:
			return nil, ErrMessageTooLarge
		case err == nil:
			return line, nil
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

// Wait blocks until every request handler started by ReadLoop has
// returned and its response has been written.
func (c *Conn) Wait() { c.inflight.Wait() }

// Err returns the ReadLoop error after it exits. Returns nil if ReadLoop
// hasn't finished or exited cleanly (reader closed with no read error).
func (c *Conn) Err() error {
	if v := c.readErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Done returns a channel that is closed when ReadLoop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// --- Internal ---

// send serializes and writes a JSON-RPC message. Thread-safe.
func (c *Conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(v)
}

// dispatch routes an inbound message to the appropriate handler.
func (c *Conn) dispatch(ctx context.Context, msg *rpcMessage) {
	hasID := msg.hasID()
	switch {
	case hasID && msg.Method == "" && msg.Result == nil && msg.Error == nil:
		c.sendError(msg.ID, CodeInvalidRequest, "invalid request: missing method")
	case hasID && msg.Method == "":
		c.handleResponse(msg)
	case hasID:
		c.handleMethodCall(ctx, msg)
	case msg.Method != "":
		c.handleNotification(ctx, msg)
	}
}

// handleResponse delivers a response to the waiting Call goroutine.
func (c *Conn) handleResponse(msg *rpcMessage) {
	key := string(msg.ID)
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		return // a response is never answered, even an unsolicited one
	}
	ch <- msg
}

// handleMethodCall dispatches a request to its handler in a dedicated
// goroutine and writes the response.
func (c *Conn) handleMethodCall(ctx context.Context, msg *rpcMessage) {
	h, ok := c.methodHandlers[msg.Method]
	if !ok {
		c.sendError(msg.ID, CodeMethodNotFound, "method not found: "+msg.Method)
		return
	}

	id, params := msg.ID, msg.Params
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		result, err := h(ctx, params)
		if err != nil {
			code := CodeInternalError
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				code = rpcErr.Code
			}
			c.sendError(id, code, err.Error())
			return
		}
		c.sendResult(id, result)
	}()
}

// handleNotification dispatches a notification to a registered handler.
func (c *Conn) handleNotification(ctx context.Context, msg *rpcMessage) {
	h, ok := c.notifyHandlers[msg.Method]
	if !ok {
		return // unknown notification
	}
	h(ctx, msg.Params)
}

// sendResult sends a success response. Send errors are ignored: the
// connection may already be closing.
func (c *Conn) sendResult(id json.RawMessage, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		c.sendError(id, CodeInternalError, "marshal result: "+err.Error())
		return
	}
	_ = c.send(&rpcResponse{JSONRPC: "2.0", ID: id, Result: data})
}

// sendError sends an error response. A nil id is written as JSON null.
func (c *Conn) sendError(id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := &rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: errfmt.Truncate(message)},
	}
	_ = c.send(resp) // best-effort
}

// drainPending closes all pending Call channels so blocked callers unblock.
func (c *Conn) drainPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// --- Wire types ---

// rpcRequest is an outbound request or notification.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
}

// rpcMessage is a generic inbound message (request, response, or
// notification). IDs are kept raw so numeric and string ids round-trip
// unchanged.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// hasID reports whether the message carries a non-null id.
func (m *rpcMessage) hasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// rpcResponse is an outbound response. ID is always present, possibly null.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is a JSON-RPC error returned by Call, or returned by a
// MethodHandler to select the response code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
