package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// maxLineSize bounds a single JSON-RPC line, matching the 1MB scanner buffer
// haasonsaas-nexus's ollama provider uses for its own line-delimited stream.
const maxLineSize = 1024 * 1024

// Handler serves one RPC method. It returns either a JSON-marshalable result
// or a non-nil Error; returning both is a programming error and the Error
// wins.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, *Error)

// Processor is the single-goroutine stdio dispatcher described in spec §5:
// one task reads stdin in receipt order and dispatches by method name;
// every request and notification is handled on its own goroutine so the
// read loop is never blocked, while writes to stdout are serialized
// behind a mutex so two replies never interleave mid-line.
type Processor struct {
	mu       sync.Mutex // guards out
	out      io.Writer
	logger   *slog.Logger
	handlers map[string]Handler

	wg sync.WaitGroup
}

// NewProcessor creates a Processor that writes responses/notifications to
// out. Register methods with Register before calling Run.
func NewProcessor(out io.Writer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		out:      out,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a method name to its handler. Not safe to call concurrently
// with Run.
func (p *Processor) Register(method string, h Handler) {
	p.handlers[method] = h
}

// Run reads newline-delimited JSON-RPC messages from in until EOF or ctx is
// canceled, dispatching each to its registered handler. It returns once the
// input is exhausted and every in-flight handler goroutine has finished.
func (p *Processor) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer on the next Scan; copy before handing the
		// line off to a goroutine.
		msg := append([]byte(nil), line...)
		p.dispatch(ctx, msg)
	}

	p.wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("rpc: reading stdin: %w", err)
	}
	return nil
}

// dispatch decodes one line and routes it to Request or Notification
// handling. Decoding happens on the read-loop goroutine (so a malformed line
// is reported in receipt order); the handler itself runs on its own
// goroutine so one slow request never blocks the next line's dispatch.
func (p *Processor) dispatch(ctx context.Context, line []byte) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		p.writeError(nil, &Error{Code: CodeParseError, Message: "invalid JSON: " + err.Error()})
		return
	}

	if !env.isRequest() {
		var n Notification
		if err := json.Unmarshal(line, &n); err != nil {
			p.logger.Warn("rpc: malformed notification", "error", err)
			return
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.handle(ctx, n.Method, n.Params, nil)
		}()
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		p.writeError(nil, &Error{Code: CodeParseError, Message: "invalid JSON: " + err.Error()})
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.handle(ctx, req.Method, req.Params, req.ID)
	}()
}

func (p *Processor) handle(ctx context.Context, method string, params json.RawMessage, id json.RawMessage) {
	h, ok := p.handlers[method]
	if !ok {
		if id != nil {
			p.writeError(id, &Error{Code: CodeMethodNotFound, Message: "method not found: " + method})
		}
		return
	}

	result, rpcErr := h(ctx, params)
	if id == nil {
		// Notification: the caller never sees the outcome beyond log lines.
		if rpcErr != nil {
			p.logger.Warn("rpc: notification handler failed", "method", method, "error", rpcErr.Message)
		}
		return
	}

	if rpcErr != nil {
		p.writeError(id, rpcErr)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		p.writeError(id, &Error{Code: CodeInternalError, Message: "marshaling result: " + err.Error()})
		return
	}
	p.write(Response{JSONRPC: ProtocolVersion, ID: id, Result: resultJSON})
}

func (p *Processor) writeError(id json.RawMessage, rpcErr *Error) {
	p.write(Response{JSONRPC: ProtocolVersion, ID: id, Error: rpcErr})
}

// Notify writes a server-initiated notification (no id, no reply expected) —
// used by callers that bridge internal/session.Event into the wire protocol.
func (p *Processor) Notify(method string, params interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc: marshaling notification params: %w", err)
	}
	return p.write(Notification{JSONRPC: ProtocolVersion, Method: method, Params: paramsJSON})
}

func (p *Processor) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rpc: marshaling message: %w", err)
	}
	data = append(data, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.out.Write(data)
	return err
}
