package rpc

import (
	"context"
	"encoding/json"

	"github.com/codex-agent/agentcore/internal/session"
	"github.com/codex-agent/agentcore/internal/workflow"
)

// RegisterSessionMethods binds the thread.* method family onto p, mirroring
// cmd/client's start/send/history/interrupt/end verbs but routed through
// internal/session.Service instead of a direct Temporal client dial — the
// surface a stdio-framed caller (an IDE extension, a TUI) drives a thread
// through.
func RegisterSessionMethods(p *Processor, svc *session.Service) {
	p.Register("thread.send", handleUserTurn(svc))
	p.Register("thread.interrupt", handleInterrupt(svc))
	p.Register("thread.exec_approval", handleExecApproval(svc))
	p.Register("thread.escalation_response", handleEscalationResponse(svc))
	p.Register("thread.user_input_answer", handleUserInputAnswer(svc))
	p.Register("thread.end", handleShutdown(svc))
	p.Register("thread.history", handleHistory(svc))
	p.Register("thread.status", handleTurnStatus(svc))
	p.Register("thread.subscribe", handleSubscribe(svc, p))
}

type threadSubscribeAck struct {
	Subscribed bool `json:"subscribed"`
}

// handleSubscribe starts forwarding svc's Event stream for the requested
// thread as "thread.event" notifications, until ctx is canceled (process
// shutdown) or the caller's own thread.end has torn the thread down. The
// request itself returns immediately; events arrive out-of-band.
func handleSubscribe(svc *session.Service, p *Processor) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadIDParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.subscribe: " + err.Error()}
		}

		ch, cancel := svc.Subscribe(req.ThreadID)
		go func() {
			defer cancel()
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return
					}
					_ = p.Notify("thread.event", ev)
					if ev.Completed {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		return threadSubscribeAck{Subscribed: true}, nil
	}
}

type threadSendParams struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

func handleUserTurn(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadSendParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.send: " + err.Error()}
		}
		if req.ThreadID == "" {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.send: thread_id is required"}
		}
		accepted, err := svc.UserTurn(ctx, req.ThreadID, req.Content)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return accepted, nil
	}
}

type threadIDParams struct {
	ThreadID string `json:"thread_id"`
}

func handleInterrupt(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadIDParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.interrupt: " + err.Error()}
		}
		resp, err := svc.Interrupt(ctx, req.ThreadID)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return resp, nil
	}
}

type threadExecApprovalParams struct {
	ThreadID string                    `json:"thread_id"`
	Response workflow.ApprovalResponse `json:"response"`
}

func handleExecApproval(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadExecApprovalParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.exec_approval: " + err.Error()}
		}
		ack, err := svc.ExecApproval(ctx, req.ThreadID, req.Response)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return ack, nil
	}
}

type threadEscalationResponseParams struct {
	ThreadID string                      `json:"thread_id"`
	Response workflow.EscalationResponse `json:"response"`
}

func handleEscalationResponse(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadEscalationResponseParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.escalation_response: " + err.Error()}
		}
		ack, err := svc.EscalationResponse(ctx, req.ThreadID, req.Response)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return ack, nil
	}
}

type threadUserInputAnswerParams struct {
	ThreadID string                             `json:"thread_id"`
	Response workflow.UserInputQuestionResponse `json:"response"`
}

func handleUserInputAnswer(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadUserInputAnswerParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.user_input_answer: " + err.Error()}
		}
		ack, err := svc.UserInputAnswer(ctx, req.ThreadID, req.Response)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return ack, nil
	}
}

type threadEndParams struct {
	ThreadID string `json:"thread_id"`
	Reason   string `json:"reason,omitempty"`
}

func handleShutdown(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadEndParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.end: " + err.Error()}
		}
		resp, err := svc.Shutdown(ctx, req.ThreadID, req.Reason)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return resp, nil
	}
}

func handleHistory(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadIDParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.history: " + err.Error()}
		}
		items, err := svc.History(ctx, req.ThreadID)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return items, nil
	}
}

func handleTurnStatus(svc *session.Service) Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
		var req threadIDParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: "thread.status: " + err.Error()}
		}
		status, err := svc.TurnStatus(ctx, req.ThreadID)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return status, nil
	}
}
