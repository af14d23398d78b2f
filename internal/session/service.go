// Package session implements the process-level service that sits above
// HarnessWorkflow/AgenticWorkflow and exposes the turn-execution surface as
// plain Go method calls instead of raw Temporal signals/updates/queries.
//
// Maps to: spec §4.G Session Service, grounded on the
// handleStartSession/query-and-update-handler pattern in
// internal/workflow/harness.go and internal/workflow/handlers.go, and on
// cmd/client/main.go's existing use of the Temporal client SDK to drive
// those same handlers from outside the workflow. internal/rpc is the layer
// that turns this service's methods into a stdio-framed wire protocol;
// cmd/client talks to Temporal directly and has no equivalent need for it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/codex-agent/agentcore/internal/history"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/rollout"
	"github.com/codex-agent/agentcore/internal/workflow"
)

// temporalClient is the subset of client.Client this service depends on.
// A real Temporal client.Client satisfies it automatically; tests supply a
// small fake instead of mocking the SDK's much larger interface.
type temporalClient interface {
	UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Event is one unit of turn progress delivered to a thread's subscribers:
// new history items plus the current turn status, mirroring the
// get_state_update Update's response shape.
type Event struct {
	ThreadID  string
	TurnID    string
	Items     []models.ConversationItem
	Status    workflow.TurnStatus
	Compacted bool
	Completed bool
}

// thread tracks the per-workflow coordination state the service needs: the
// active-turn guard, the subscriber fan-out, and the rollout writer that
// persists every item emitted by a turn.
type thread struct {
	mu          sync.Mutex
	turnActive  bool
	subscribers map[int]chan Event
	nextSubID   int
	writer      *rollout.Writer
}

// Service is the single entry point a process (internal/rpc, a future
// HTTP surface) uses to drive threads. It owns the Temporal client
// connection and enforces one active turn per thread; everything else is a
// thin translation into the signal/update/query names HarnessWorkflow and
// AgenticWorkflow already register.
type Service struct {
	client    temporalClient
	codexHome string

	mu      sync.Mutex
	threads map[string]*thread
}

// NewService wraps an already-dialed Temporal client. codexHome is the root
// rollout files are written under (see internal/rollout.ThreadFilePath).
func NewService(c client.Client, codexHome string) *Service {
	return &Service{
		client:    c,
		codexHome: codexHome,
		threads:   make(map[string]*thread),
	}
}

func (s *Service) threadFor(threadID string) *thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		t = &thread{subscribers: make(map[int]chan Event)}
		s.threads[threadID] = t
	}
	return t
}

// Subscribe registers a new listener for a thread's events. The returned
// channel has capacity EventChannelCapacity; the caller must call the
// returned cancel function when done to avoid leaking the channel into the
// publish loop.
func (s *Service) Subscribe(threadID string) (<-chan Event, func()) {
	t := s.threadFor(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSubID
	t.nextSubID++
	ch := make(chan Event, EventChannelCapacity)
	t.subscribers[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existing, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publish fans an event out to every current subscriber of threadID. Sends
// block on the subscriber's channel (bounded at EventChannelCapacity) so a
// slow subscriber falls behind rather than silently drops a turn event;
// ctx cancellation unblocks a publish against a stalled subscriber.
func (s *Service) publish(ctx context.Context, threadID string, ev Event) {
	t := s.threadFor(threadID)
	t.mu.Lock()
	subs := make([]chan Event, 0, len(t.subscribers))
	for _, ch := range t.subscribers {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// beginTurn enforces one active turn per thread, per spec §4.G.
func (t *thread) beginTurn() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turnActive {
		return fmt.Errorf("session: a turn is already active on this thread")
	}
	t.turnActive = true
	return nil
}

func (t *thread) endTurn() {
	t.mu.Lock()
	t.turnActive = false
	t.mu.Unlock()
}

// ensureWriter lazily opens the thread's rollout file on first use. meta
// is only consulted the first time; once the file exists, later calls reuse
// the open writer regardless of what meta they're passed.
func (t *thread) ensureWriter(codexHome string, meta rollout.SessionMeta) (*rollout.Writer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer != nil {
		return t.writer, nil
	}
	w, err := rollout.NewWriter(codexHome, meta)
	if err != nil {
		return nil, err
	}
	t.writer = w
	return w, nil
}

// UserTurn submits a new user message to threadID's workflow, derives a new
// turn, and runs the turn scheduler to completion in the background: each
// newly observed item is persisted to the rollout and fanned out to
// subscribers via publish, until the turn (or the session) completes.
//
// UserTurn returns as soon as the Update is accepted by the workflow, not
// when the turn finishes; callers observe completion through Subscribe.
func (s *Service) UserTurn(ctx context.Context, threadID, content string) (workflow.UserInputAccepted, error) {
	t := s.threadFor(threadID)
	if err := t.beginTurn(); err != nil {
		return workflow.UserInputAccepted{}, err
	}

	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateUserInput,
		Args:         []interface{}{workflow.UserInput{Content: content}},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		t.endTurn()
		return workflow.UserInputAccepted{}, fmt.Errorf("session: submitting user turn: %w", err)
	}

	var accepted workflow.UserInputAccepted
	if err := handle.Get(ctx, &accepted); err != nil {
		t.endTurn()
		return workflow.UserInputAccepted{}, fmt.Errorf("session: user turn rejected: %w", err)
	}

	go s.runTurnToCompletion(threadID, t, accepted.TurnID)

	return accepted, nil
}

// runTurnToCompletion long-polls get_state_update until the turn's items
// stop changing and the workflow reports Completed, persisting every new
// item to the rollout and publishing an Event per poll response. It runs
// detached from the caller's request context since the turn may outlive it.
func (s *Service) runTurnToCompletion(threadID string, t *thread, turnID string) {
	defer t.endTurn()

	ctx := context.Background()
	req := workflow.StateUpdateRequest{}

	for {
		var resp workflow.StateUpdateResponse
		handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
			WorkflowID:   threadID,
			UpdateName:   workflow.UpdateGetStateUpdate,
			Args:         []interface{}{req},
			WaitForStage: client.WorkflowUpdateStageCompleted,
		})
		if err != nil {
			return
		}
		if err := handle.Get(ctx, &resp); err != nil {
			return
		}

		if len(resp.Items) > 0 {
			s.persist(threadID, t, resp.Items)
		}

		s.publish(ctx, threadID, Event{
			ThreadID:  threadID,
			TurnID:    turnID,
			Items:     resp.Items,
			Status:    resp.Status,
			Compacted: resp.Compacted,
			Completed: resp.Completed,
		})

		if resp.Completed {
			return
		}

		if n := len(resp.Items); n > 0 {
			req.SinceSeq += n
		}
		req.SincePhase = resp.Status.Phase
	}
}

func (s *Service) persist(threadID string, t *thread, items []models.ConversationItem) {
	w, err := t.ensureWriter(s.codexHome, rollout.SessionMeta{
		ID:        mustParseOrNewThreadID(threadID),
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	now := time.Now()
	for _, ri := range history.ToResponseItems(items) {
		_ = w.AppendItem(ri, now)
	}
}

// mustParseOrNewThreadID lets the rollout writer key its SessionMeta.ID off
// the workflow ID when that ID happens to be a valid ThreadId (the CLI-driven
// "codex-<uuid-prefix>" IDs from cmd/client are not) and falls back to a
// fresh ThreadId otherwise. The rollout file name is built from this field,
// so after a fallback the file carries the fresh id, and FindThreadPathByID
// given the workflow ID does not find it.
func mustParseOrNewThreadID(threadID string) models.ThreadId {
	if id, err := models.ParseThreadId(threadID); err == nil {
		return id
	}
	return models.NewThreadId()
}

// Interrupt aborts the in-flight turn on threadID.
func (s *Service) Interrupt(ctx context.Context, threadID string) (workflow.InterruptResponse, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateInterrupt,
		Args:         []interface{}{workflow.InterruptRequest{}},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.InterruptResponse{}, fmt.Errorf("session: sending interrupt: %w", err)
	}
	var resp workflow.InterruptResponse
	if err := handle.Get(ctx, &resp); err != nil {
		return workflow.InterruptResponse{}, fmt.Errorf("session: interrupt rejected: %w", err)
	}
	return resp, nil
}

// ExecApproval delivers the user's approve/deny decision for a pending tool
// call (either the initial-approval flow or an on-failure escalation,
// depending on which is actually pending — the workflow validates this).
func (s *Service) ExecApproval(ctx context.Context, threadID string, resp workflow.ApprovalResponse) (workflow.ApprovalResponseAck, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateApprovalResponse,
		Args:         []interface{}{resp},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.ApprovalResponseAck{}, fmt.Errorf("session: sending approval: %w", err)
	}
	var ack workflow.ApprovalResponseAck
	if err := handle.Get(ctx, &ack); err != nil {
		return workflow.ApprovalResponseAck{}, fmt.Errorf("session: approval rejected: %w", err)
	}
	return ack, nil
}

// EscalationResponse delivers the user's decision on an on-failure
// escalation (internal/sandboxpolicy's retry-after-escalation protocol).
func (s *Service) EscalationResponse(ctx context.Context, threadID string, resp workflow.EscalationResponse) (workflow.EscalationResponseAck, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateEscalationResponse,
		Args:         []interface{}{resp},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.EscalationResponseAck{}, fmt.Errorf("session: sending escalation response: %w", err)
	}
	var ack workflow.EscalationResponseAck
	if err := handle.Get(ctx, &ack); err != nil {
		return workflow.EscalationResponseAck{}, fmt.Errorf("session: escalation response rejected: %w", err)
	}
	return ack, nil
}

// UserInputAnswer delivers the user's answers to a pending request_user_input
// call.
func (s *Service) UserInputAnswer(ctx context.Context, threadID string, resp workflow.UserInputQuestionResponse) (workflow.UserInputQuestionResponseAck, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateUserInputQuestionResponse,
		Args:         []interface{}{resp},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.UserInputQuestionResponseAck{}, fmt.Errorf("session: sending user input answer: %w", err)
	}
	var ack workflow.UserInputQuestionResponseAck
	if err := handle.Get(ctx, &ack); err != nil {
		return workflow.UserInputQuestionResponseAck{}, fmt.Errorf("session: user input answer rejected: %w", err)
	}
	return ack, nil
}

// Shutdown requests threadID's workflow wind down.
func (s *Service) Shutdown(ctx context.Context, threadID, reason string) (workflow.ShutdownResponse, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   threadID,
		UpdateName:   workflow.UpdateShutdown,
		Args:         []interface{}{workflow.ShutdownRequest{Reason: reason}},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.ShutdownResponse{}, fmt.Errorf("session: sending shutdown: %w", err)
	}
	var resp workflow.ShutdownResponse
	if err := handle.Get(ctx, &resp); err != nil {
		return workflow.ShutdownResponse{}, fmt.Errorf("session: shutdown rejected: %w", err)
	}

	t := s.threadFor(threadID)
	t.mu.Lock()
	if t.writer != nil {
		_ = t.writer.Close()
		t.writer = nil
	}
	t.mu.Unlock()

	return resp, nil
}

// History queries the full conversation so far, bypassing any active turn.
func (s *Service) History(ctx context.Context, threadID string) ([]models.ConversationItem, error) {
	resp, err := s.client.QueryWorkflow(ctx, threadID, "", workflow.QueryGetConversationItems)
	if err != nil {
		return nil, fmt.Errorf("session: querying history: %w", err)
	}
	var items []models.ConversationItem
	if err := resp.Get(&items); err != nil {
		return nil, fmt.Errorf("session: decoding history: %w", err)
	}
	return items, nil
}

// TurnStatus queries the current turn phase and stats.
func (s *Service) TurnStatus(ctx context.Context, threadID string) (workflow.TurnStatus, error) {
	resp, err := s.client.QueryWorkflow(ctx, threadID, "", workflow.QueryGetTurnStatus)
	if err != nil {
		return workflow.TurnStatus{}, fmt.Errorf("session: querying turn status: %w", err)
	}
	var status workflow.TurnStatus
	if err := resp.Get(&status); err != nil {
		return workflow.TurnStatus{}, fmt.Errorf("session: decoding turn status: %w", err)
	}
	return status, nil
}

// ListHarnessSessions queries a running HarnessWorkflow for its session
// list (the CLI's session picker).
func (s *Service) ListHarnessSessions(ctx context.Context, harnessWorkflowID string) ([]workflow.SessionEntry, error) {
	resp, err := s.client.QueryWorkflow(ctx, harnessWorkflowID, "", workflow.QueryGetSessions)
	if err != nil {
		return nil, fmt.Errorf("session: querying sessions: %w", err)
	}
	var sessions []workflow.SessionEntry
	if err := resp.Get(&sessions); err != nil {
		return nil, fmt.Errorf("session: decoding sessions: %w", err)
	}
	return sessions, nil
}

// StartHarnessSession starts a new AgenticWorkflow child session under a
// running HarnessWorkflow, mirroring cmd/client's "start" flow but via the
// harness's UpdateStartSession handler instead of executing the workflow
// directly — the shape a multi-session CLI/IDE surface actually needs.
func (s *Service) StartHarnessSession(ctx context.Context, harnessWorkflowID string, req workflow.StartSessionRequest) (workflow.StartSessionResponse, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   harnessWorkflowID,
		UpdateName:   workflow.UpdateStartSession,
		Args:         []interface{}{req},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return workflow.StartSessionResponse{}, fmt.Errorf("session: starting harness session: %w", err)
	}
	var resp workflow.StartSessionResponse
	if err := handle.Get(ctx, &resp); err != nil {
		return workflow.StartSessionResponse{}, fmt.Errorf("session: start session rejected: %w", err)
	}
	return resp, nil
}
