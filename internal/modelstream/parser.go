package modelstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrStreamIdle is the terminal error produced when no event arrives within
// the configured idle timeout (spec §4.D: "terminates the stream with
// 'stream idle'").
var ErrStreamIdle = errors.New("stream idle")

// DefaultTagSpecs are the out-of-band blocks recognized by the tagged-line
// parser (spec §4.D.1), e.g. <proposed_plan>...</proposed_plan>.
var DefaultTagSpecs = []TagSpec{
	{Open: "<proposed_plan>", Close: "</proposed_plan>", Tag: "proposed_plan"},
}

// eventSource is anything that can hand the parser one decoded frame at a
// time, blocking until it arrives. SSEReader (text/event-stream) and
// WSReader (websocket) both implement it, so Parser is transport-agnostic.
type eventSource interface {
	Next() (SSEEvent, error)
}

// Parser turns a raw event stream into the typed ResponseEvent sequence
// described by spec §4.D: UTF-8 reassembly, then tag-line splitting of
// textual deltas, then idle-timeout enforcement. One Parser serves exactly
// one turn's model stream and is not reused across turns.
type Parser struct {
	sse       eventSource
	utf8      UTF8Buffer
	tags      *TaggedLineParser
	idle      time.Duration
	completed bool
}

// NewParser wraps an event source (an *SSEReader or *WSReader). idleTimeout
// <= 0 disables the idle watchdog.
func NewParser(sse eventSource, idleTimeout time.Duration, tagSpecs []TagSpec) *Parser {
	if tagSpecs == nil {
		tagSpecs = DefaultTagSpecs
	}
	return &Parser{
		sse:  sse,
		tags: NewTaggedLineParser(tagSpecs),
		idle: idleTimeout,
	}
}

// Events returns a channel of ResponseEvent, closed when the stream
// completes, errors, or ctx is cancelled. The final event on any
// non-graceful exit is EventStreamError.
func (p *Parser) Events(ctx context.Context) <-chan ResponseEvent {
	out := make(chan ResponseEvent, 64)
	go p.run(ctx, out)
	return out
}

func (p *Parser) run(ctx context.Context, out chan<- ResponseEvent) {
	defer close(out)

	type frame struct {
		ev  SSEEvent
		err error
	}
	frames := make(chan frame, 1)

	readNext := func() {
		ev, err := p.sse.Next()
		frames <- frame{ev, err}
	}
	go readNext()

	for {
		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if p.idle > 0 {
			timer = time.NewTimer(p.idle)
			timeoutCh = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: ctx.Err()})
			return

		case <-timeoutCh:
			emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: ErrStreamIdle})
			return

		case f := <-frames:
			if timer != nil {
				timer.Stop()
			}
			if f.err != nil {
				if errors.Is(f.err, ErrStreamClosed) {
					p.flushTags(ctx, out)
					emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: f.err})
					return
				}
				emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: f.err})
				return
			}

			done := p.handleEvent(ctx, out, f.ev)
			if done {
				return
			}
			go readNext()
		}
	}
}

func (p *Parser) handleEvent(ctx context.Context, out chan<- ResponseEvent, sseEv SSEEvent) bool {
	var raw rawServerEvent
	if err := json.Unmarshal(sseEv.Data, &raw); err != nil {
		emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: fmt.Errorf("modelstream: decode event: %w", err)})
		return true
	}

	switch raw.Type {
	case rawEventTextDelta:
		text, err := p.utf8.PushBytes([]byte(raw.Delta))
		if err != nil {
			emit(ctx, out, ResponseEvent{Kind: EventStreamError, Err: err})
			return true
		}
		if text == "" {
			return false
		}
		for _, seg := range p.tags.Parse(text) {
			emit(ctx, out, segmentToEvent(seg))
		}
		return false

	case rawEventItem:
		emit(ctx, out, ResponseEvent{Kind: EventItem, ItemKind: raw.ItemKind, ItemData: raw.Item})
		return false

	case rawEventCompleted:
		p.flushTags(ctx, out)
		completedEv := ResponseEvent{Kind: EventCompleted}
		if raw.Response != nil {
			completedEv.ResponseID = raw.Response.ID
			completedEv.Usage = ResponseUsage{
				PromptTokens:     raw.Response.Usage.InputTokens,
				CompletionTokens: raw.Response.Usage.OutputTokens,
				TotalTokens:      raw.Response.Usage.TotalTokens,
				CachedTokens:     raw.Response.Usage.InputTokensDetails.CachedTokens,
			}
		}
		emit(ctx, out, completedEv)
		return true

	default:
		return false
	}
}

func (p *Parser) flushTags(ctx context.Context, out chan<- ResponseEvent) {
	if text, err := p.utf8.Finish(); err == nil && text != "" {
		for _, seg := range p.tags.Parse(text) {
			emit(ctx, out, segmentToEvent(seg))
		}
	}
	for _, seg := range p.tags.Finish() {
		emit(ctx, out, segmentToEvent(seg))
	}
}

func segmentToEvent(seg TaggedLineSegment) ResponseEvent {
	switch seg.Kind {
	case SegTagStart:
		return ResponseEvent{Kind: EventTagStart, Tag: seg.Tag}
	case SegTagDelta:
		return ResponseEvent{Kind: EventTagDelta, Tag: seg.Tag, Text: seg.Text}
	case SegTagEnd:
		return ResponseEvent{Kind: EventTagEnd, Tag: seg.Tag}
	default:
		return ResponseEvent{Kind: EventTextDelta, Text: seg.Text}
	}
}

func emit(ctx context.Context, out chan<- ResponseEvent, ev ResponseEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
