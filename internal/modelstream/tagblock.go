// Package modelstream turns a byte stream of typed server events into a
// typed, in-order ResponseEvent sequence (spec §4.D), including the
// line-aware tagged-block parser used to split "out of band" blocks like
// <proposed_plan>...</proposed_plan> out of normal text deltas (§4.D.1).
//
// The teacher (internal/llm) only calls non-streaming Messages.New/chat
// completion APIs, so this package has no direct teacher analogue; it is
// grounded on codex-rs/utils/stream-parser/src/utf8_stream.rs and
// codex-rs/tagged_block_parser.rs (original_source) and on
// goadesign-goa-ai/runtime/mcp/ssecaller.go's line-oriented SSE reader.
package modelstream

import "strings"

// TagSpec names one tagged block's opener/closer line pair.
type TagSpec struct {
	Open  string
	Close string
	Tag   string
}

// SegmentKind discriminates TaggedLineSegment variants.
type SegmentKind int

const (
	SegNormal SegmentKind = iota
	SegTagStart
	SegTagDelta
	SegTagEnd
)

// TaggedLineSegment is one emitted unit from TaggedLineParser.
type TaggedLineSegment struct {
	Kind SegmentKind
	Tag  string
	Text string
}

// TaggedLineParser splits a streamed delta into normal text vs. tagged-block
// text. Tags must occupy an entire line (trailing whitespace tolerated).
// While reading a line, characters are buffered until either a newline is
// seen or the buffered prefix can no longer match any tag's opener/closer,
// at which point the buffer is emitted as normal text. An unterminated open
// tag at EOF auto-closes. Adjacent same-kind segments coalesce.
//
// Maps to: codex-rs/tagged_block_parser.rs TaggedLineParser (original_source).
type TaggedLineParser struct {
	specs     []TagSpec
	activeTag string
	hasActive bool
	detectTag bool
	lineBuf   strings.Builder
}

// NewTaggedLineParser constructs a parser for the given tag specs.
func NewTaggedLineParser(specs []TagSpec) *TaggedLineParser {
	return &TaggedLineParser{specs: specs, detectTag: true}
}

// Parse feeds a streamed delta and returns the resulting segments.
func (p *TaggedLineParser) Parse(delta string) []TaggedLineSegment {
	var segments []TaggedLineSegment
	var run strings.Builder

	flushRun := func() {
		if run.Len() > 0 {
			p.pushText(run.String(), &segments)
			run.Reset()
		}
	}

	for _, ch := range delta {
		if p.detectTag {
			flushRun()
			p.lineBuf.WriteRune(ch)
			if ch == '\n' {
				p.finishLine(&segments)
				continue
			}
			slug := strings.TrimLeft(p.lineBuf.String(), " \t")
			if slug == "" || p.isTagPrefix(slug) {
				continue
			}
			buffered := p.lineBuf.String()
			p.lineBuf.Reset()
			p.detectTag = false
			p.pushText(buffered, &segments)
			continue
		}

		run.WriteRune(ch)
		if ch == '\n' {
			p.pushText(run.String(), &segments)
			run.Reset()
			p.detectTag = true
		}
	}

	flushRun()
	return segments
}

// Finish flushes any buffered line and auto-closes an unterminated tag.
func (p *TaggedLineParser) Finish() []TaggedLineSegment {
	var segments []TaggedLineSegment

	if p.lineBuf.Len() > 0 {
		buffered := p.lineBuf.String()
		p.lineBuf.Reset()
		withoutNewline := strings.TrimSuffix(buffered, "\n")
		slug := strings.TrimSpace(withoutNewline)

		if tag, ok := p.matchOpen(slug); ok && !p.hasActive {
			pushSegment(&segments, TaggedLineSegment{Kind: SegTagStart, Tag: tag})
			p.activeTag, p.hasActive = tag, true
		} else if tag, ok := p.matchClose(slug); ok && p.hasActive && p.activeTag == tag {
			pushSegment(&segments, TaggedLineSegment{Kind: SegTagEnd, Tag: tag})
			p.hasActive = false
		} else {
			p.pushText(buffered, &segments)
		}
	}

	if p.hasActive {
		pushSegment(&segments, TaggedLineSegment{Kind: SegTagEnd, Tag: p.activeTag})
		p.hasActive = false
	}
	p.detectTag = true
	return segments
}

func (p *TaggedLineParser) finishLine(segments *[]TaggedLineSegment) {
	line := p.lineBuf.String()
	p.lineBuf.Reset()
	withoutNewline := strings.TrimSuffix(line, "\n")
	slug := strings.TrimSpace(withoutNewline)

	if tag, ok := p.matchOpen(slug); ok && !p.hasActive {
		pushSegment(segments, TaggedLineSegment{Kind: SegTagStart, Tag: tag})
		p.activeTag, p.hasActive = tag, true
		p.detectTag = true
		return
	}

	if tag, ok := p.matchClose(slug); ok && p.hasActive && p.activeTag == tag {
		pushSegment(segments, TaggedLineSegment{Kind: SegTagEnd, Tag: tag})
		p.hasActive = false
		p.detectTag = true
		return
	}

	p.detectTag = true
	p.pushText(line, segments)
}

func (p *TaggedLineParser) pushText(text string, segments *[]TaggedLineSegment) {
	if p.hasActive {
		pushSegment(segments, TaggedLineSegment{Kind: SegTagDelta, Tag: p.activeTag, Text: text})
	} else {
		pushSegment(segments, TaggedLineSegment{Kind: SegNormal, Text: text})
	}
}

func (p *TaggedLineParser) isTagPrefix(slug string) bool {
	slug = strings.TrimRight(slug, " \t")
	for _, spec := range p.specs {
		if strings.HasPrefix(spec.Open, slug) || strings.HasPrefix(spec.Close, slug) {
			return true
		}
	}
	return false
}

func (p *TaggedLineParser) matchOpen(slug string) (string, bool) {
	for _, spec := range p.specs {
		if spec.Open == slug {
			return spec.Tag, true
		}
	}
	return "", false
}

func (p *TaggedLineParser) matchClose(slug string) (string, bool) {
	for _, spec := range p.specs {
		if spec.Close == slug {
			return spec.Tag, true
		}
	}
	return "", false
}

func pushSegment(segments *[]TaggedLineSegment, seg TaggedLineSegment) {
	switch seg.Kind {
	case SegNormal:
		if seg.Text == "" {
			return
		}
		if n := len(*segments); n > 0 && (*segments)[n-1].Kind == SegNormal {
			(*segments)[n-1].Text += seg.Text
			return
		}
		*segments = append(*segments, seg)
	case SegTagDelta:
		if seg.Text == "" {
			return
		}
		if n := len(*segments); n > 0 && (*segments)[n-1].Kind == SegTagDelta && (*segments)[n-1].Tag == seg.Tag {
			(*segments)[n-1].Text += seg.Text
			return
		}
		*segments = append(*segments, seg)
	default:
		*segments = append(*segments, seg)
	}
}
