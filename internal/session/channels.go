package session

// Channel capacities for the service's subscriber fan-out.
//
// RealtimeTextChannelCapacity and RealtimeResponseChannelCapacity are sized
// for a burst of streamed token deltas arriving between two polls of
// get_state_update: ExecuteLLMCall (internal/activities/llm.go) now heartbeats
// every modelstream.ResponseEvent it decodes, but Service does not yet poll
// DescribeWorkflowExecution for those heartbeats, so nothing publishes on
// these two channels today. Once that bridge exists it should use a
// non-blocking send sized against these capacities, since a slow subscriber
// should drop old streamed deltas rather than stall the poll loop; every
// other channel here sends with a blocking, context-bound write so a slow
// subscriber simply falls behind instead of losing events.
const (
	RPCChannelCapacity              = 128
	EventChannelCapacity            = 256
	RealtimeTextChannelCapacity     = 64
	RealtimeResponseChannelCapacity = 1600
)
