package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ThreadId is a time-ordered 128-bit identifier for a conversation thread.
//
// Maps to: codex-rs/protocol ThreadId (UUIDv7-backed).
type ThreadId uuid.UUID

// NewThreadId generates a new time-ordered ThreadId.
func NewThreadId() ThreadId {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/random source is broken;
		// fall back to a random v4 rather than panic.
		id = uuid.New()
	}
	return ThreadId(id)
}

// ParseThreadId parses a canonical UUID string into a ThreadId.
func ParseThreadId(s string) (ThreadId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ThreadId{}, fmt.Errorf("invalid thread id %q: %w", s, err)
	}
	return ThreadId(id), nil
}

func (t ThreadId) String() string {
	return uuid.UUID(t).String()
}

func (t ThreadId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *ThreadId) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = ThreadId{}
		return nil
	}
	id, err := ParseThreadId(s)
	if err != nil {
		return err
	}
	*t = id
	return nil
}

// Time extracts the embedded creation timestamp from a UUIDv7 ThreadId.
func (t ThreadId) Time() time.Time {
	u := uuid.UUID(t)
	if u.Version() != 7 {
		return time.Time{}
	}
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 | int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms).UTC()
}

// NewCallID generates a short unique identifier for a function/tool call.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
