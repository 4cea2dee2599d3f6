package models

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Instant is a wall-clock timestamp persisted as unix milliseconds. The zero value
// means "not set". Decoding never fails: unreadable input decodes as zero, so a corrupted
// session start can only ever cost the learner time, never fabricate it.
type Instant int64

// InstantOf converts t to an Instant.
func InstantOf(t time.Time) Instant {
	ms := t.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return Instant(ms)
}

// ParseInstant reads a decimal millisecond value, returning zero for anything unusable.
func ParseInstant(s string) Instant {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return 0
	}
	return Instant(ms)
}

func (i Instant) IsZero() bool { return i <= 0 }

// Time returns the instant as a time.Time, or the zero time when unset.
func (i Instant) Time() time.Time {
	if i.IsZero() {
		return time.Time{}
	}
	return time.UnixMilli(int64(i))
}

// SecondsUntil returns whole seconds from i to now, floored at zero. An unset or future
// instant yields zero.
func (i Instant) SecondsUntil(now time.Time) int {
	if i.IsZero() {
		return 0
	}
	d := now.Sub(i.Time())
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(i), 10)), nil
}

func (i *Instant) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	*i = ParseInstant(string(b))
	return nil
}
