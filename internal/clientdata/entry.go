package clientdata

import (
	"encoding/json"
	"time"
)

// Entry is the persisted form of a cached value: {data, timestamp, ttl}.
// Timestamp and TTL are in milliseconds.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

// newEntry stores ttl in whole milliseconds, rounding sub-millisecond
// positive TTLs up to 1ms
func newEntry(data json.RawMessage, now time.Time, ttl time.Duration) Entry {
	ms := ttl.Milliseconds()
	if ms == 0 && ttl > 0 {
		ms = 1
	}
	return Entry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		TTL:       ms,
	}
}

// Fresh reports whether now - timestamp < ttl
func (e Entry) Fresh(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp < e.TTL
}

// ExpiresAt returns the instant the entry stops being fresh
func (e Entry) ExpiresAt() time.Time {
	return time.UnixMilli(e.Timestamp + e.TTL)
}

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
