package core

import (
	"encoding/json"
	"time"

	"github.com/roniherschmann/linkpulse/internal/store"
)

// snapshot is the cached form of a link. Every cache write uses it.
type snapshot struct {
	Alias     string    `json:"alias"`
	Target    string    `json:"redirectUrl"`
	Topic     string    `json:"topic,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func encodeSnapshot(l store.Link) string {
	b, _ := json.Marshal(snapshot{
		Alias:     l.Alias,
		Target:    l.Target,
		Topic:     l.Topic,
		Owner:     l.Owner,
		CreatedAt: l.CreatedAt,
	})
	return string(b)
}

// decodeTarget extracts the target URL from a cached value.
// Values that are not JSON are legacy entries holding the bare target URL.
// ok is false when the value is JSON without a target, which callers treat as a miss.
func decodeTarget(raw string) (target string, ok bool) {
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return raw, raw != ""
	}
	return s.Target, s.Target != ""
}
