package firestore

import (
	"strings"
	"sync"
	"time"
)

// docResolver tracks which document id holds a singleton configuration record.
// It prefers the pinned id, falls back to the first document discovered in the
// collection, and pins the id again when nothing exists so the next save creates the
// expected record. Instances are passed explicitly so tests stay independent.
type docResolver struct {
	pinned string

	mu         sync.Mutex
	discovered string
}

func newDocResolver(pinned string) *docResolver {
	return &docResolver{pinned: strings.TrimSpace(pinned)}
}

// target returns the document id subsequent saves should write to.
func (r *docResolver) target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discovered != "" {
		return r.discovered
	}
	return r.pinned
}

// remember records the document id a fetch resolved to.
func (r *docResolver) remember(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	r.mu.Lock()
	r.discovered = id
	r.mu.Unlock()
}

// Legacy records were written by clients that stored numbers and timestamps in a few
// different shapes; these coercions keep old documents loading.

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func asBool(value any) bool {
	b, _ := value.(bool)
	return b
}

func asInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func asStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s := asString(entry); s != "" {
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
