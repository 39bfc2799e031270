package domain

import "time"

// QueryFeedback is the learning event emitted after a completed search when
// the caller opted into learning.
type QueryFeedback struct {
	RequestID   string        `json:"request_id"`
	QueryType   QueryType     `json:"query_type"`
	Complexity  Complexity    `json:"complexity"`
	ServiceType ServiceType   `json:"service_type"`
	ResultCount int           `json:"result_count"`
	Degraded    bool          `json:"degraded"`
	Elapsed     time.Duration `json:"-"`
	ElapsedMs   float64       `json:"elapsed_ms"`
	ObservedAt  time.Time     `json:"observed_at"`
}

// APIKeyPermissions is the permission set an opaque bearer key resolves to.
// The retrieval core consumes the resolved allow-list only; it never checks
// credentials itself.
type APIKeyPermissions struct {
	KeyID           string
	AllowedKBIDs    []string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// AllowedKBSet intersects the requested knowledge bases with the key's
// allow-list. An empty request means "everything the key can see".
func (p APIKeyPermissions) AllowedKBSet(requested []string) []string {
	if len(requested) == 0 {
		out := make([]string, len(p.AllowedKBIDs))
		copy(out, p.AllowedKBIDs)
		return out
	}
	allowed := make(map[string]struct{}, len(p.AllowedKBIDs))
	for _, id := range p.AllowedKBIDs {
		allowed[id] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
