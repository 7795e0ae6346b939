package models

// CanonicalRequest is the normalized form of an inbound event.
type CanonicalRequest struct {
	Query        map[string]string
	Body         map[string]any
	RawEventKeys []string
}

// Param returns the first non-empty query value among keys.
func (r *CanonicalRequest) Param(keys ...string) string {
	for _, k := range keys {
		if v := r.Query[k]; v != "" {
			return v
		}
	}
	return ""
}
