// Package dispatch handles out-of-process agent dispatch: the typed request
// to the control plane that drops a named worker into a live room, and the
// metadata string the two workers use to pass session context to each other.
package dispatch

import (
	"sort"
	"strings"
)

// Recognized metadata keys. Unknown keys are preserved by the parser so the
// format can grow without breaking older workers.
const (
	KeySession           = "session"
	KeyQuestion          = "question"
	KeyReturnFromEnglish = "return_from_english"
	KeySubject           = "subject"
)

// Metadata is the context passed between workers on dispatch. The wire format
// is "k1:v1|k2:v2|..."; keys and values must not contain ':' or '|'.
type Metadata map[string]string

// ParseMetadata decodes a dispatch metadata string. It is tolerant: segments
// without a ':' are skipped, missing keys read as empty, unknown keys are
// kept.
func ParseMetadata(raw string) Metadata {
	md := Metadata{}
	for _, part := range strings.Split(raw, "|") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, ":")
		if !ok || k == "" {
			continue
		}
		md[k] = v
	}
	return md
}

// Format encodes the metadata in the wire format. Keys are sorted so the
// output is deterministic.
func (m Metadata) Format() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+m[k])
	}
	return strings.Join(parts, "|")
}

// SessionID returns the session id carried by the metadata, preferring an
// explicit session key over a return-from-english marker.
func (m Metadata) SessionID() string {
	if id := m[KeySession]; id != "" {
		return id
	}
	return m[KeyReturnFromEnglish]
}

// IsReturnFromEnglish reports whether this dispatch hands control back from
// the realtime english worker.
func (m Metadata) IsReturnFromEnglish() bool {
	return m[KeyReturnFromEnglish] != ""
}
