// Package runid computes run identifiers for audit snapshots. An identifier
// captures where and when a run happened plus a digest of its raw events, so
// two summarize invocations over the same input on the same host at the same
// instant agree on the identifier.
package runid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// RunIdentity describes one audit run.
type RunIdentity struct {
	RunID        string `json:"runId"`        // host-timestamp-digest identifier
	Host         string `json:"host"`         // Hostname the events came from
	StartedAtMS  int64  `json:"startedAtMs"`  // When summarization ran, UTC millis
	EventsDigest string `json:"eventsDigest"` // sha256 hex of the raw event bytes
}

// Compute builds the identity for a run. The identifier is
// "<host>-<UTC timestamp>-<digest prefix>"; empty hosts fall back to "local"
// and hosts are lowercased with path separators stripped.
func Compute(host string, startedAt time.Time, eventsDigest string) RunIdentity {
	h := sanitizeHost(host)
	ts := startedAt.UTC()
	short := eventsDigest
	if len(short) > 12 {
		short = short[:12]
	}
	return RunIdentity{
		RunID:        fmt.Sprintf("%s-%s-%s", h, ts.Format("20060102T150405Z"), short),
		Host:         h,
		StartedAtMS:  ts.UnixMilli(),
		EventsDigest: eventsDigest,
	}
}

// New builds the identity for a run happening now on this host.
func New(eventsDigest string) RunIdentity {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	return Compute(host, time.Now(), eventsDigest)
}

// DigestEvents returns the sha256 hex digest of raw event bytes.
func DigestEvents(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sanitizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	// Some platforms report fully qualified names; keep the first label.
	if idx := strings.Index(host, "."); idx >= 0 {
		host = host[:idx]
	}
	host = strings.ReplaceAll(host, "/", "_")
	host = strings.ReplaceAll(host, "\\", "_")
	if host == "" {
		return "local"
	}
	return host
}
