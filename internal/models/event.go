package models

import "time"

// LifecycleEvent is the payload fanned out to SSE subscribers whenever a
// record transition succeeds.
type LifecycleEvent struct {
	Action    string        `json:"action"`
	Record    RecordSummary `json:"record"`
	Timestamp time.Time     `json:"timestamp"`
}
