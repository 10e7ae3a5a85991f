package entities

import "time"

type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
	StatusSkipped JobStatus = "skipped"
)

// Reason written alongside a terminal "error" status so callers can tell
// a hard worker refusal apart from an ordinary upstream failure.
const (
	ErrorReasonUpstream = "upstream"
	ErrorReasonTooLarge = "too_large"
)

// CompressionJob is the persisted lifecycle record for one stored object.
// Keyed by the webhook record id when the event carries one, otherwise by
// "bucket/name". Last write wins; no history is kept.
type CompressionJob struct {
	ObjectID             string     `json:"object_id"`
	Status               JobStatus  `json:"status"`
	ErrorReason          *string    `json:"error_reason,omitempty"`
	SkipReason           *string    `json:"skip_reason,omitempty"`
	ProcessingStartedAt  *time.Time `json:"processing_started_at,omitempty"`
	ProcessingFinishedAt *time.Time `json:"processing_finished_at,omitempty"`
	CompressedSizeBytes  *int64     `json:"compressed_size_bytes,omitempty"`
	CompressionRatio     *float64   `json:"compression_ratio,omitempty"`
	HitTarget            *bool      `json:"hit_target,omitempty"`
	Overwrote            *bool      `json:"overwrote,omitempty"`
	PassUsed             *int       `json:"pass_used,omitempty"`
	UpdatedTimestamp     time.Time  `json:"updated_timestamp"`
}

// Locator identifies one stored object.
type Locator struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func (l Locator) String() string { return l.Bucket + "/" + l.Name }
