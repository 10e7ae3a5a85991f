package use_case

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/Baltuneedu/pdf-compress-app/internal/config"
	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
	"github.com/Baltuneedu/pdf-compress-app/internal/gate"
	"github.com/Baltuneedu/pdf-compress-app/internal/locator"
)

type Tracker interface {
	MarkPending(ctx context.Context, objectID string) error
	MarkDone(ctx context.Context, objectID string, res entities.CompressionResult) error
	MarkError(ctx context.Context, objectID string, reason string) error
	MarkSkipped(ctx context.Context, objectID string, reason string) error
	Get(ctx context.Context, objectID string) (entities.CompressionJob, error)
}

type Dispatcher interface {
	Compress(ctx context.Context, loc entities.Locator, overwrite bool) (entities.CompressionResult, error)
}

type BlobStorage interface {
	Download(ctx context.Context, bucket, key string) ([]byte, string, error)
	Upload(ctx context.Context, bucket, key, contentType string, payload []byte, overwrite bool, cacheControl string) error
	Delete(ctx context.Context, bucket, key string) error
}

type LinkStore interface {
	Create(ctx context.Context, objectKey string, ttl int) (string, error)
}

type useCase struct {
	tracker    Tracker
	dispatcher Dispatcher
	blob       BlobStorage
	links      LinkStore
	cfg        *config.Config
}

func New(tracker Tracker, dispatcher Dispatcher, blob BlobStorage, links LinkStore, cfg *config.Config) *useCase {
	return &useCase{
		tracker:    tracker,
		dispatcher: dispatcher,
		blob:       blob,
		links:      links,
		cfg:        cfg,
	}
}

// EventOutcome is what one webhook delivery produced.
type EventOutcome struct {
	ObjectID string                      `json:"object_id"`
	Status   entities.JobStatus          `json:"status"`
	Reason   string                      `json:"reason,omitempty"`
	Result   *entities.CompressionResult `json:"result,omitempty"`
}

const ingestCacheControl = "max-age=3600"

// HandleEvent processes one storage notification end to end: resolve the
// locator, gate on size, mark pending, call the worker, mark done or error.
// One invocation touches exactly one object; a failure here never reaches
// another record.
//
// Once pending is written, every exit path (including a panic) finalizes
// the record with a best-effort error write. The finalizer's own failure is
// reported and swallowed, never re-raised.
func (c *useCase) HandleEvent(ctx context.Context, rec *locator.Record) (out EventOutcome, err error) {
	loc, err := locator.Resolve(rec, c.cfg.Webhook.DefaultBucket)
	if err != nil {
		return EventOutcome{}, err
	}

	objectID := rec.ID
	if objectID == "" {
		objectID = loc.String()
	}

	if d := gate.Decide(rec.SizeBytes(), c.cfg.Webhook.ThresholdBytes); !d.Process {
		if err := c.tracker.MarkSkipped(ctx, objectID, d.SkipReason); err != nil {
			return EventOutcome{}, err
		}
		return EventOutcome{ObjectID: objectID, Status: entities.StatusSkipped, Reason: d.SkipReason}, nil
	}

	if err := c.tracker.MarkPending(ctx, objectID); err != nil {
		return EventOutcome{}, err
	}

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", objectID, r)
			sentry.CaptureException(err)
		}
		reason := entities.ErrorReasonUpstream
		if entities.IsTooLarge(err) {
			reason = entities.ErrorReasonTooLarge
		}
		c.finalizeError(ctx, objectID, reason)
		out = EventOutcome{ObjectID: objectID, Status: entities.StatusError, Reason: reason}
	}()

	res, err := c.dispatcher.Compress(ctx, loc, true)
	if err != nil {
		return EventOutcome{}, err
	}

	if err = c.tracker.MarkDone(ctx, objectID, res); err != nil {
		return EventOutcome{}, err
	}

	finalized = true
	return EventOutcome{ObjectID: objectID, Status: entities.StatusDone, Result: &res}, nil
}

// finalizeError is the guaranteed terminal write after pending. It runs on a
// context detached from the request's cancellation so a client timeout does
// not leave the record stuck in pending.
func (c *useCase) finalizeError(ctx context.Context, objectID, reason string) {
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if ferr := c.tracker.MarkError(finCtx, objectID, reason); ferr != nil {
		log.Printf("[use-case] finalizing error status for %s failed: %v", objectID, ferr)
		sentry.CaptureException(ferr)
	}
}

// IngestParams carries the manual-path input. Data wins over the legacy
// Content field; Overwrite defaults to false so a caller-named key never
// clobbers silently.
type IngestParams struct {
	Data    string
	Content string
	Source  *entities.Locator
	// DeleteSource drops the source object after a successful store,
	// turning a fetch-then-process into a move. Best-effort.
	DeleteSource bool

	Bucket      string
	Key         string
	ContentType string
	Overwrite   bool
	RecordID    string
}

type IngestOutcome struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Skipped     bool   `json:"skipped"`
	Token       string `json:"token,omitempty"`
}

// IngestDocument stores directly supplied bytes (or a fetched source object)
// without calling the compression worker: the manual path is pass-through.
// The size gate still runs and is reflected in the optional status link.
// Linking to a record id and issuing a lookup token are best-effort; their
// failures are logged, never surfaced.
func (c *useCase) IngestDocument(ctx context.Context, params IngestParams) (IngestOutcome, error) {
	payload, contentType, err := c.ingestPayload(ctx, params)
	if err != nil {
		return IngestOutcome{}, err
	}

	size := int64(len(payload))
	decision := gate.Decide(&size, c.cfg.Webhook.ThresholdBytes)

	bucket := params.Bucket
	if bucket == "" {
		bucket = c.cfg.Webhook.DefaultBucket
	}
	if bucket == "" {
		return IngestOutcome{}, fmt.Errorf("%w: no target bucket", entities.ErrMissingLocator)
	}

	key := params.Key
	if key == "" {
		key = c.synthesizeKey(contentType)
	}

	if err := c.blob.Upload(ctx, bucket, key, contentType, payload, params.Overwrite, ingestCacheControl); err != nil {
		return IngestOutcome{}, err
	}

	out := IngestOutcome{
		Bucket:      bucket,
		Key:         key,
		Size:        size,
		ContentType: contentType,
		Skipped:     !decision.Process,
	}

	if params.DeleteSource && params.Source != nil {
		srcBucket := params.Source.Bucket
		if srcBucket == "" {
			srcBucket = c.cfg.Webhook.DefaultBucket
		}
		if err := c.blob.Delete(ctx, srcBucket, params.Source.Name); err != nil {
			log.Printf("[use-case] deleting source %s/%s failed: %v", srcBucket, params.Source.Name, err)
			sentry.CaptureException(err)
		}
	}

	if params.RecordID != "" {
		c.linkRecord(ctx, params.RecordID, size, decision)
	}
	if c.links != nil {
		token, err := c.links.Create(ctx, bucket+"/"+key, 86400)
		if err != nil {
			log.Printf("[use-case] lookup token for %s/%s failed: %v", bucket, key, err)
			sentry.CaptureException(err)
		} else {
			out.Token = token
		}
	}

	return out, nil
}

// GetStatus reads the lifecycle record for one object id.
func (c *useCase) GetStatus(ctx context.Context, objectID string) (entities.CompressionJob, error) {
	return c.tracker.Get(ctx, objectID)
}

func (c *useCase) ingestPayload(ctx context.Context, params IngestParams) ([]byte, string, error) {
	encoded := params.Data
	if encoded == "" {
		encoded = params.Content
	}

	var payload []byte
	var detectedType string
	switch {
	case encoded != "":
		var err error
		payload, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("decode document payload: %w", err)
		}
	case params.Source != nil:
		var err error
		bucket := params.Source.Bucket
		if bucket == "" {
			bucket = c.cfg.Webhook.DefaultBucket
		}
		payload, detectedType, err = c.blob.Download(ctx, bucket, params.Source.Name)
		if err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("%w: neither document bytes nor a source object given", entities.ErrMissingLocator)
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = detectedType
	}
	if contentType == "" {
		contentType = mimetype.Detect(payload).String()
	}
	return payload, contentType, nil
}

func (c *useCase) synthesizeKey(contentType string) string {
	prefix := c.cfg.Ingest.KeyPrefix
	if prefix == "" {
		prefix = "ingest"
	}

	ext := ""
	if mt := mimetype.Lookup(contentType); mt != nil {
		ext = mt.Extension()
	}

	id := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s/%s-%s%s", prefix, time.Now().UTC().Format("20060102T150405"), id, ext)
}

// linkRecord mirrors the gate decision onto the caller's record id. The
// manual path never enters pending: the stored bytes are already final.
func (c *useCase) linkRecord(ctx context.Context, recordID string, size int64, decision gate.Decision) {
	var err error
	if decision.Process {
		err = c.tracker.MarkDone(ctx, recordID, entities.CompressionResult{
			OK:              true,
			OriginalBytes:   size,
			CompressedBytes: size,
			Ratio:           1.0,
		})
	} else {
		err = c.tracker.MarkSkipped(ctx, recordID, decision.SkipReason)
	}
	if err != nil {
		log.Printf("[use-case] linking record %s failed: %v", recordID, err)
		sentry.CaptureException(err)
	}
}
