package use_case

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Baltuneedu/pdf-compress-app/internal/config"
	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
	"github.com/Baltuneedu/pdf-compress-app/internal/locator"
)

type trackerCall struct {
	op     string
	id     string
	reason string
	res    entities.CompressionResult
}

type fakeTracker struct {
	calls   []trackerCall
	failOn  string
	records map[string]entities.CompressionJob
}

func (f *fakeTracker) fail(op string) error {
	if f.failOn == op {
		return errors.New(op + " write failed")
	}
	return nil
}

func (f *fakeTracker) MarkPending(_ context.Context, id string) error {
	f.calls = append(f.calls, trackerCall{op: "pending", id: id})
	return f.fail("pending")
}

func (f *fakeTracker) MarkDone(_ context.Context, id string, res entities.CompressionResult) error {
	f.calls = append(f.calls, trackerCall{op: "done", id: id, res: res})
	return f.fail("done")
}

func (f *fakeTracker) MarkError(_ context.Context, id string, reason string) error {
	f.calls = append(f.calls, trackerCall{op: "error", id: id, reason: reason})
	return f.fail("error")
}

func (f *fakeTracker) MarkSkipped(_ context.Context, id string, reason string) error {
	f.calls = append(f.calls, trackerCall{op: "skipped", id: id, reason: reason})
	return f.fail("skipped")
}

func (f *fakeTracker) Get(_ context.Context, id string) (entities.CompressionJob, error) {
	job, ok := f.records[id]
	if !ok {
		return entities.CompressionJob{}, errors.New("not found")
	}
	return job, nil
}

func (f *fakeTracker) ops() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

type fakeDispatcher struct {
	called int
	res    entities.CompressionResult
	err    error
	panics bool
}

func (f *fakeDispatcher) Compress(_ context.Context, loc entities.Locator, overwrite bool) (entities.CompressionResult, error) {
	f.called++
	if f.panics {
		panic("dispatcher blew up")
	}
	return f.res, f.err
}

type fakeBlob struct {
	downloaded  []byte
	downloadCT  string
	downloadErr error
	uploadErr   error
	deleteErr   error

	uploads []uploadCall
	deletes []string
}

type uploadCall struct {
	bucket, key, contentType string
	payload                  []byte
	overwrite                bool
}

func (f *fakeBlob) Download(_ context.Context, bucket, key string) ([]byte, string, error) {
	return f.downloaded, f.downloadCT, f.downloadErr
}

func (f *fakeBlob) Upload(_ context.Context, bucket, key, contentType string, payload []byte, overwrite bool, _ string) error {
	f.uploads = append(f.uploads, uploadCall{bucket, key, contentType, payload, overwrite})
	return f.uploadErr
}

func (f *fakeBlob) Delete(_ context.Context, bucket, key string) error {
	f.deletes = append(f.deletes, bucket+"/"+key)
	return f.deleteErr
}

type fakeLinks struct {
	token string
	err   error
}

func (f *fakeLinks) Create(context.Context, string, int) (string, error) {
	return f.token, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{
			DefaultBucket:  "docs",
			ThresholdBytes: 204800,
		},
		Worker: config.WorkerConfig{URL: "http://worker", Timeout: 2},
	}
}

func sizedRecord(name string, size int64) *locator.Record {
	rec := &locator.Record{ID: "obj-1", Bucket: "docs", Name: name}
	rec.Metadata.Size.Value = &size
	return rec
}

func TestHandleEventDone(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{res: entities.CompressionResult{
		OK: true, OriginalBytes: 500000, CompressedBytes: 300000, Ratio: 0.6,
	}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("doc.pdf", 500000))
	require.NoError(t, err)

	assert.Equal(t, entities.StatusDone, out.Status)
	assert.Equal(t, []string{"pending", "done"}, tracker.ops())
	assert.Equal(t, 1, disp.called)
	require.NotNil(t, out.Result)
	assert.EqualValues(t, 300000, out.Result.CompressedBytes)
	assert.Equal(t, 0.6, out.Result.Ratio)
}

func TestHandleEventSkipped(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("small.pdf", 1000))
	require.NoError(t, err)

	assert.Equal(t, entities.StatusSkipped, out.Status)
	assert.Equal(t, []string{"skipped"}, tracker.ops(), "pending must never be entered")
	assert.Zero(t, disp.called, "worker must never be called for a skipped object")
}

func TestHandleEventUnknownSizeProcesses(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{res: entities.CompressionResult{OK: true}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	rec := &locator.Record{ID: "obj-2", Bucket: "docs", Name: "nosize.pdf"}
	out, err := uc.HandleEvent(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, entities.StatusDone, out.Status)
	assert.Equal(t, 1, disp.called)
}

func TestHandleEventWorkerFailure(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{err: &entities.WorkerError{Message: "timeout"}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("doc.pdf", 500000))
	require.Error(t, err)

	assert.Equal(t, entities.StatusError, out.Status)
	assert.Equal(t, []string{"pending", "error"}, tracker.ops())
	assert.Equal(t, entities.ErrorReasonUpstream, tracker.calls[1].reason)
}

func TestHandleEventTooLargeDistinguished(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{err: &entities.WorkerError{TooLarge: true}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("huge.pdf", 900000000))
	require.Error(t, err)

	assert.Equal(t, entities.StatusError, out.Status)
	assert.Equal(t, entities.ErrorReasonTooLarge, out.Reason)
	assert.Equal(t, entities.ErrorReasonTooLarge, tracker.calls[1].reason)
}

func TestHandleEventPanicContained(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{panics: true}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("doc.pdf", 500000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	assert.Equal(t, entities.StatusError, out.Status)
	assert.Equal(t, []string{"pending", "error"}, tracker.ops())
}

func TestHandleEventFinalizerFailureSwallowed(t *testing.T) {
	tracker := &fakeTracker{failOn: "error"}
	disp := &fakeDispatcher{err: &entities.WorkerError{Message: "down"}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	// the finalizing write fails, but the invocation must still return
	out, err := uc.HandleEvent(context.Background(), sizedRecord("doc.pdf", 500000))
	require.Error(t, err)
	assert.Equal(t, entities.StatusError, out.Status)
}

func TestHandleEventMarkDoneFailureFinalizes(t *testing.T) {
	tracker := &fakeTracker{failOn: "done"}
	disp := &fakeDispatcher{res: entities.CompressionResult{OK: true}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	out, err := uc.HandleEvent(context.Background(), sizedRecord("doc.pdf", 500000))
	require.Error(t, err)
	assert.Equal(t, entities.StatusError, out.Status)
	assert.Equal(t, []string{"pending", "done", "error"}, tracker.ops())
}

func TestHandleEventMissingLocator(t *testing.T) {
	tracker := &fakeTracker{}
	cfg := testConfig()
	cfg.Webhook.DefaultBucket = ""
	uc := New(tracker, &fakeDispatcher{}, &fakeBlob{}, nil, cfg)

	_, err := uc.HandleEvent(context.Background(), &locator.Record{})
	assert.ErrorIs(t, err, entities.ErrMissingLocator)
	assert.Empty(t, tracker.calls, "no mutation before validation passes")
}

func TestHandleEventObjectIDFallsBackToLocator(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{res: entities.CompressionResult{OK: true}}
	uc := New(tracker, disp, &fakeBlob{}, nil, testConfig())

	size := int64(500000)
	rec := &locator.Record{Bucket: "docs", Name: "a.pdf"}
	rec.Size.Value = &size

	_, err := uc.HandleEvent(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "docs/a.pdf", tracker.calls[0].id)
}

func TestIngestInlineBytes(t *testing.T) {
	tracker := &fakeTracker{}
	disp := &fakeDispatcher{}
	store := &fakeBlob{}
	uc := New(tracker, disp, store, &fakeLinks{token: "tok"}, testConfig())

	payload := []byte("%PDF-1.7 some document body")
	out, err := uc.IngestDocument(context.Background(), IngestParams{
		Data: base64.StdEncoding.EncodeToString(payload),
	})
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	up := store.uploads[0]
	assert.Equal(t, "docs", up.bucket)
	assert.Equal(t, payload, up.payload)
	assert.False(t, up.overwrite, "manual path must default to non-overwriting")
	assert.NotEmpty(t, up.key)
	assert.Equal(t, "tok", out.Token)
	assert.Zero(t, disp.called, "manual path never calls the worker")
}

func TestIngestLegacyContentField(t *testing.T) {
	store := &fakeBlob{}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	first := base64.StdEncoding.EncodeToString([]byte("first"))
	second := base64.StdEncoding.EncodeToString([]byte("second"))

	// data wins over the legacy content field
	_, err := uc.IngestDocument(context.Background(), IngestParams{Data: first, Content: second})
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), store.uploads[0].payload)

	_, err = uc.IngestDocument(context.Background(), IngestParams{Content: second})
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), store.uploads[1].payload)
}

func TestIngestFromSource(t *testing.T) {
	store := &fakeBlob{downloaded: []byte("fetched bytes"), downloadCT: "application/pdf"}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	out, err := uc.IngestDocument(context.Background(), IngestParams{
		Source: &entities.Locator{Bucket: "inbox", Name: "raw.pdf"},
		Key:    "archive/raw.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "archive/raw.pdf", out.Key)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, []byte("fetched bytes"), store.uploads[0].payload)
}

func TestIngestDeleteSource(t *testing.T) {
	store := &fakeBlob{downloaded: []byte("moved"), downloadCT: "application/pdf"}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	_, err := uc.IngestDocument(context.Background(), IngestParams{
		Source:       &entities.Locator{Bucket: "inbox", Name: "raw.pdf"},
		DeleteSource: true,
		Key:          "archive/raw.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox/raw.pdf"}, store.deletes)

	// delete failure is best-effort: the stored copy already succeeded
	store2 := &fakeBlob{downloaded: []byte("moved"), deleteErr: errors.New("gone")}
	uc = New(&fakeTracker{}, &fakeDispatcher{}, store2, nil, testConfig())
	_, err = uc.IngestDocument(context.Background(), IngestParams{
		Source:       &entities.Locator{Bucket: "inbox", Name: "raw.pdf"},
		DeleteSource: true,
	})
	require.NoError(t, err)
}

func TestIngestCallerKeyAndOverwrite(t *testing.T) {
	store := &fakeBlob{}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	_, err := uc.IngestDocument(context.Background(), IngestParams{
		Data:      base64.StdEncoding.EncodeToString([]byte("x")),
		Key:       "named/spot.pdf",
		Overwrite: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "named/spot.pdf", store.uploads[0].key)
	assert.True(t, store.uploads[0].overwrite)
}

func TestIngestSynthesizedKeyIsTimeBased(t *testing.T) {
	store := &fakeBlob{}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	_, err := uc.IngestDocument(context.Background(), IngestParams{
		Data: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	require.NoError(t, err)

	key := store.uploads[0].key
	assert.Contains(t, key, "ingest/")
	assert.Contains(t, key, time.Now().UTC().Format("20060102"))
}

func TestIngestBestEffortLink(t *testing.T) {
	tracker := &fakeTracker{}
	store := &fakeBlob{}
	cfg := testConfig()
	uc := New(tracker, &fakeDispatcher{}, store, nil, cfg)

	big := make([]byte, 300000)
	_, err := uc.IngestDocument(context.Background(), IngestParams{
		Data:     base64.StdEncoding.EncodeToString(big),
		RecordID: "rec-9",
	})
	require.NoError(t, err)
	require.Len(t, tracker.calls, 1)
	assert.Equal(t, "done", tracker.calls[0].op)
	assert.Equal(t, "rec-9", tracker.calls[0].id)
	assert.Equal(t, 1.0, tracker.calls[0].res.Ratio)

	// below threshold, the link records a skip
	tracker.calls = nil
	_, err = uc.IngestDocument(context.Background(), IngestParams{
		Data:     base64.StdEncoding.EncodeToString([]byte("tiny")),
		RecordID: "rec-10",
	})
	require.NoError(t, err)
	require.Len(t, tracker.calls, 1)
	assert.Equal(t, "skipped", tracker.calls[0].op)
}

func TestIngestLinkFailureDoesNotFailCall(t *testing.T) {
	tracker := &fakeTracker{failOn: "done"}
	store := &fakeBlob{}
	uc := New(tracker, &fakeDispatcher{}, store, &fakeLinks{err: errors.New("redis down")}, testConfig())

	big := make([]byte, 300000)
	out, err := uc.IngestDocument(context.Background(), IngestParams{
		Data:     base64.StdEncoding.EncodeToString(big),
		RecordID: "rec-11",
	})
	require.NoError(t, err, "secondary side effects must not fail the upload")
	assert.Empty(t, out.Token)
	assert.Len(t, store.uploads, 1)
}

func TestIngestInvalidPayload(t *testing.T) {
	uc := New(&fakeTracker{}, &fakeDispatcher{}, &fakeBlob{}, nil, testConfig())

	_, err := uc.IngestDocument(context.Background(), IngestParams{Data: "not-base64!!!"})
	assert.Error(t, err)

	_, err = uc.IngestDocument(context.Background(), IngestParams{})
	assert.ErrorIs(t, err, entities.ErrMissingLocator)
}

func TestIngestUploadFailureSurfaced(t *testing.T) {
	store := &fakeBlob{uploadErr: errors.New("bucket gone")}
	uc := New(&fakeTracker{}, &fakeDispatcher{}, store, nil, testConfig())

	_, err := uc.IngestDocument(context.Background(), IngestParams{
		Data: base64.StdEncoding.EncodeToString([]byte("x")),
	})
	assert.Error(t, err)
}
