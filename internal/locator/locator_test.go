package locator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
)

func TestResolveExplicitFields(t *testing.T) {
	rec := &Record{Bucket: "docs", Name: "reports/q1.pdf"}

	loc, err := Resolve(rec, "")
	require.NoError(t, err)
	assert.Equal(t, entities.Locator{Bucket: "docs", Name: "reports/q1.pdf"}, loc)
}

func TestResolveExplicitBeatsDerived(t *testing.T) {
	rec := &Record{
		Bucket:    "docs",
		Name:      "real.pdf",
		FilePath:  "other/legacy.pdf",
		PublicURL: "https://store.example.com/storage/v1/object/public/wrong/derived.pdf",
	}

	loc, err := Resolve(rec, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "docs", loc.Bucket)
	assert.Equal(t, "real.pdf", loc.Name)
}

func TestResolveLegacyPathFields(t *testing.T) {
	tests := []struct {
		name   string
		rec    *Record
		bucket string
		object string
	}{
		{
			name:   "file_path with bucket segment",
			rec:    &Record{FilePath: "uploads/2024/doc.pdf"},
			bucket: "uploads",
			object: "2024/doc.pdf",
		},
		{
			name:   "explicit bucket keeps whole path as name",
			rec:    &Record{Bucket: "docs", ObjectPath: "2024/doc.pdf"},
			bucket: "docs",
			object: "2024/doc.pdf",
		},
		{
			name:   "file_name with default bucket",
			rec:    &Record{FileName: "doc.pdf"},
			bucket: "default",
			object: "doc.pdf",
		},
		{
			name:   "percent-encoded legacy path",
			rec:    &Record{Path: "docs/My%20Report.pdf"},
			bucket: "docs",
			object: "My Report.pdf",
		},
		{
			name:   "file_path wins over path",
			rec:    &Record{FilePath: "a/first.pdf", Path: "b/second.pdf"},
			bucket: "a",
			object: "first.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Resolve(tt.rec, "default")
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, loc.Bucket)
			assert.Equal(t, tt.object, loc.Name)
		})
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		bucket string
		object string
		ok     bool
	}{
		{
			name:   "public url",
			raw:    "https://x.supabase.co/storage/v1/object/public/docs/a/b.pdf",
			bucket: "docs", object: "a/b.pdf", ok: true,
		},
		{
			name:   "signed url",
			raw:    "https://x.supabase.co/storage/v1/object/signed/docs/b.pdf?token=abc",
			bucket: "docs", object: "b.pdf", ok: true,
		},
		{
			name:   "percent-encoded segments",
			raw:    "https://x.example.com/object/public/my%20bucket/My%20Report%202024.pdf",
			bucket: "my bucket", object: "My Report 2024.pdf", ok: true,
		},
		{
			name:   "doubled slashes tolerated",
			raw:    "https://x.example.com/object/public/docs//a//b.pdf",
			bucket: "docs", object: "a/b.pdf", ok: true,
		},
		{
			name: "no marker",
			raw:  "https://x.example.com/files/docs/a.pdf",
			ok:   false,
		},
		{
			name: "marker but no object segment",
			raw:  "https://x.example.com/object/public/docs",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := FromURL(tt.raw)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.bucket, loc.Bucket)
				assert.Equal(t, tt.object, loc.Name)
			}
		})
	}
}

func TestResolveURLFallback(t *testing.T) {
	rec := &Record{URL: "https://x.supabase.co/storage/v1/object/public/docs/deep/path/doc.pdf"}

	loc, err := Resolve(rec, "")
	require.NoError(t, err)
	assert.Equal(t, "docs", loc.Bucket)
	assert.Equal(t, "deep/path/doc.pdf", loc.Name)
}

func TestResolveMissing(t *testing.T) {
	_, err := Resolve(&Record{}, "default")
	assert.ErrorIs(t, err, entities.ErrMissingLocator)

	// name without any bucket source
	_, err = Resolve(&Record{FileName: "doc.pdf"}, "")
	assert.ErrorIs(t, err, entities.ErrMissingLocator)

	_, err = Resolve(nil, "default")
	assert.ErrorIs(t, err, entities.ErrMissingLocator)
}

func TestResolveDeterministic(t *testing.T) {
	rec := &Record{FilePath: "uploads/doc.pdf"}

	first, err := Resolve(rec, "default")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Resolve(rec, "default")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEventEnvelope(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"record":{"name":"a.pdf","metadata":{"size":500000}}}`), &ev))
	rec := ev.Rec()
	require.NotNil(t, rec)
	assert.Equal(t, "a.pdf", rec.Name)
	require.NotNil(t, rec.SizeBytes())
	assert.EqualValues(t, 500000, *rec.SizeBytes())

	ev = Event{}
	require.NoError(t, json.Unmarshal([]byte(`{"new":{"name":"b.pdf","size":"1234"}}`), &ev))
	rec = ev.Rec()
	require.NotNil(t, rec)
	require.NotNil(t, rec.SizeBytes())
	assert.EqualValues(t, 1234, *rec.SizeBytes())

	ev = Event{}
	require.NoError(t, json.Unmarshal([]byte(`{"record":{"name":"c.pdf"}}`), &ev))
	assert.Nil(t, ev.Rec().SizeBytes())
}
