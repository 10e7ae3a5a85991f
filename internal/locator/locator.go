package locator

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
)

// Event is the webhook envelope. The notifier has shipped both shapes over
// time; whichever inner record is present is the one we act on.
type Event struct {
	Record *Record `json:"record"`
	New    *Record `json:"new"`
}

// Rec returns the inner record, preferring "record" over "new".
func (e *Event) Rec() *Record {
	if e.Record != nil {
		return e.Record
	}
	return e.New
}

// Record is the loosely-typed object notification. Only id, bucket and name
// are stable across notifier versions; the rest are legacy spellings still
// seen in redeliveries of old events.
type Record struct {
	ID       string `json:"id"`
	Bucket   string `json:"bucket"`
	BucketID string `json:"bucket_id"`
	Name     string `json:"name"`

	FilePath   string `json:"file_path"`
	ObjectPath string `json:"object_path"`
	Path       string `json:"path"`
	FileName   string `json:"file_name"`

	URL       string `json:"url"`
	PublicURL string `json:"public_url"`
	SignedURL string `json:"signed_url"`

	Size     SizeHint `json:"size"`
	Metadata struct {
		Size SizeHint `json:"size"`
	} `json:"metadata"`
}

// SizeBytes returns the object size hint, metadata.size winning over the
// top-level field. Nil means the size is unknown.
func (r *Record) SizeBytes() *int64 {
	if r.Metadata.Size.Value != nil {
		return r.Metadata.Size.Value
	}
	return r.Size.Value
}

// SizeHint tolerates a size delivered as a JSON number or a numeric string.
type SizeHint struct {
	Value *int64
}

func (s *SizeHint) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	// a fractional size still counts as a hint
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	s.Value = &v
	return nil
}

const (
	publicMarker = "/object/public/"
	signedMarker = "/object/signed/"
)

// Resolve derives the (bucket, name) pair from a record. Explicit fields
// always beat derived ones: bucket/name first, then legacy path spellings,
// then derivation from an embedded object-store URL. defaultBucket backstops
// records that only carry an object name. Returns ErrMissingLocator when no
// rule can produce both halves.
func Resolve(rec *Record, defaultBucket string) (entities.Locator, error) {
	if rec == nil {
		return entities.Locator{}, entities.ErrMissingLocator
	}

	bucket := firstNonEmpty(rec.Bucket, rec.BucketID)
	name := rec.Name

	if name == "" {
		bucket, name = fromLegacy(rec, bucket)
	}

	if name == "" || bucket == "" {
		for _, raw := range []string{rec.URL, rec.PublicURL, rec.SignedURL} {
			loc, ok := FromURL(raw)
			if !ok {
				continue
			}
			if bucket == "" {
				bucket = loc.Bucket
			}
			if name == "" {
				name = loc.Name
			}
			break
		}
	}

	if bucket == "" {
		bucket = defaultBucket
	}
	if bucket == "" || name == "" {
		return entities.Locator{}, entities.ErrMissingLocator
	}
	return entities.Locator{Bucket: bucket, Name: name}, nil
}

// fromLegacy pulls bucket/name out of the old path-style fields. A value
// that is itself a store URL goes through URL derivation; a path with a
// slash donates its first segment as the bucket when none is known yet.
func fromLegacy(rec *Record, bucket string) (string, string) {
	pathy := []string{rec.FilePath, rec.ObjectPath, rec.Path}
	for _, raw := range pathy {
		if raw == "" {
			continue
		}
		if loc, ok := FromURL(raw); ok {
			if bucket == "" {
				bucket = loc.Bucket
			}
			return bucket, loc.Name
		}
		p := decode(raw)
		p = strings.Trim(p, "/")
		if bucket == "" {
			if i := strings.Index(p, "/"); i > 0 {
				return p[:i], strings.TrimLeft(p[i+1:], "/")
			}
		}
		return bucket, p
	}
	if rec.FileName != "" {
		return bucket, decode(rec.FileName)
	}
	return bucket, ""
}

// FromURL derives a locator from an object-store URL of the public or
// signed form. Every segment is percent-decoded; empty segments from
// doubled slashes are dropped.
func FromURL(raw string) (entities.Locator, bool) {
	if raw == "" {
		return entities.Locator{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return entities.Locator{}, false
	}
	path := u.EscapedPath()
	if path == "" {
		path = raw
	}

	idx := strings.Index(path, publicMarker)
	markerLen := len(publicMarker)
	if idx < 0 {
		idx = strings.Index(path, signedMarker)
		markerLen = len(signedMarker)
	}
	if idx < 0 {
		return entities.Locator{}, false
	}

	rest := path[idx+markerLen:]
	var segs []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) < 2 {
		return entities.Locator{}, false
	}

	bucket := decode(segs[0])
	parts := make([]string, 0, len(segs)-1)
	for _, s := range segs[1:] {
		parts = append(parts, decode(s))
	}
	return entities.Locator{Bucket: bucket, Name: strings.Join(parts, "/")}, true
}

func decode(s string) string {
	d, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
