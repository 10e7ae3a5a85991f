package handler

// IngestDocumentRequest is the manual-path body. Exactly one of the payload
// sources must be present: inline base64 bytes ("data", or the legacy
// "content" spelling) or a source object to fetch.
type IngestDocumentRequest struct {
	Data    string `json:"data"`
	Content string `json:"content"` // legacy field name, data wins

	SourceBucket string `json:"source_bucket" validate:"omitempty,max=128"`
	SourceName   string `json:"source_name" validate:"omitempty,max=512"`
	DeleteSource bool   `json:"delete_source"` // move instead of copy, best-effort

	Bucket      string `json:"bucket" validate:"omitempty,max=128"`
	Key         string `json:"key" validate:"omitempty,max=512"`
	ContentType string `json:"content_type" validate:"omitempty,max=128"`
	Overwrite   bool   `json:"overwrite"` // defaults to false: never clobber silently
	RecordID    string `json:"record_id" validate:"omitempty,max=128"`
}
