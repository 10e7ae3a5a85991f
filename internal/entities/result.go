package entities

// CompressionResult is the normalized worker response. The worker has two
// historical response shapes (overwrite-in-place and pass-through); both
// collapse into this one value.
type CompressionResult struct {
	OK              bool    `json:"ok"`
	OriginalBytes   int64   `json:"original_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	Ratio           float64 `json:"ratio"`
	Overwrote       bool    `json:"overwrote"`
	HitTarget       bool    `json:"hit_target"`
	PassUsed        int     `json:"pass_used"`
	Quality         *string `json:"quality,omitempty"`
}
