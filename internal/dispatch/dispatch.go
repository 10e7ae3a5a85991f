// Package dispatch owns the single outbound call to the compression worker.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/Baltuneedu/pdf-compress-app/internal/entities"
)

const tooLargeError = "too_large"

type Client struct {
	httpClient *http.Client
	url        string
	token      string
	timeout    time.Duration
}

func NewClient(url, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		url:        url,
		token:      token,
		timeout:    timeout,
	}
}

type compressRequest struct {
	Bucket    string `json:"bucket"`
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

// workerResponse is the union of the two response shapes the worker has
// shipped: the overwrite-in-place shape carries overwrote and pass_used,
// the pass-through shape omits them and may omit the ratio.
type workerResponse struct {
	OK              bool     `json:"ok"`
	Error           string   `json:"error"`
	OriginalBytes   int64    `json:"original_bytes"`
	CompressedBytes int64    `json:"compressed_bytes"`
	Ratio           *float64 `json:"ratio"`
	Overwrote       *bool    `json:"overwrote"`
	HitTarget       bool     `json:"hit_target"`
	PassUsed        int      `json:"pass_used"`
	Quality         string   `json:"quality"`
}

// Compress issues exactly one call to the worker for the given object,
// bounded by the configured timeout. Timeout or cancellation is a
// definitive failure; there is no in-call retry, redelivery of the
// triggering event is the only retry path. No storage is touched here.
func (c *Client) Compress(ctx context.Context, loc entities.Locator, overwrite bool) (entities.CompressionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(compressRequest{Bucket: loc.Bucket, Name: loc.Name, Overwrite: overwrite})
	if err != nil {
		return entities.CompressionResult{}, fmt.Errorf("marshal worker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return entities.CompressionResult{}, fmt.Errorf("build worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entities.CompressionResult{}, &entities.WorkerError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return entities.CompressionResult{}, &entities.WorkerError{Message: fmt.Sprintf("read worker response: %v", err)}
	}

	var wr workerResponse
	if jsonErr := json.Unmarshal(raw, &wr); jsonErr != nil {
		return entities.CompressionResult{}, &entities.WorkerError{
			Message: fmt.Sprintf("status %d: unparseable response", resp.StatusCode),
		}
	}

	if wr.Error != "" {
		if wr.Error == tooLargeError {
			return entities.CompressionResult{}, &entities.WorkerError{TooLarge: true}
		}
		return entities.CompressionResult{}, &entities.WorkerError{Message: wr.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entities.CompressionResult{}, &entities.WorkerError{Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if !wr.OK {
		return entities.CompressionResult{}, &entities.WorkerError{Message: "worker returned ok=false"}
	}

	return normalize(wr, overwrite), nil
}

func normalize(wr workerResponse, requestedOverwrite bool) entities.CompressionResult {
	res := entities.CompressionResult{
		OK:              true,
		OriginalBytes:   wr.OriginalBytes,
		CompressedBytes: wr.CompressedBytes,
		HitTarget:       wr.HitTarget,
		PassUsed:        wr.PassUsed,
	}

	if wr.Ratio != nil {
		res.Ratio = *wr.Ratio
	} else if wr.OriginalBytes > 0 {
		res.Ratio = round3(float64(wr.CompressedBytes) / float64(wr.OriginalBytes))
	}

	if wr.Overwrote != nil {
		res.Overwrote = *wr.Overwrote
	} else {
		// pass-through shape never reports overwrote; trust the request flag
		res.Overwrote = requestedOverwrite
	}

	if wr.Quality != "" {
		q := wr.Quality
		res.Quality = &q
	}
	return res
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
