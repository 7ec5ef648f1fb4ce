package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ppronobis/video-transcription-tool/internal/metrics"
	"github.com/ppronobis/video-transcription-tool/internal/models"
	"github.com/ppronobis/video-transcription-tool/internal/ports"
)

// WhisperClient uploads audio chunks to the OpenAI speech-to-text endpoint
// and returns per-chunk transcripts with segment timings.
type WhisperClient struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
	client   *http.Client
	metrics  *metrics.Metrics
}

var _ ports.Transcriber = (*WhisperClient)(nil)

func NewWhisperClient(endpoint, apiKey, model string, timeout time.Duration, m *metrics.Metrics) *WhisperClient {
	return &WhisperClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		timeout:  timeout,
		client:   &http.Client{},
		metrics:  m,
	}
}

// verboseResponse is the response_format=verbose_json payload.
type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// apiErrorBody is the structured error envelope of the API.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Transcribe uploads one chunk and parses the verbose transcript. Failures
// come back classified so the retry policy can act on them without looking
// at message text.
func (c *WhisperClient) Transcribe(ctx context.Context, chunk models.Chunk) (models.TranscriptSegment, error) {
	start := time.Now()
	seg, err := c.transcribe(ctx, chunk)
	c.observe(chunk, err, time.Since(start))
	return seg, err
}

func (c *WhisperClient) transcribe(ctx context.Context, chunk models.Chunk) (models.TranscriptSegment, error) {
	var none models.TranscriptSegment

	body, contentType, err := c.buildForm(chunk.Path)
	if err != nil {
		return none, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return none, models.WrapFault(models.KindInternal, err, "build transcription request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return none, models.WrapFault(models.KindCanceled, err, "transcription call canceled")
		}
		return none, models.WrapFault(models.KindNetwork, err, "call transcription API")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return none, models.WrapFault(models.KindNetwork, err, "read transcription response")
	}

	if resp.StatusCode != http.StatusOK {
		return none, c.classifyHTTP(resp.StatusCode, raw)
	}

	var parsed verboseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A 200 with an undecodable body is an API anomaly, worth a retry.
		return none, models.WrapFault(models.KindServer, err, "decode transcription response")
	}

	seg := models.TranscriptSegment{
		ChunkIndex: chunk.Index,
		Text:       parsed.Text,
		Duration:   parsed.Duration,
	}
	for _, s := range parsed.Segments {
		seg.Timings = append(seg.Timings, models.SegmentTiming{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return seg, nil
}

// buildForm assembles the multipart upload: the chunk file plus the model
// and response_format fields.
func (c *WhisperClient) buildForm(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "open chunk %s", path)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "build upload form")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "copy chunk into form")
	}
	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "build upload form")
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "build upload form")
	}
	if err := w.Close(); err != nil {
		return nil, "", models.WrapFault(models.KindInternal, err, "finish upload form")
	}
	return &buf, w.FormDataContentType(), nil
}

// classifyHTTP maps a non-200 response to an error kind using the status
// code and the structured error envelope, never the message text.
func (c *WhisperClient) classifyHTTP(status int, raw []byte) error {
	var envelope apiErrorBody
	_ = json.Unmarshal(raw, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := kindForStatus(status, envelope.Error.Code, envelope.Error.Type)
	return models.NewFault(kind, "API status %d: %s", status, msg)
}

func kindForStatus(status int, code, errType string) models.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.KindAuth
	case status == http.StatusTooManyRequests:
		if code == "insufficient_quota" || errType == "insufficient_quota" {
			return models.KindQuotaExceeded
		}
		return models.KindRateLimited
	case status >= 500:
		return models.KindServer
	default:
		return models.KindInvalidRequest
	}
}

func (c *WhisperClient) observe(chunk models.Chunk, err error, latency time.Duration) {
	result := "ok"
	if err != nil {
		result = string(models.KindOf(err))
	}
	c.metrics.APIRequests.WithLabelValues(result).Inc()
	c.metrics.APILatency.Observe(latency.Seconds())
	if err == nil {
		c.metrics.ChunkBytes.Observe(float64(chunk.Size))
	}
}
