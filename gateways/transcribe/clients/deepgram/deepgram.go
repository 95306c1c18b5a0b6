// Package deepgram is a thin client for the Deepgram speech-to-text API.
// The response payload is relayed as-is; this service never parses it.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/deporecord/backend/pkg/apperr"
	"github.com/deporecord/backend/pkg/logger"
	"github.com/deporecord/backend/pkg/metrics"
)

const (
	defaultBaseURL = "https://api.deepgram.com"
	listenPath     = "/v1/listen"

	// Fixed feature set for every request: formatting, summarization,
	// topics, entities, utterance/paragraph segmentation, language
	// detection and diarization.
	featureFlags = "smart_format=true&summarize=true&detect_topics=true&detect_entities=true" +
		"&utterances=true&paragraphs=true&detect_language=true&diarize=true"

	maxRetries           = 3
	defaultRetryInterval = 500 * time.Millisecond
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// RetryInterval is the initial backoff delay between attempts. Zero
	// means the default; tests shrink it.
	RetryInterval time.Duration
}

func New(apiKey string) *Client {
	return NewWithClient(apiKey, defaultBaseURL, &http.Client{Timeout: 5 * time.Minute})
}

// NewWithClient lets callers substitute the endpoint and transport, which
// tests use to point the client at a fake server.
func NewWithClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:        apiKey,
		baseURL:       baseURL,
		httpClient:    httpClient,
		RetryInterval: defaultRetryInterval,
	}
}

// Transcribe posts the normalized audio bytes and returns the raw response.
// Transient failures (network errors, 408/429/502/503/504) are retried with
// exponential backoff; anything else propagates immediately.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (json.RawMessage, error) {
	var result json.RawMessage

	operation := func() error {
		start := time.Now()
		res, err := c.send(ctx, audio)
		metrics.Default.RecordUpstreamCall(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.RetryInterval
	if bo.InitialInterval == 0 {
		bo.InitialInterval = defaultRetryInterval
	}

	notify := func(err error, wait time.Duration) {
		metrics.Default.RecordRetry()
		logger.Warn(ctx, "retrying transcription call", "error", err, "wait", wait)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx),
		notify)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, audio []byte) (json.RawMessage, error) {
	url := c.baseURL + listenPath + "?" + featureFlags
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return nil, backoff.Permanent(apperr.Wrap(apperr.KindInternal, "failed to build transcription request", err))
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/mp3")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network and timeout failures are transient.
		return nil, apperr.Wrap(apperr.KindUpstream, "transcription request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to read transcription response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := apperr.Upstreamf("Deepgram API error: %s", upstreamMessage(resp.StatusCode, body))
		if retryableStatus(resp.StatusCode) {
			return nil, upstream
		}
		return nil, backoff.Permanent(upstream)
	}

	return json.RawMessage(body), nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func upstreamMessage(code int, body []byte) string {
	var payload struct {
		ErrMsg string `json:"err_msg"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrMsg != "" {
			return payload.ErrMsg
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}
