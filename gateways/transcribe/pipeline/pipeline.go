// Package pipeline orchestrates one transcription request end to end:
// receive or fetch media, normalize it, call the transcription API, and for
// URL submissions consult and update the response cache.
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/deporecord/backend/gateways/transcribe/cache"
	"github.com/deporecord/backend/gateways/transcribe/cleanup"
	"github.com/deporecord/backend/gateways/transcribe/media"
	"github.com/deporecord/backend/pkg/apperr"
	"github.com/deporecord/backend/pkg/gen"
	"github.com/deporecord/backend/pkg/logger"
	"github.com/deporecord/backend/pkg/metrics"
)

// Normalizer converts a local media file to the canonical audio format.
type Normalizer interface {
	Normalize(ctx context.Context, tracker *cleanup.Tracker, inputPath string) (string, error)
}

// Fetcher downloads a remote video's audio track to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, tracker *cleanup.Tracker, url string) (string, error)
}

// Transcriber sends normalized audio to the speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (json.RawMessage, error)
}

var allowedHosts = []string{
	"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be",
}

type Pipeline struct {
	normalizer  Normalizer
	fetcher     Fetcher
	transcriber Transcriber
	cache       cache.Cache

	scratchDir     string
	maxUploadBytes int64
	names          gen.UUIDGenerator
}

func New(normalizer Normalizer, fetcher Fetcher, transcriber Transcriber, responseCache cache.Cache, scratchDir string, maxUploadBytes int64) *Pipeline {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Pipeline{
		normalizer:     normalizer,
		fetcher:        fetcher,
		transcriber:    transcriber,
		cache:          responseCache,
		scratchDir:     scratchDir,
		maxUploadBytes: maxUploadBytes,
		names:          gen.UUID(),
	}
}

// FromUpload transcribes an uploaded file. The extension is validated before
// any bytes touch disk, and every scratch file is registered with the tracker
// the moment it exists.
func (p *Pipeline) FromUpload(ctx context.Context, tracker *cleanup.Tracker, file io.Reader, filename string) (json.RawMessage, error) {
	if !media.SupportedExtension(filename) {
		return nil, apperr.Validationf("Invalid file format. Supported formats: %s", media.SupportedList())
	}

	uploadPath := filepath.Join(p.scratchDir, p.names.TempName("upload", strings.ToLower(filepath.Ext(filename))))
	tracker.Add(uploadPath)

	if err := p.saveUpload(uploadPath, file); err != nil {
		return nil, err
	}

	logger.Info(ctx, "upload received", "filename", filename, "path", uploadPath)

	normalizedPath, err := p.normalizer.Normalize(ctx, tracker, uploadPath)
	if err != nil {
		return nil, err
	}

	return p.transcribeFile(ctx, normalizedPath)
}

// FromURL transcribes the audio of a remote video, serving repeat
// submissions of the same URL from the response cache.
func (p *Pipeline) FromURL(ctx context.Context, tracker *cleanup.Tracker, rawURL string) (json.RawMessage, error) {
	if rawURL == "" {
		return nil, apperr.New(apperr.KindValidation, "URL is required")
	}
	if err := validateVideoURL(rawURL); err != nil {
		return nil, err
	}

	if result, ok := p.cache.Get(rawURL); ok {
		metrics.Default.RecordCacheLookup(true)
		logger.Info(ctx, "transcription served from cache", "url", rawURL)
		return result, nil
	}
	metrics.Default.RecordCacheLookup(false)

	audioPath, err := p.fetcher.Fetch(ctx, tracker, rawURL)
	if err != nil {
		return nil, err
	}

	result, err := p.transcribeFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	p.cache.Put(rawURL, result)
	return result, nil
}

func (p *Pipeline) saveUpload(path string, file io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to store upload", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(file, p.maxUploadBytes+1))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to store upload", err)
	}
	metrics.Default.UploadBytes.Add(float64(n))

	if n > p.maxUploadBytes {
		return apperr.Validationf("File size exceeds limit of %dMB", p.maxUploadBytes/(1024*1024))
	}
	return nil
}

func (p *Pipeline) transcribeFile(ctx context.Context, path string) (json.RawMessage, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to process audio file", err)
	}

	logger.Debug(ctx, "sending audio for transcription", "path", path, "bytes", len(audio))
	return p.transcriber.Transcribe(ctx, audio)
}

func validateVideoURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.New(apperr.KindValidation, "Invalid URL")
	}

	host := u.Hostname()
	for _, allowed := range allowedHosts {
		if host == allowed {
			return nil
		}
	}
	return apperr.Validationf("Invalid URL. Supported hosts: %s", strings.Join(allowedHosts, ", "))
}
