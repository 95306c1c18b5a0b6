package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/deporecord/backend/gateways/transcribe/cleanup"
	"github.com/deporecord/backend/pkg/apperr"
	"github.com/deporecord/backend/pkg/gen"
	"github.com/deporecord/backend/pkg/logger"
)

// Fetcher downloads a video URL and extracts its audio track via yt-dlp.
type Fetcher struct {
	runner     Runner
	scratchDir string
	names      gen.UUIDGenerator
}

func NewFetcher(scratchDir string) *Fetcher {
	return &Fetcher{
		runner:     execRunner{},
		scratchDir: scratchDir,
		names:      gen.UUID(),
	}
}

// NewFetcherWithRunner is used by tests to inject a fake subprocess.
func NewFetcherWithRunner(r Runner, scratchDir string) *Fetcher {
	return &Fetcher{
		runner:     r,
		scratchDir: scratchDir,
		names:      gen.UUID(),
	}
}

// Fetch downloads the URL's audio as mp3 and returns the local path. The
// path is registered with the tracker before the download starts.
func (f *Fetcher) Fetch(ctx context.Context, tracker *cleanup.Tracker, url string) (string, error) {
	outputPath := filepath.Join(f.scratchDir, f.names.TempName("fetch", ".mp3"))
	tracker.Add(outputPath)

	logger.Info(ctx, "downloading remote audio", "url", url, "output", outputPath)

	stderr, err := f.runner.Run(ctx, "yt-dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"--output", outputPath,
		url,
	)
	if err != nil {
		logger.Warn(ctx, "yt-dlp failed", "error", err, "stderr", stderr)
		if strings.Contains(stderr, "Video unavailable") || strings.Contains(stderr, "Private video") {
			return "", apperr.New(apperr.KindValidation, "YouTube video is unavailable or private")
		}
		return "", apperr.Wrap(apperr.KindUpstream, "Failed to download YouTube video", err)
	}

	return outputPath, nil
}
