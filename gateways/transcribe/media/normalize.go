// Package media converts arbitrary uploaded or downloaded media into the one
// canonical audio format the transcription API receives.
package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/deporecord/backend/gateways/transcribe/cleanup"
	"github.com/deporecord/backend/pkg/apperr"
	"github.com/deporecord/backend/pkg/logger"
)

var supportedExtensions = []string{
	".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac",
	".mp4", ".mov", ".avi", ".mkv", ".webm",
}

// SupportedExtension reports whether the file's extension is on the
// allow-list. Matching is case-insensitive.
func SupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range supportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// SupportedList returns the allow-list for error messages.
func SupportedList() string {
	return strings.Join(supportedExtensions, ", ")
}

// Normalizer re-encodes any supported input into mp3 via ffmpeg.
type Normalizer struct {
	runner Runner
}

func NewNormalizer() *Normalizer {
	return &Normalizer{runner: execRunner{}}
}

// NewNormalizerWithRunner is used by tests to inject a fake subprocess.
func NewNormalizerWithRunner(r Runner) *Normalizer {
	return &Normalizer{runner: r}
}

// Normalize transcodes inputPath to mp3 and returns the output path. The
// output path is registered with the tracker before ffmpeg starts, so an
// aborted transcode still leaves nothing behind. Unsupported extensions fail
// before any subprocess is invoked.
func (n *Normalizer) Normalize(ctx context.Context, tracker *cleanup.Tracker, inputPath string) (string, error) {
	if !SupportedExtension(inputPath) {
		return "", apperr.Validationf("Invalid file format. Supported formats: %s", SupportedList())
	}

	outputPath := inputPath + ".mp3"
	tracker.Add(outputPath)

	logger.Debug(ctx, "transcoding to canonical audio", "input", inputPath, "output", outputPath)

	stderr, err := n.runner.Run(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-y",
		outputPath,
	)
	if err != nil {
		logger.Warn(ctx, "ffmpeg failed", "error", err, "stderr", stderr)
		return "", apperr.Wrap(apperr.KindUpstream, "Failed to process audio file", err)
	}

	return outputPath, nil
}
