package media

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes an external media tool. Extracted so tests can substitute
// a fake and assert that no subprocess runs on validation failures.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}
