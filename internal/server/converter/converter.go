// Package converter turns one audio file into another format by invoking an
// external transcoder (ffmpeg) as a child process. The argument list per
// target format comes from configuration; an unknown format fails before any
// process is started.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/filex"
	"github.com/ekoaw/phraseaudio/internal/logging"
)

// Runner executes the external transcoder. Tests substitute a fake so no
// real process is spawned.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs the command via os/exec. The context deadline kills the
// child process, so a hung transcoder never outlives the conversion call.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// Converter produces a freshly named output file per conversion.
type Converter struct {
	binary  string
	formats map[string][]string
	timeout time.Duration
	tmpDir  string
	runner  Runner
	logger  logging.Logger
}

func New(binary string, formats map[string][]string, timeout time.Duration, tmpDir string, runner Runner, logger logging.Logger) *Converter {
	return &Converter{
		binary:  binary,
		formats: formats,
		timeout: timeout,
		tmpDir:  tmpDir,
		runner:  runner,
		logger:  logger,
	}
}

// Supports reports whether the target format has a configured argument list.
func (c *Converter) Supports(format string) bool {
	_, ok := c.formats[strings.ToLower(format)]
	return ok
}

// Convert transcodes inputPath into the target format and returns the path
// of the newly written output file. The input file is left in place.
//
// Error kinds: common.ErrUnsupportedFormat for an unconfigured format,
// common.ErrConversionFailed for a non-zero exit or timeout, and
// common.ErrInternal when the process could not be launched at all.
func (c *Converter) Convert(ctx context.Context, inputPath, format string) (string, error) {
	format = strings.ToLower(format)

	outputArgs, ok := c.formats[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, format)
	}

	base := filepath.Base(inputPath)
	prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "_"
	outputPath := filex.UniquePath(c.tmpDir, prefix, "."+format)

	// A leftover file from a prior failed run must not be appended to.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: remove stale output %s: %w", common.ErrInternal, outputPath, err)
	}

	args := append([]string{"-i", inputPath}, outputArgs...)
	args = append(args, outputPath)

	c.logger.Info(ctx, "starting audio conversion", "binary", c.binary, "args", strings.Join(args, " "))

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.runner.Run(runCtx, c.binary, args...); err != nil {
		// The partial output is not trusted on any failure path.
		_ = os.Remove(outputPath)

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			c.logger.Error(ctx, "audio conversion failed", "error", err)
			return "", fmt.Errorf("%w: %w", common.ErrConversionFailed, err)
		}

		c.logger.Error(ctx, "could not launch transcoder", "error", err)
		return "", fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	c.logger.Info(ctx, "audio conversion successful", "output", outputPath)
	return outputPath, nil
}
