package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRecognizer runs the tesseract binary, feeding the image on stdin
// and reading text from stdout. The process is killed when ctx ends.
type CommandRecognizer struct {
	path      string
	language  string
	whitelist string
}

// NewCommandRecognizer creates a subprocess-backed recognizer
func NewCommandRecognizer(path, language, whitelist string) *CommandRecognizer {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &CommandRecognizer{path: path, language: language, whitelist: whitelist}
}

// Engine implements Recognizer
func (c *CommandRecognizer) Engine() string {
	return EngineTesseractCLI
}

// Args returns the command line arguments after the binary
func (c *CommandRecognizer) Args() []string {
	args := []string{"stdin", "stdout", "-l", c.language}
	if c.whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+c.whitelist)
	}
	return args
}

// Recognize implements Recognizer
func (c *CommandRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, c.path, c.Args()...)
	cmd.Stdin = bytes.NewReader(image)
	// Bound the wait for pipes held open by orphaned children after a kill
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", c.path, err, msg)
		}
		return "", fmt.Errorf("%s: %w", c.path, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
