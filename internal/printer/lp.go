// Package printer submits print-ready PDFs to the CUPS spooler.
package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ErrSpoolerMissing indicates the lp command is not installed.
var ErrSpoolerMissing = errors.New("print spooler missing")

// LP submits jobs with the lp command.
type LP struct {
	// Command defaults to "lp".
	Command string
	// Destination is the printer name; empty uses the system default.
	Destination string
	// Copies defaults to 1.
	Copies int
}

func (p LP) command() string {
	if strings.TrimSpace(p.Command) == "" {
		return "lp"
	}
	return p.Command
}

// Available checks that the spooler can be invoked.
func (p LP) Available() error {
	if _, err := exec.LookPath(p.command()); err != nil {
		return fmt.Errorf("%w: %s not installed", ErrSpoolerMissing, p.command())
	}
	return nil
}

// Args builds the lp argument list. The document is read from stdin.
func (p LP) Args(title string) []string {
	args := []string{}
	if p.Destination != "" {
		args = append(args, "-d", p.Destination)
	}
	if p.Copies > 1 {
		args = append(args, "-n", fmt.Sprint(p.Copies))
	}
	if title != "" {
		args = append(args, "-t", title)
	}
	return append(args, "-o", "media=A4", "-")
}

// Submit feeds pdf to lp and returns the spooler's job id.
func (p LP) Submit(ctx context.Context, title string, pdf []byte) (string, error) {
	cmd := exec.CommandContext(ctx, p.command(), p.Args(title)...)
	cmd.Stdin = bytes.NewReader(pdf)

	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("lp failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("lp execution failed: %w", err)
	}

	if id := ParseJobID(string(output)); id != "" {
		return id, nil
	}
	return strings.TrimSpace(string(output)), nil
}

var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

// ParseJobID extracts the job id from lp output such as
// "request id is Office-42 (1 file(s))".
func ParseJobID(output string) string {
	match := requestIDPattern.FindStringSubmatch(output)
	if match == nil {
		return ""
	}
	return match[1]
}
